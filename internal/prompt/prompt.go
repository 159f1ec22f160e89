// Package prompt asks the operator yes/no questions.
//
// Interactive terminals get a huh confirm form; piped input falls back to a
// plain "[y/N]" line prompt, and forced or scripted runs use Always.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Confirmer asks a yes/no question and blocks until it is answered.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// Always answers every question with its own value without asking.
type Always bool

// Confirm implements Confirmer.
func (a Always) Confirm(context.Context, string) (bool, error) {
	return bool(a), nil
}

// New returns a form-based Confirmer when in is a terminal and a line
// prompt otherwise.
func New(in *os.File, out io.Writer) Confirmer {
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return &Form{In: in, Out: out}
	}
	return &Line{In: in, Out: out}
}

// Form confirms through a huh form.
type Form struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer. Aborting the form (ctrl+c) counts as no.
func (f *Form) Confirm(ctx context.Context, message string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(message).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithShowHelp(false)
	if f.In != nil {
		form = form.WithInput(f.In)
	}
	if f.Out != nil {
		form = form.WithOutput(f.Out)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to run confirmation: %w", err)
	}
	return ok, nil
}

// Line confirms by reading one line: "y" or "yes" in any case is yes,
// anything else (including EOF) is no.
type Line struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Confirm implements Confirmer.
func (l *Line) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if l.Out != nil {
		fmt.Fprintf(l.Out, "%s [y/N]: ", message)
	}
	if l.In == nil {
		return false, nil
	}
	if l.reader == nil {
		l.reader = bufio.NewReader(l.In)
	}

	response, err := l.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}
