// Package importer reconciles an org outline with the stored courses.
//
// An import walks the outline top-down. Level-1 headlines are units, placed
// at a position chosen by the resolver (create, replace or shift-insert);
// level-2 headlines are points, upserted by heading and placed in the
// course with the tags of their unit merged in. A renumbering pass then
// gives the course's points a dense 1..N order.
//
// Two modes exist. Course mode replaces a whole course: units are numbered
// in document order and the previous course, if any, is deleted after one
// confirmation. Unit mode edits an existing course in place: every unit
// carries a POSITION property and each replacement is confirmed on its own.
//
// Everything an import writes happens in one transaction. Any error leaves
// the store as it was.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/outline"
	"github.com/syllabooster/syllabooster/internal/prompt"
	"github.com/syllabooster/syllabooster/internal/snapshot"
	"github.com/syllabooster/syllabooster/internal/store"
)

// DefaultShiftOffset is the first-phase lift of a shift-insert.
const DefaultShiftOffset = 10000

// Input formats.
const (
	FormatOrg      = "org"
	FormatMarkdown = "md"
)

// Mode selects between whole-course and per-unit imports.
type Mode int

const (
	// ModeCourse replaces the course wholesale; positions follow document order.
	ModeCourse Mode = iota
	// ModeUnits edits the course unit by unit; positions come from POSITION.
	ModeUnits
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeCourse:
		return "course"
	case ModeUnits:
		return "units"
	default:
		return "unknown"
	}
}

// Options selects what an import does.
type Options struct {
	Course string
	User   string
	Format string // "org" (default) or "md"
	Mode   Mode

	// Units restricts a unit-mode import to these positions. Empty means all.
	Units []int
	// Insert shifts existing units up instead of replacing them.
	Insert bool
	// Force replaces without asking.
	Force bool

	// DefaultType is the point type used when a node has no TYPE property.
	DefaultType string
	// ShiftOffset overrides DefaultShiftOffset.
	ShiftOffset int
	// TodoKeywords are extra TODO keywords for the outline parser.
	TodoKeywords []string

	// DryRun runs the whole import and rolls it back.
	DryRun bool
	// BackupDir, if set, receives a snapshot of a course before course mode
	// deletes it.
	BackupDir string
}

// UnitResult records what happened to one unit.
type UnitResult struct {
	Position int
	Title    string
	Plan     Plan
}

// Result summarises an import.
type Result struct {
	CourseID       int64
	CourseCreated  bool
	CourseReplaced bool
	Units          []UnitResult
	Points         int
	Renumbered     int
	Warnings       []Warning
	BackupPath     string
	DryRun         bool
}

// errDryRun unwinds the transaction of a dry run.
var errDryRun = errors.New("dry run")

// Importer runs imports against one store.
type Importer struct {
	db      *store.DB
	confirm prompt.Confirmer
	log     *slog.Logger
}

// New creates an Importer.
//
// If confirm is nil, every replacement is declined unless Options.Force is
// set. If logger is nil, log records are discarded.
//
// Example:
//
//	db, err := store.Open(path)
//	if err != nil {
//	    return err
//	}
//	imp := importer.New(db, prompt.New(os.Stdin, os.Stdout), logger)
//	res, err := imp.ImportFile(ctx, "go101.org", importer.Options{Course: "go-101", User: "alice"})
func New(db *store.DB, confirm prompt.Confirmer, logger *slog.Logger) *Importer {
	if confirm == nil {
		confirm = prompt.Always(false)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{db: db, confirm: confirm, log: logger}
}

// ImportFile validates the input, parses the outline at path and imports
// it. Nothing is written unless every pre-flight check passes.
func (im *Importer) ImportFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := checkFormat(opts.Format); err != nil {
		return nil, err
	}
	user, err := im.lookupUser(ctx, opts.User)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrInputFileNotFound, path)
	}

	keywords, err := im.db.StateNames(ctx)
	if err != nil {
		return nil, err
	}
	parser := outline.NewParser(append(keywords, opts.TodoKeywords...), im.log)
	doc, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}

	return im.run(ctx, user, doc, opts)
}

// Import imports an already parsed outline.
func (im *Importer) Import(ctx context.Context, doc *outline.Document, opts Options) (*Result, error) {
	if err := checkFormat(opts.Format); err != nil {
		return nil, err
	}
	user, err := im.lookupUser(ctx, opts.User)
	if err != nil {
		return nil, err
	}
	return im.run(ctx, user, doc, opts)
}

// Renumber runs the renumbering pass on a course in its own transaction.
func (im *Importer) Renumber(ctx context.Context, courseName, username string) (int, error) {
	user, err := im.lookupUser(ctx, username)
	if err != nil {
		return 0, err
	}
	var changed int
	err = im.db.WithTx(ctx, func(tx *store.Tx) error {
		course, err := tx.FindCourse(ctx, courseName, user.ID)
		if err != nil {
			return err
		}
		changed, err = Renumber(ctx, tx, course.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to renumber course %q: %w", courseName, err)
	}
	return changed, nil
}

func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case "", FormatOrg:
		return nil
	case FormatMarkdown:
		return fmt.Errorf("%w: markdown import is not implemented", ErrUnsupportedFormat)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (im *Importer) lookupUser(ctx context.Context, username string) (*model.User, error) {
	user, err := im.db.FindUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// unitPositions assigns a position to every level-1 node: document order
// in course mode, the POSITION property in unit mode. Positions must be
// distinct.
func unitPositions(doc *outline.Document, mode Mode) (map[*outline.Node]int, error) {
	positions := make(map[*outline.Node]int)
	owners := make(map[int][]string)
	ordinal := 0

	for _, node := range doc.Nodes {
		if node.Level != 1 {
			continue
		}
		ordinal++
		position := ordinal

		if mode == ModeUnits {
			raw, ok := node.Property("POSITION")
			if !ok || strings.TrimSpace(raw) == "" {
				return nil, &MissingPositionError{Heading: node.Heading}
			}
			p, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || p <= 0 {
				return nil, &InvalidPositionError{Heading: node.Heading, Value: raw}
			}
			position = p
		}

		positions[node] = position
		owners[position] = append(owners[position], node.Heading)
	}

	dups := make([]int, 0)
	for p, headings := range owners {
		if len(headings) > 1 {
			dups = append(dups, p)
		}
	}
	if len(dups) > 0 {
		sort.Ints(dups)
		return nil, &DuplicatePositionError{Position: dups[0], Headings: owners[dups[0]]}
	}
	return positions, nil
}

func (im *Importer) run(ctx context.Context, user *model.User, doc *outline.Document, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.Course) == "" {
		return nil, fmt.Errorf("course name is required")
	}
	positions, err := unitPositions(doc, opts.Mode)
	if err != nil {
		return nil, err
	}

	offset := opts.ShiftOffset
	if offset <= 0 {
		offset = DefaultShiftOffset
	}
	filter := make(map[int]bool, len(opts.Units))
	if opts.Mode == ModeUnits {
		for _, p := range opts.Units {
			filter[p] = true
		}
	}

	log := im.log.With("course", opts.Course, "user", user.Username, "mode", opts.Mode.String())
	result := &Result{DryRun: opts.DryRun}

	err = im.db.WithTx(ctx, func(tx *store.Tx) error {
		course, err := im.prepareCourse(ctx, tx, user, opts, result, log)
		if err != nil {
			return err
		}
		result.CourseID = course.ID

		a := &assembler{
			tx:     tx,
			course: course,
			resolver: &resolver{
				tx:       tx,
				course:   course,
				username: user.Username,
				insert:   opts.Insert,
				force:    opts.Force,
				offset:   offset,
				confirm:  im.confirm,
				log:      log,
			},
			reconcile: newReconciler(tx, opts.DefaultType),
			positions: positions,
			filter:    filter,
			log:       log,
		}
		if err := a.run(ctx, doc, newAssembly(result)); err != nil {
			return err
		}

		result.Renumbered, err = Renumber(ctx, tx, course.ID)
		if err != nil {
			return err
		}

		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		log.Info("dry run rolled back", "units", len(result.Units), "points", result.Points)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to import course %q: %w", opts.Course, err)
	}

	log.Info("import committed", "units", len(result.Units), "points", result.Points, "warnings", len(result.Warnings))
	return result, nil
}

// prepareCourse finds or creates the target course. In course mode an
// existing course is confirmed, optionally backed up, and deleted, so the
// import starts from an empty course.
func (im *Importer) prepareCourse(ctx context.Context, tx *store.Tx, user *model.User, opts Options, result *Result, log *slog.Logger) (*model.Course, error) {
	if opts.Mode == ModeUnits {
		course, created, err := tx.GetOrCreateCourse(ctx, opts.Course, user.ID)
		if err != nil {
			return nil, err
		}
		result.CourseCreated = created
		return course, nil
	}

	existing, err := tx.FindCourse(ctx, opts.Course, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if !opts.Force {
			msg := fmt.Sprintf("Course %s for user %s already exists and will be replaced. Proceed?", opts.Course, user.Username)
			ok, err := im.confirm.Confirm(ctx, msg)
			if err != nil {
				return nil, fmt.Errorf("failed to confirm replacement: %w", err)
			}
			if !ok {
				return nil, ErrDeclined
			}
		}

		if opts.BackupDir != "" && !opts.DryRun {
			snap, err := snapshot.Build(ctx, tx, existing, user.Username)
			if err != nil {
				return nil, err
			}
			path := snapshot.BackupPath(opts.BackupDir, user.Username, existing.Name, time.Now())
			if err := snapshot.Write(snap, path); err != nil {
				return nil, err
			}
			result.BackupPath = path
			log.Info("course backed up", "path", path)
		}

		if err := tx.DeleteCourse(ctx, existing.ID); err != nil {
			return nil, err
		}
		result.CourseReplaced = true
	}

	course, err := tx.CreateCourse(ctx, opts.Course, user.ID)
	if err != nil {
		return nil, err
	}
	result.CourseCreated = existing == nil
	return course, nil
}
