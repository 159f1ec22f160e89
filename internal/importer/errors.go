package importer

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned before or during an import.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, importer.ErrUserNotFound) {
//	    // no such account, nothing was written
//	}
var (
	// ErrUserNotFound is returned when the owning user does not exist.
	// It is raised before the transaction opens.
	ErrUserNotFound = errors.New("user not found")

	// ErrInputFileNotFound is returned when the outline file is missing
	// or is not a regular file.
	ErrInputFileNotFound = errors.New("input file not found")

	// ErrUnsupportedFormat is returned for input formats other than org.
	// Markdown is recognised but not implemented.
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrDeclined is returned when the operator refuses to replace an
	// existing course. The whole import is rolled back.
	ErrDeclined = errors.New("replacement declined")
)

// MissingPositionError is returned in unit mode when a unit has no
// POSITION property.
type MissingPositionError struct {
	Heading string
}

func (e *MissingPositionError) Error() string {
	return fmt.Sprintf("unit %q has no POSITION property", e.Heading)
}

// InvalidPositionError is returned when a POSITION property is not a
// positive integer.
type InvalidPositionError struct {
	Heading string
	Value   string
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("unit %q has invalid POSITION %q (want a positive integer)", e.Heading, e.Value)
}

// DuplicatePositionError is returned when two units of one file claim the
// same position.
type DuplicatePositionError struct {
	Position int
	Headings []string
}

func (e *DuplicatePositionError) Error() string {
	return fmt.Sprintf("position %d is used by more than one unit: %s", e.Position, strings.Join(quoteAll(e.Headings), ", "))
}

// UnknownPointTypeError is returned when a point names a type that is not
// in the vocabulary. Types are never created by an import.
type UnknownPointTypeError struct {
	Heading string
	Type    string
}

func (e *UnknownPointTypeError) Error() string {
	return fmt.Sprintf("point %q has unknown type %q", e.Heading, e.Type)
}

// IsPreflight reports whether err is raised before anything is written,
// so retrying with corrected input is always safe.
func IsPreflight(err error) bool {
	if err == nil {
		return false
	}
	var (
		missing   *MissingPositionError
		invalid   *InvalidPositionError
		duplicate *DuplicatePositionError
	)
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrInputFileNotFound) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.As(err, &missing) ||
		errors.As(err, &invalid) ||
		errors.As(err, &duplicate)
}

// WarningKind classifies a non-fatal observation.
type WarningKind int

const (
	// UnknownDeliveryState: the TODO keyword matched no state of the
	// point's type; the state was left unset.
	UnknownDeliveryState WarningKind = iota
	// DuplicatePlacement: a heading occurred twice in the file; the later
	// occurrence won the course placement.
	DuplicatePlacement
	// UnitSkipped: the operator declined to replace a unit.
	UnitSkipped
)

// String returns a human-readable representation of the kind.
func (k WarningKind) String() string {
	switch k {
	case UnknownDeliveryState:
		return "unknown-state"
	case DuplicatePlacement:
		return "duplicate-placement"
	case UnitSkipped:
		return "unit-skipped"
	default:
		return "unknown"
	}
}

// Warning is a non-fatal observation collected on the Result.
type Warning struct {
	Kind    WarningKind
	Heading string
	Detail  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %q %s", w.Kind, w.Heading, w.Detail)
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
