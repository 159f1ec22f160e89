package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/prompt"
	"github.com/syllabooster/syllabooster/internal/store"
)

// Plan is the mutation chosen for one unit of the outline.
type Plan int

const (
	// PlanCreate: the position is free; the unit is created there.
	PlanCreate Plan = iota
	// PlanReplace: the existing unit and its course points are deleted,
	// then the new unit is created at the same position.
	PlanReplace
	// PlanShiftInsert: units at and after the position move up by one,
	// then the new unit is created at the freed position.
	PlanShiftInsert
	// PlanSkip: the operator declined the replacement; nothing changes.
	PlanSkip
)

// String returns a human-readable representation of the plan.
func (p Plan) String() string {
	switch p {
	case PlanCreate:
		return "create"
	case PlanReplace:
		return "replace"
	case PlanShiftInsert:
		return "insert"
	case PlanSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// decide picks the plan for a position before any confirmation.
func decide(occupied, insert bool) Plan {
	switch {
	case !occupied:
		return PlanCreate
	case insert:
		return PlanShiftInsert
	default:
		return PlanReplace
	}
}

// resolver places units of one course.
type resolver struct {
	tx       *store.Tx
	course   *model.Course
	username string
	insert   bool
	force    bool
	offset   int
	confirm  prompt.Confirmer
	log      *slog.Logger
}

// resolve decides the plan for a unit at position, asking for
// confirmation before a replacement unless force is set.
func (r *resolver) resolve(ctx context.Context, position int) (Plan, *model.Unit, error) {
	existing, err := r.tx.FindUnitAt(ctx, r.course.ID, position)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return PlanSkip, nil, err
	}

	plan := decide(existing != nil, r.insert)
	if plan != PlanReplace || r.force {
		return plan, existing, nil
	}

	msg := fmt.Sprintf("Unit %d (%q) of course %s for user %s will be replaced. Proceed?",
		position, existing.Title, r.course.Name, r.username)
	ok, err := r.confirm.Confirm(ctx, msg)
	if err != nil {
		return PlanSkip, existing, fmt.Errorf("failed to confirm replacement of unit %d: %w", position, err)
	}
	if !ok {
		return PlanSkip, existing, nil
	}
	return PlanReplace, existing, nil
}

// apply carries out plan and creates the new unit. It must not be called
// with PlanSkip.
func (r *resolver) apply(ctx context.Context, plan Plan, existing *model.Unit, position int, title string) (*model.Unit, error) {
	switch plan {
	case PlanReplace:
		if err := r.tx.DeleteUnit(ctx, existing.ID); err != nil {
			return nil, err
		}
		r.log.Info("replaced unit", "position", position, "old_title", existing.Title)
	case PlanShiftInsert:
		n, err := r.tx.ShiftUnits(ctx, r.course.ID, position, r.offset)
		if err != nil {
			return nil, err
		}
		r.log.Info("shifted units", "from", position, "count", n)
	case PlanSkip:
		return nil, fmt.Errorf("cannot apply skipped unit at position %d", position)
	}

	unit := &model.Unit{CourseID: r.course.ID, Position: position, Title: title}
	if err := r.tx.CreateUnit(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}
