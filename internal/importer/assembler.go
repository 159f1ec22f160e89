package importer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/outline"
	"github.com/syllabooster/syllabooster/internal/store"
)

// phase is the assembler state.
type phase int

const (
	beforeAnyUnit phase = iota
	inUnit
)

// assembly is the per-run accumulator threaded through the walk. A fresh
// one is created for every import.
type assembly struct {
	phase phase

	unit     *model.Unit // nil before the first unit and inside a skipped unit
	skipped  bool        // current unit was declined
	filtered bool        // current unit is excluded by the unit filter

	nextPoint int
	unitTags  map[int][]string // by resolved unit position
	placed    map[int64]string // point id -> heading, points placed in this run

	result *Result
}

func newAssembly(result *Result) *assembly {
	return &assembly{
		phase:     beforeAnyUnit,
		nextPoint: 1,
		unitTags:  make(map[int][]string),
		placed:    make(map[int64]string),
		result:    result,
	}
}

// assembler walks an outline and writes units and course points.
type assembler struct {
	tx        *store.Tx
	course    *model.Course
	resolver  *resolver
	reconcile *reconciler
	positions map[*outline.Node]int // resolved position of every unit node
	filter    map[int]bool          // empty means every unit
	log       *slog.Logger
}

func (a *assembler) run(ctx context.Context, doc *outline.Document, acc *assembly) error {
	for _, node := range doc.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch node.Level {
		case 1:
			if err := a.enterUnit(ctx, node, acc); err != nil {
				return err
			}
		case 2:
			if err := a.addPoint(ctx, node, acc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *assembler) selected(position int) bool {
	return len(a.filter) == 0 || a.filter[position]
}

// enterUnit handles a level-1 node.
func (a *assembler) enterUnit(ctx context.Context, node *outline.Node, acc *assembly) error {
	position := a.positions[node]
	acc.unit, acc.skipped, acc.filtered = nil, false, false

	if !a.selected(position) {
		acc.filtered = true
		a.log.Debug("unit filtered out", "position", position, "title", node.Heading)
		return nil
	}

	plan, existing, err := a.resolver.resolve(ctx, position)
	if err != nil {
		return err
	}
	if plan == PlanSkip {
		acc.skipped = true
		acc.result.Units = append(acc.result.Units, UnitResult{Position: position, Title: node.Heading, Plan: plan})
		acc.result.Warnings = append(acc.result.Warnings, Warning{
			Kind:    UnitSkipped,
			Heading: node.Heading,
			Detail:  "was not imported; the existing unit was kept",
		})
		a.log.Warn("unit skipped", "position", position, "title", node.Heading)
		return nil
	}

	unit, err := a.resolver.apply(ctx, plan, existing, position, node.Heading)
	if err != nil {
		return err
	}
	acc.unit = unit
	acc.phase = inUnit
	acc.unitTags[position] = node.Tags
	acc.result.Units = append(acc.result.Units, UnitResult{Position: position, Title: node.Heading, Plan: plan})
	a.log.Info("imported unit", "position", position, "title", node.Heading, "plan", plan.String())
	return nil
}

// addPoint handles a level-2 node.
func (a *assembler) addPoint(ctx context.Context, node *outline.Node, acc *assembly) error {
	if acc.filtered {
		return nil
	}
	orphan := node.Parent == nil || node.Parent.IsRoot()
	// A targeted import only touches the selected units.
	if orphan && len(a.filter) > 0 {
		return nil
	}

	var unitTags []string
	var unitID *int64
	if !orphan && acc.unit != nil {
		unitTags = acc.unitTags[acc.unit.Position]
		unitID = &acc.unit.ID
	}

	d, err := a.reconcile.reconcile(ctx, node, unitTags)
	if err != nil {
		return err
	}
	if d.warning != nil {
		acc.result.Warnings = append(acc.result.Warnings, *d.warning)
		a.log.Warn("delivery state not found", "heading", node.Heading, "todo", node.Todo)
	}

	position := acc.nextPoint
	acc.nextPoint++

	if prev, ok := acc.placed[d.point.ID]; ok {
		acc.result.Warnings = append(acc.result.Warnings, Warning{
			Kind:    DuplicatePlacement,
			Heading: prev,
			Detail:  "appears more than once; the last occurrence sets its place in the course",
		})
	}
	acc.placed[d.point.ID] = node.Heading

	// Points of a declined unit never disturb a placement the course
	// already has.
	if acc.skipped && !orphan {
		_, err := a.tx.FindCoursePoint(ctx, a.course.ID, d.point.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	cp := &model.CoursePoint{
		CourseID: a.course.ID,
		PointID:  d.point.ID,
		Position: position,
		UnitID:   unitID,
		StateID:  d.stateID,
	}
	if err := a.tx.UpsertCoursePoint(ctx, cp); err != nil {
		return err
	}
	acc.result.Points++
	return nil
}
