package importer

import (
	"context"
	"fmt"

	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/store"
)

// Renumber rewrites the positions of every course point of a course into a
// dense 1..N sequence: points without a unit first, then unit by unit in
// unit position order. Inside each group the current (position, id) order
// is kept, so running it twice gives the same numbering. It returns the
// number of course points whose position changed.
func Renumber(ctx context.Context, tx *store.Tx, courseID int64) (int, error) {
	units, err := tx.ListUnits(ctx, courseID)
	if err != nil {
		return 0, err
	}
	cps, err := tx.ListCoursePoints(ctx, courseID)
	if err != nil {
		return 0, err
	}

	// ListCoursePoints is ordered by (position, id); grouping preserves it.
	var orphans []*model.CoursePoint
	byUnit := make(map[int64][]*model.CoursePoint, len(units))
	for _, cp := range cps {
		if cp.UnitID == nil {
			orphans = append(orphans, cp)
			continue
		}
		byUnit[*cp.UnitID] = append(byUnit[*cp.UnitID], cp)
	}

	ordered := make([]*model.CoursePoint, 0, len(cps))
	ordered = append(ordered, orphans...)
	for _, u := range units {
		ordered = append(ordered, byUnit[u.ID]...)
	}
	if len(ordered) != len(cps) {
		return 0, fmt.Errorf("failed to renumber course %d: %d course points reference units of another course", courseID, len(cps)-len(ordered))
	}

	changed := 0
	for i, cp := range ordered {
		position := i + 1
		if cp.Position == position {
			continue
		}
		if err := tx.SetCoursePointPosition(ctx, cp.ID, position); err != nil {
			return 0, err
		}
		changed++
	}
	return changed, nil
}
