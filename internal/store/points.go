package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/syllabooster/syllabooster/internal/model"
)

// UpsertPoint inserts or updates the point identified by p.Heading and sets
// p.ID.
//
// Heading is the point's identity: if a point with the same heading exists,
// in this course or any other, its contents and type are overwritten and the
// existing row is reused.
func (s queries) UpsertPoint(ctx context.Context, p *model.Point) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid point: %w", err)
	}

	query := `
	INSERT INTO points (heading, contents, point_type_id)
	VALUES (?, ?, ?)
	ON CONFLICT(heading) DO UPDATE SET
		contents = excluded.contents,
		point_type_id = excluded.point_type_id
	RETURNING id
	`

	if err := s.q.QueryRowContext(ctx, query, p.Heading, p.Contents, p.PointTypeID).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to upsert point %q: %w", p.Heading, err)
	}
	return nil
}

// FindPoint returns the point with the given heading, tags included.
// Returns ErrNotFound if there is none.
func (s queries) FindPoint(ctx context.Context, heading string) (*model.Point, error) {
	var p model.Point
	var typeID sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		`SELECT id, heading, contents, point_type_id FROM points WHERE heading = ?`,
		heading,
	).Scan(&p.ID, &p.Heading, &p.Contents, &typeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("point %q: %w", heading, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query point %q: %w", heading, err)
	}
	p.PointTypeID = typeID.Int64

	p.Tags, err = s.PointTags(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AttachTags links the named tags to a point, creating unknown tags once.
// Tags already linked are left alone, so the set only grows.
func (s queries) AttachTags(ctx context.Context, pointID int64, names []string) error {
	for _, name := range names {
		var tagID int64
		err := s.q.QueryRowContext(ctx,
			`INSERT INTO tags (name) VALUES (?)
			 ON CONFLICT(name) DO UPDATE SET name = excluded.name
			 RETURNING id`,
			name,
		).Scan(&tagID)
		if err != nil {
			return fmt.Errorf("failed to get or create tag %q: %w", name, err)
		}

		_, err = s.q.ExecContext(ctx,
			`INSERT INTO point_tags (point_id, tag_id) VALUES (?, ?)
			 ON CONFLICT(point_id, tag_id) DO NOTHING`,
			pointID, tagID,
		)
		if err != nil {
			return fmt.Errorf("failed to tag point %d with %q: %w", pointID, name, err)
		}
	}
	return nil
}

// PointTags returns the tag names of a point in name order.
func (s queries) PointTags(ctx context.Context, pointID int64) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT t.name FROM tags t
		 JOIN point_tags pt ON pt.tag_id = t.id
		 WHERE pt.point_id = ?
		 ORDER BY t.name`,
		pointID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query point tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}

// FindCoursePoint returns the placement of a point in a course.
// Returns ErrNotFound if the point is not part of the course.
func (s queries) FindCoursePoint(ctx context.Context, courseID, pointID int64) (*model.CoursePoint, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, course_id, point_id, position, unit_id, state_id
		 FROM course_points WHERE course_id = ? AND point_id = ?`,
		courseID, pointID,
	)
	cp, err := scanCoursePoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course point %d/%d: %w", courseID, pointID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query course point: %w", err)
	}
	return cp, nil
}

// UpsertCoursePoint places a point in a course and sets cp.ID. A point
// appears at most once per course: placing it again moves the existing
// placement (position, unit and state are overwritten).
func (s queries) UpsertCoursePoint(ctx context.Context, cp *model.CoursePoint) error {
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("invalid course point: %w", err)
	}

	query := `
	INSERT INTO course_points (course_id, point_id, position, unit_id, state_id)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(course_id, point_id) DO UPDATE SET
		position = excluded.position,
		unit_id = excluded.unit_id,
		state_id = excluded.state_id
	RETURNING id
	`

	err := s.q.QueryRowContext(ctx, query,
		cp.CourseID,
		cp.PointID,
		cp.Position,
		int64ToNull(cp.UnitID),
		int64ToNull(cp.StateID),
	).Scan(&cp.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert course point %d: %w", cp.PointID, err)
	}
	return nil
}

// ListCoursePoints returns every placement of a course ordered by
// (position, id).
func (s queries) ListCoursePoints(ctx context.Context, courseID int64) ([]*model.CoursePoint, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, course_id, point_id, position, unit_id, state_id
		 FROM course_points WHERE course_id = ?
		 ORDER BY position ASC, id ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list course points: %w", err)
	}
	defer rows.Close()

	var cps []*model.CoursePoint
	for rows.Next() {
		cp, err := scanCoursePoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course point: %w", err)
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course points: %w", err)
	}
	return cps, nil
}

// SetCoursePointPosition rewrites the position of one placement.
func (s queries) SetCoursePointPosition(ctx context.Context, coursePointID int64, position int) error {
	if position <= 0 {
		return fmt.Errorf("course point position must be positive (got %d)", position)
	}
	_, err := s.q.ExecContext(ctx,
		`UPDATE course_points SET position = ? WHERE id = ?`,
		position, coursePointID,
	)
	if err != nil {
		return fmt.Errorf("failed to reposition course point %d: %w", coursePointID, err)
	}
	return nil
}

// ListPlacements returns the course points of a course joined with their
// point, unit, type and state, ordered by position.
func (s queries) ListPlacements(ctx context.Context, courseID int64) ([]*model.Placement, error) {
	query := `
	SELECT cp.position, p.heading, p.contents,
	       COALESCE(pt.name, ''), COALESCE(ds.name, ''), u.position,
	       COALESCE((SELECT group_concat(t.name, char(31))
	           FROM tags t
	           JOIN point_tags x ON x.tag_id = t.id
	           WHERE x.point_id = p.id), '')
	FROM course_points cp
	JOIN points p ON p.id = cp.point_id
	LEFT JOIN point_types pt ON pt.id = p.point_type_id
	LEFT JOIN delivery_states ds ON ds.id = cp.state_id
	LEFT JOIN units u ON u.id = cp.unit_id
	WHERE cp.course_id = ?
	ORDER BY cp.position ASC, cp.id ASC
	`

	rows, err := s.q.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	defer rows.Close()

	var placements []*model.Placement
	for rows.Next() {
		var pl model.Placement
		var unitPos sql.NullInt64
		var tags string
		if err := rows.Scan(&pl.Position, &pl.Heading, &pl.Contents, &pl.PointType, &pl.State, &unitPos, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		if unitPos.Valid {
			pos := int(unitPos.Int64)
			pl.UnitPosition = &pos
		}
		if tags != "" {
			pl.Tags = strings.Split(tags, "\x1f")
			sort.Strings(pl.Tags)
		}
		placements = append(placements, &pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placements: %w", err)
	}
	return placements, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoursePoint(row rowScanner) (*model.CoursePoint, error) {
	var cp model.CoursePoint
	var unitID, stateID sql.NullInt64
	if err := row.Scan(&cp.ID, &cp.CourseID, &cp.PointID, &cp.Position, &unitID, &stateID); err != nil {
		return nil, err
	}
	cp.UnitID = nullToInt64(unitID)
	cp.StateID = nullToInt64(stateID)
	return &cp, nil
}

// int64ToNull converts an optional id to a nullable SQL value.
func int64ToNull(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// nullToInt64 converts a nullable SQL id to a pointer.
func nullToInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
