package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/syllabooster/syllabooster/internal/model"
)

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the statements shared by DB and Tx.
type queries struct {
	q querier
}

// FindCourse returns the course with the given name owned by userID.
// Returns ErrNotFound if there is none.
func (s queries) FindCourse(ctx context.Context, name string, userID int64) (*model.Course, error) {
	var c model.Course
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, user_id, current_position FROM courses WHERE name = ? AND user_id = ?`,
		name, userID,
	).Scan(&c.ID, &c.Name, &c.UserID, &c.CurrentPosition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query course %q: %w", name, err)
	}
	return &c, nil
}

// CreateCourse inserts a new course. It fails if (name, user) already exists.
func (s queries) CreateCourse(ctx context.Context, name string, userID int64) (*model.Course, error) {
	c := &model.Course{Name: name, UserID: userID}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid course: %w", err)
	}

	err := s.q.QueryRowContext(ctx,
		`INSERT INTO courses (name, user_id) VALUES (?, ?) RETURNING id`,
		name, userID,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create course %q: %w", name, err)
	}
	return c, nil
}

// GetOrCreateCourse returns the course identified by (name, user), creating
// it when missing. The boolean reports whether it was created.
func (s queries) GetOrCreateCourse(ctx context.Context, name string, userID int64) (*model.Course, bool, error) {
	c, err := s.FindCourse(ctx, name, userID)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	c, err = s.CreateCourse(ctx, name, userID)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// DeleteCourse removes a course. Units and course points cascade; points
// and tags are shared and stay.
func (s queries) DeleteCourse(ctx context.Context, courseID int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, courseID); err != nil {
		return fmt.Errorf("failed to delete course %d: %w", courseID, err)
	}
	return nil
}

// ListCourses returns the courses owned by userID ordered by name.
func (s queries) ListCourses(ctx context.Context, userID int64) ([]*model.Course, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, user_id, current_position FROM courses WHERE user_id = ? ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID, &c.CurrentPosition); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}
	return courses, nil
}

// FindUnitAt returns the unit at position in a course.
// Returns ErrNotFound if the position is free.
func (s queries) FindUnitAt(ctx context.Context, courseID int64, position int) (*model.Unit, error) {
	var u model.Unit
	err := s.q.QueryRowContext(ctx,
		`SELECT id, course_id, position, title FROM units WHERE course_id = ? AND position = ?`,
		courseID, position,
	).Scan(&u.ID, &u.CourseID, &u.Position, &u.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit at position %d: %w", position, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit at position %d: %w", position, err)
	}
	return &u, nil
}

// ListUnits returns the units of a course ordered by position.
func (s queries) ListUnits(ctx context.Context, courseID int64) ([]*model.Unit, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, course_id, position, title FROM units WHERE course_id = ? ORDER BY position ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []*model.Unit
	for rows.Next() {
		var u model.Unit
		if err := rows.Scan(&u.ID, &u.CourseID, &u.Position, &u.Title); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units: %w", err)
	}
	return units, nil
}

// CreateUnit inserts u and sets its ID.
func (s queries) CreateUnit(ctx context.Context, u *model.Unit) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid unit: %w", err)
	}

	err := s.q.QueryRowContext(ctx,
		`INSERT INTO units (course_id, position, title) VALUES (?, ?, ?) RETURNING id`,
		u.CourseID, u.Position, u.Title,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create unit %d %q: %w", u.Position, u.Title, err)
	}
	return nil
}

// DeleteUnit removes a unit together with its course points.
func (s queries) DeleteUnit(ctx context.Context, unitID int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, unitID); err != nil {
		return fmt.Errorf("failed to delete unit %d: %w", unitID, err)
	}
	return nil
}

// MaxUnitPosition returns the highest unit position in a course, or 0.
func (s queries) MaxUnitPosition(ctx context.Context, courseID int64) (int, error) {
	var maxPos int
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM units WHERE course_id = ?`,
		courseID,
	).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("failed to query max unit position: %w", err)
	}
	return maxPos, nil
}

// ShiftUnits moves every unit of a course at position >= from up by one,
// keeping their relative order.
//
// SQLite checks UNIQUE(course_id, position) row by row, so a single
// "position = position + 1" collides as soon as two shifted units are
// adjacent. The rewrite therefore runs in two phases: all affected rows are
// first lifted by offset (clear of every existing position), then lowered
// by offset-1. offset must be greater than the current maximum position
// plus one; smaller values are raised to that floor.
func (s queries) ShiftUnits(ctx context.Context, courseID int64, from, offset int) (int, error) {
	maxPos, err := s.MaxUnitPosition(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if floor := maxPos + 2; offset < floor {
		offset = floor
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE units SET position = position + ? WHERE course_id = ? AND position >= ?`,
		offset, courseID, from,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to lift units from position %d: %w", from, err)
	}
	shifted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count shifted units: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE units SET position = position - ? WHERE course_id = ? AND position >= ?`,
		offset-1, courseID, from+offset,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to settle shifted units: %w", err)
	}

	return int(shifted), nil
}
