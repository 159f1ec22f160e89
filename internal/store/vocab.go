package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/syllabooster/syllabooster/internal/model"
)

// FindPointType returns the point type with exactly the given name.
// Returns ErrNotFound if there is none.
func (s queries) FindPointType(ctx context.Context, name string) (*model.PointType, error) {
	var pt model.PointType
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, icon FROM point_types WHERE name = ?`,
		name,
	).Scan(&pt.ID, &pt.Name, &pt.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("point type %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query point type %q: %w", name, err)
	}
	return &pt, nil
}

// UpsertPointType inserts or updates a point type by name and sets pt.ID.
func (s queries) UpsertPointType(ctx context.Context, pt *model.PointType) error {
	if err := pt.Validate(); err != nil {
		return fmt.Errorf("invalid point type: %w", err)
	}

	err := s.q.QueryRowContext(ctx,
		`INSERT INTO point_types (name, icon) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET icon = excluded.icon
		 RETURNING id`,
		pt.Name, pt.Icon,
	).Scan(&pt.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert point type %q: %w", pt.Name, err)
	}
	return nil
}

// ListPointTypes returns all point types ordered by name.
func (s queries) ListPointTypes(ctx context.Context) ([]*model.PointType, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, icon FROM point_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list point types: %w", err)
	}
	defer rows.Close()

	var types []*model.PointType
	for rows.Next() {
		var pt model.PointType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan point type: %w", err)
		}
		types = append(types, &pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating point types: %w", err)
	}
	return types, nil
}

// UpsertDeliveryState inserts or updates a state by (point type, name) and
// sets s.ID.
func (s queries) UpsertDeliveryState(ctx context.Context, st *model.DeliveryState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid delivery state: %w", err)
	}

	query := `
	INSERT INTO delivery_states (point_type_id, position, name, display_name, description, css_class)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(point_type_id, name) DO UPDATE SET
		position = excluded.position,
		display_name = excluded.display_name,
		description = excluded.description,
		css_class = excluded.css_class
	RETURNING id
	`

	err := s.q.QueryRowContext(ctx, query,
		st.PointTypeID, st.Position, st.Name, st.DisplayName, st.Description, st.CSSClass,
	).Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery state %q: %w", st.Name, err)
	}
	return nil
}

// ListDeliveryStates returns the states of a point type in vocabulary order.
func (s queries) ListDeliveryStates(ctx context.Context, pointTypeID int64) ([]*model.DeliveryState, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, point_type_id, COALESCE(position, 0), name, display_name, description, css_class
		 FROM delivery_states
		 WHERE point_type_id = ?
		 ORDER BY position ASC, id ASC`,
		pointTypeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery states: %w", err)
	}
	defer rows.Close()

	var states []*model.DeliveryState
	for rows.Next() {
		var st model.DeliveryState
		if err := rows.Scan(&st.ID, &st.PointTypeID, &st.Position, &st.Name, &st.DisplayName, &st.Description, &st.CSSClass); err != nil {
			return nil, fmt.Errorf("failed to scan delivery state: %w", err)
		}
		states = append(states, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery states: %w", err)
	}
	return states, nil
}

// StateNames returns the distinct delivery state names across all point
// types. The importer feeds them to the outline parser as TODO keywords.
func (s queries) StateNames(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT name FROM delivery_states ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list state names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan state name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state names: %w", err)
	}
	return names, nil
}
