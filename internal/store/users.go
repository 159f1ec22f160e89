package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/syllabooster/syllabooster/internal/model"
)

// FindUser returns the user with the given username.
// Returns ErrNotFound if there is none.
func (s queries) FindUser(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.q.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %q: %w", username, err)
	}
	return &u, nil
}

// CreateUser inserts a user. It fails if the username is taken.
func (s queries) CreateUser(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{Username: username}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}

	err := s.q.QueryRowContext(ctx,
		`INSERT INTO users (username) VALUES (?) RETURNING id`,
		username,
	).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return u, nil
}

// ListUsers returns all users ordered by username.
func (s queries) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
