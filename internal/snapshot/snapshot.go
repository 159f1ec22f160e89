// Package snapshot writes a course out as a single JSON document.
//
// Snapshots are taken before a course is replaced wholesale and by
// "sb course export". They are read-only records: nothing imports them back.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/syllabooster/syllabooster/internal/model"
)

// Source is the read side of the store a snapshot needs. Both *store.DB and
// *store.Tx satisfy it.
type Source interface {
	ListUnits(ctx context.Context, courseID int64) ([]*model.Unit, error)
	ListPlacements(ctx context.Context, courseID int64) ([]*model.Placement, error)
}

// Course is the snapshot document.
type Course struct {
	Name            string             `json:"name"`
	User            string             `json:"user"`
	CurrentPosition int                `json:"current_position"`
	TakenAt         time.Time          `json:"taken_at"`
	Units           []Unit             `json:"units"`
	Points          []*model.Placement `json:"points"`
}

// Unit is a unit entry of the snapshot.
type Unit struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
}

// Build reads a course and its placements from src.
func Build(ctx context.Context, src Source, course *model.Course, username string) (*Course, error) {
	units, err := src.ListUnits(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	placements, err := src.ListPlacements(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	snap := &Course{
		Name:            course.Name,
		User:            username,
		CurrentPosition: course.CurrentPosition,
		TakenAt:         time.Now().UTC(),
		Units:           make([]Unit, 0, len(units)),
		Points:          placements,
	}
	if snap.Points == nil {
		snap.Points = []*model.Placement{}
	}
	for _, u := range units {
		snap.Units = append(snap.Units, Unit{Position: u.Position, Title: u.Title})
	}
	return snap, nil
}

// Write marshals snap to path atomically via a temp file.
func Write(snap *Course, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Read loads a snapshot written by Write.
func Read(path string) (*Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Course
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", path, err)
	}
	return &snap, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BackupPath returns a timestamped file name for a course backup in dir.
// Format: {user}--{course}--{20060102-150405}.json
func BackupPath(dir, username, course string, at time.Time) string {
	name := fmt.Sprintf("%s--%s--%s.json",
		unsafeChars.ReplaceAllString(username, "_"),
		unsafeChars.ReplaceAllString(course, "_"),
		at.Format("20060102-150405"))
	return filepath.Join(dir, name)
}
