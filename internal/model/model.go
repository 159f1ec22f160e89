// Package model defines the records the importer materialises into the store.
//
// The types are flat and storage-agnostic: identifiers are the SQLite rowids,
// optional foreign keys are pointers, and every type that is written by the
// import path carries a Validate method checked before it reaches SQL.
package model

import (
	"fmt"
	"strings"
)

// DefaultPointType is the type name applied to points whose outline node
// carries no TYPE property.
const DefaultPointType = "theory"

// User is the account a course belongs to.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Validate checks if the User has valid field values.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if len(u.Username) > 150 {
		return fmt.Errorf("username must be 150 characters or less (got %d)", len(u.Username))
	}
	return nil
}

// Course is identified by (Name, UserID). It owns units and course points.
type Course struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID int64  `json:"user_id"`

	// CurrentPosition is the delivery cursor: the position of the last
	// course point delivered. Imports never move it.
	CurrentPosition int `json:"current_position"`
}

// Validate checks if the Course has valid field values.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("course name is required")
	}
	if len(c.Name) > 100 {
		return fmt.Errorf("course name must be 100 characters or less (got %d)", len(c.Name))
	}
	if c.UserID == 0 {
		return fmt.Errorf("course user is required")
	}
	return nil
}

// Unit is an ordered group of points inside a course. Position is unique
// within the course. Unit tags are not stored; they are pushed down to the
// unit's points at import time.
type Unit struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"course_id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
}

// Validate checks if the Unit has valid field values.
func (u *Unit) Validate() error {
	if u.CourseID == 0 {
		return fmt.Errorf("unit course is required")
	}
	if u.Position <= 0 {
		return fmt.Errorf("unit position must be positive (got %d)", u.Position)
	}
	if strings.TrimSpace(u.Title) == "" {
		return fmt.Errorf("unit title is required")
	}
	return nil
}

// Point is a reusable syllabus entry. Heading is its identity: importing a
// node whose heading already exists updates that point, wherever it is used.
type Point struct {
	ID          int64    `json:"id"`
	Heading     string   `json:"heading"`
	Contents    string   `json:"contents,omitempty"`
	PointTypeID int64    `json:"point_type_id"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks if the Point has valid field values.
func (p *Point) Validate() error {
	if strings.TrimSpace(p.Heading) == "" {
		return fmt.Errorf("point heading is required")
	}
	if p.PointTypeID == 0 {
		return fmt.Errorf("point %q has no type", p.Heading)
	}
	return nil
}

// CoursePoint places a Point in a Course. Position is the dense, course-wide
// ordering; UnitID is nil for orphan points and StateID is nil when the
// point has no delivery state.
type CoursePoint struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"course_id"`
	PointID  int64  `json:"point_id"`
	Position int    `json:"position"`
	UnitID   *int64 `json:"unit_id,omitempty"`
	StateID  *int64 `json:"state_id,omitempty"`
}

// Validate checks if the CoursePoint has valid field values.
func (cp *CoursePoint) Validate() error {
	if cp.CourseID == 0 {
		return fmt.Errorf("course point course is required")
	}
	if cp.PointID == 0 {
		return fmt.Errorf("course point point is required")
	}
	if cp.Position <= 0 {
		return fmt.Errorf("course point position must be positive (got %d)", cp.Position)
	}
	return nil
}

// PointType is a content category such as "theory" or "exercise".
type PointType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Validate checks if the PointType has valid field values.
func (pt *PointType) Validate() error {
	if strings.TrimSpace(pt.Name) == "" {
		return fmt.Errorf("point type name is required")
	}
	if len(pt.Name) > 50 {
		return fmt.Errorf("point type name must be 50 characters or less (got %d)", len(pt.Name))
	}
	return nil
}

// DeliveryState is a workflow status scoped to one PointType.
type DeliveryState struct {
	ID          int64  `json:"id"`
	PointTypeID int64  `json:"point_type_id"`
	Position    int    `json:"position"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	CSSClass    string `json:"css_class,omitempty"`
}

// Validate checks if the DeliveryState has valid field values.
func (s *DeliveryState) Validate() error {
	if s.PointTypeID == 0 {
		return fmt.Errorf("delivery state point type is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("delivery state name is required")
	}
	if len(s.Name) > 50 {
		return fmt.Errorf("delivery state name must be 50 characters or less (got %d)", len(s.Name))
	}
	return nil
}

// Label returns the display name, falling back to the name.
func (s *DeliveryState) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Tag is a free-form label, unique by name.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Placement is a denormalised view of one course point, joined with its
// point, unit, type and state. It is what listings and snapshots read.
type Placement struct {
	Position     int      `json:"position"`
	Heading      string   `json:"heading"`
	Contents     string   `json:"contents,omitempty"`
	PointType    string   `json:"type"`
	State        string   `json:"state,omitempty"`
	UnitPosition *int     `json:"unit,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}
