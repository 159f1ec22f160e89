package model

import (
	"strings"
	"testing"
)

func TestUnit_Validate(t *testing.T) {
	tests := []struct {
		name    string
		unit    Unit
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid unit",
			unit: Unit{CourseID: 1, Position: 1, Title: "Sets"},
		},
		{
			name:    "missing course",
			unit:    Unit{Position: 1, Title: "Sets"},
			wantErr: true,
			errMsg:  "unit course is required",
		},
		{
			name:    "zero position",
			unit:    Unit{CourseID: 1, Position: 0, Title: "Sets"},
			wantErr: true,
			errMsg:  "unit position must be positive",
		},
		{
			name:    "negative position",
			unit:    Unit{CourseID: 1, Position: -3, Title: "Sets"},
			wantErr: true,
			errMsg:  "unit position must be positive",
		},
		{
			name:    "blank title",
			unit:    Unit{CourseID: 1, Position: 2, Title: "   "},
			wantErr: true,
			errMsg:  "unit title is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.unit.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestCourse_Validate(t *testing.T) {
	tests := []struct {
		name    string
		course  Course
		wantErr bool
	}{
		{name: "valid course", course: Course{Name: "Algebra", UserID: 1}},
		{name: "missing name", course: Course{UserID: 1}, wantErr: true},
		{name: "missing user", course: Course{Name: "Algebra"}, wantErr: true},
		{name: "name too long", course: Course{Name: strings.Repeat("a", 101), UserID: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.course.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCoursePoint_Validate(t *testing.T) {
	unit := int64(4)
	valid := CoursePoint{CourseID: 1, PointID: 2, Position: 3, UnitID: &unit}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	orphan := CoursePoint{CourseID: 1, PointID: 2, Position: 1}
	if err := orphan.Validate(); err != nil {
		t.Errorf("orphan course point should be valid: %v", err)
	}

	missingPosition := CoursePoint{CourseID: 1, PointID: 2}
	if err := missingPosition.Validate(); err == nil {
		t.Error("Validate() should reject a zero position")
	}
}

func TestDeliveryState_Label(t *testing.T) {
	s := DeliveryState{Name: "done"}
	if got := s.Label(); got != "done" {
		t.Errorf("Label() = %q, want %q", got, "done")
	}

	s.DisplayName = "Delivered"
	if got := s.Label(); got != "Delivered" {
		t.Errorf("Label() = %q, want %q", got, "Delivered")
	}
}
