package outline

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sample = `#+TITLE: Go 101

* Basics :intro:
:PROPERTIES:
:POSITION: 1
:END:
Unit notes.
** TODO Variables :syntax:
:PROPERTIES:
:TYPE: exercise
:END:
Declare some.
*** Hints
Use :=.
** Constants
* Concurrency
** REVIEW Goroutines
`

func TestParse_Structure(t *testing.T) {
	doc, err := NewParser([]string{"review"}, nil).ParseString(sample)
	if err != nil {
		t.Fatalf("ParseString() failed: %v", err)
	}

	var got []string
	for _, n := range doc.Nodes {
		got = append(got, strings.Repeat("*", n.Level)+" "+n.Heading)
	}
	want := []string{
		"* Basics",
		"** Variables",
		"** Constants",
		"* Concurrency",
		"** Goroutines",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NodeFields(t *testing.T) {
	doc, err := NewParser(nil, nil).ParseString(sample)
	if err != nil {
		t.Fatalf("ParseString() failed: %v", err)
	}

	unit, point := doc.Nodes[0], doc.Nodes[1]

	if diff := cmp.Diff([]string{"intro"}, unit.Tags); diff != "" {
		t.Errorf("unit tags mismatch (-want +got):\n%s", diff)
	}
	if pos, ok := unit.Property("position"); !ok || pos != "1" {
		t.Errorf("Property(position) = %q, %v, want \"1\", true", pos, ok)
	}
	if unit.Body != "Unit notes." {
		t.Errorf("unit Body = %q, want %q", unit.Body, "Unit notes.")
	}
	if !unit.Parent.IsRoot() {
		t.Error("unit Parent is not the root")
	}

	if point.Todo != "TODO" {
		t.Errorf("Todo = %q, want TODO", point.Todo)
	}
	if typ, _ := point.Property("TYPE"); typ != "exercise" {
		t.Errorf("Property(TYPE) = %q, want exercise", typ)
	}
	if point.Parent != unit {
		t.Error("point Parent is not its unit")
	}
	if !strings.Contains(point.Body, "Declare some.") || !strings.Contains(point.Body, "*** Hints") {
		t.Errorf("point Body = %q, want own text and folded sub-heading", point.Body)
	}
	if strings.Contains(point.Body, ":PROPERTIES:") {
		t.Errorf("point Body = %q, want no property drawer", point.Body)
	}
}

func TestParse_TodoKeywords(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		want     string
	}{
		{"unknown keyword stays in heading", nil, ""},
		{"configured keyword", []string{"REVIEW"}, "REVIEW"},
		{"lower-case keyword is upper-cased", []string{"review"}, "REVIEW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewParser(tt.keywords, nil).ParseString(sample)
			if err != nil {
				t.Fatalf("ParseString() failed: %v", err)
			}
			last := doc.Nodes[len(doc.Nodes)-1]
			if last.Todo != tt.want {
				t.Errorf("Todo = %q, want %q", last.Todo, tt.want)
			}
			if tt.want == "" && last.Heading != "REVIEW Goroutines" {
				t.Errorf("Heading = %q, want keyword kept in heading", last.Heading)
			}
		})
	}
}

func TestParse_OrphanPoint(t *testing.T) {
	doc, err := NewParser(nil, nil).ParseString("** Loose\n* Unit\n")
	if err != nil {
		t.Fatalf("ParseString() failed: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(doc.Nodes))
	}
	if doc.Nodes[0].Level != 2 || !doc.Nodes[0].Parent.IsRoot() {
		t.Errorf("orphan = %+v, want level 2 under root", doc.Nodes[0])
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := NewParser(nil, nil).ParseFile(filepath.Join(t.TempDir(), "nope.org"))
	if err == nil {
		t.Fatal("ParseFile() on missing file succeeded, want error")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ParseFile() error = %v, want not-exist", err)
	}
}
