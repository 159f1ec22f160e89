package vocab

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/syllabooster/syllabooster/internal/store"
)

const tomlVocab = `
[[point_types]]
name = "theory"

[[point_types]]
name = "exercise"
icon = "pencil"

  [[point_types.states]]
  name = "todo"
  display_name = "To do"

  [[point_types.states]]
  name = "done"
`

const yamlVocab = `
point_types:
  - name: theory
  - name: exercise
    icon: pencil
    states:
      - name: todo
        display_name: To do
      - name: done
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestRead_Formats(t *testing.T) {
	want := &File{PointTypes: []PointType{
		{Name: "theory"},
		{Name: "exercise", Icon: "pencil", States: []State{
			{Name: "todo", DisplayName: "To do"},
			{Name: "done"},
		}},
	}}

	for name, content := range map[string]string{"vocab.toml": tomlVocab, "vocab.yaml": yamlVocab} {
		t.Run(name, func(t *testing.T) {
			got, err := Read(writeFile(t, name, content))
			if err != nil {
				t.Fatalf("Read() failed: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown extension", "vocab.json", `{}`},
		{"unknown toml key", "vocab.toml", "[[point_types]]\nname = \"x\"\ncolour = \"red\"\n"},
		{"unknown yaml key", "vocab.yml", "point_types:\n  - name: x\n    colour: red\n"},
		{"duplicate type", "vocab.toml", "[[point_types]]\nname = \"x\"\n[[point_types]]\nname = \"x\"\n"},
		{"missing state name", "vocab.yaml", "point_types:\n  - name: x\n    states:\n      - display_name: y\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(writeFile(t, tt.file, tt.content)); err == nil {
				t.Error("Read() succeeded, want error")
			}
		})
	}
}

func TestLoad_Upserts(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	ctx := context.Background()

	f, err := Read(writeFile(t, "vocab.toml", tomlVocab))
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	// Loading twice must not duplicate anything.
	for i := 0; i < 2; i++ {
		sum, err := Load(ctx, db, f)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if sum.PointTypes != 2 || sum.States != 2 {
			t.Errorf("Load() = %+v, want 2 types and 2 states", sum)
		}
	}

	exercise, err := db.FindPointType(ctx, "exercise")
	if err != nil {
		t.Fatalf("FindPointType() failed: %v", err)
	}
	states, err := db.ListDeliveryStates(ctx, exercise.ID)
	if err != nil {
		t.Fatalf("ListDeliveryStates() failed: %v", err)
	}
	var got []string
	for _, s := range states {
		got = append(got, s.Label())
	}
	if diff := cmp.Diff([]string{"To do", "done"}, got); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}
