package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/outline"
	"github.com/syllabooster/syllabooster/internal/prompt"
	"github.com/syllabooster/syllabooster/internal/snapshot"
	"github.com/syllabooster/syllabooster/internal/store"
)

type fixture struct {
	db   *store.DB
	user *model.User
}

// newFixture opens a store with user "alice", the "theory" type and an
// "exercise" type whose states are todo and done.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	user, err := db.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	theory := &model.PointType{Name: "theory"}
	exercise := &model.PointType{Name: "exercise"}
	for _, pt := range []*model.PointType{theory, exercise} {
		if err := db.UpsertPointType(ctx, pt); err != nil {
			t.Fatalf("UpsertPointType() failed: %v", err)
		}
	}
	for i, name := range []string{"todo", "done"} {
		st := &model.DeliveryState{PointTypeID: exercise.ID, Position: i + 1, Name: name}
		if err := db.UpsertDeliveryState(ctx, st); err != nil {
			t.Fatalf("UpsertDeliveryState() failed: %v", err)
		}
	}
	return &fixture{db: db, user: user}
}

func (f *fixture) parse(t *testing.T, text string) *outline.Document {
	t.Helper()
	names, err := f.db.StateNames(context.Background())
	if err != nil {
		t.Fatalf("StateNames() failed: %v", err)
	}
	doc, err := outline.NewParser(names, nil).ParseString(text)
	if err != nil {
		t.Fatalf("ParseString() failed: %v", err)
	}
	return doc
}

func (f *fixture) importText(t *testing.T, confirm prompt.Confirmer, text string, opts Options) (*Result, error) {
	t.Helper()
	if opts.User == "" {
		opts.User = f.user.Username
	}
	if opts.Course == "" {
		opts.Course = "go-101"
	}
	return New(f.db, confirm, nil).Import(context.Background(), f.parse(t, text), opts)
}

func (f *fixture) mustImport(t *testing.T, text string, opts Options) *Result {
	t.Helper()
	res, err := f.importText(t, prompt.Always(true), text, opts)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	return res
}

func (f *fixture) course(t *testing.T, name string) *model.Course {
	t.Helper()
	c, err := f.db.FindCourse(context.Background(), name, f.user.ID)
	if err != nil {
		t.Fatalf("FindCourse(%q) failed: %v", name, err)
	}
	return c
}

func (f *fixture) units(t *testing.T, course string) map[int]string {
	t.Helper()
	units, err := f.db.ListUnits(context.Background(), f.course(t, course).ID)
	if err != nil {
		t.Fatalf("ListUnits() failed: %v", err)
	}
	got := make(map[int]string)
	for _, u := range units {
		got[u.Position] = u.Title
	}
	return got
}

// row is a compact view of a placement.
type row struct {
	Pos     int
	Heading string
	Unit    int // 0 for no unit
	Tags    string
	State   string
}

func (f *fixture) placements(t *testing.T, course string) []row {
	t.Helper()
	pls, err := f.db.ListPlacements(context.Background(), f.course(t, course).ID)
	if err != nil {
		t.Fatalf("ListPlacements() failed: %v", err)
	}
	var rows []row
	for _, pl := range pls {
		r := row{Pos: pl.Position, Heading: pl.Heading, Tags: strings.Join(pl.Tags, ","), State: pl.State}
		if pl.UnitPosition != nil {
			r.Unit = *pl.UnitPosition
		}
		rows = append(rows, r)
	}
	return rows
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := f.db.RawDB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func (f *fixture) counts(t *testing.T) map[string]int {
	t.Helper()
	out := make(map[string]int)
	for _, table := range []string{"courses", "units", "points", "course_points", "tags", "point_tags"} {
		out[table] = f.count(t, table)
	}
	return out
}

const threeUnits = `* U1
** P1
* U2
** P2
* U3
** P3
`

func TestImport_UnitAUnitB(t *testing.T) {
	f := newFixture(t)
	res := f.mustImport(t, "* Unit A :x:\n** P1 :y:\n* Unit B\n** P2\n", Options{})

	if !res.CourseCreated {
		t.Error("CourseCreated = false, want true")
	}
	if diff := cmp.Diff(map[int]string{1: "Unit A", 2: "Unit B"}, f.units(t, "go-101")); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
	want := []row{
		{Pos: 1, Heading: "P1", Unit: 1, Tags: "x,y"},
		{Pos: 2, Heading: "P2", Unit: 2},
	}
	if diff := cmp.Diff(want, f.placements(t, "go-101")); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_CourseModeNumbersUnitsInDocumentOrder(t *testing.T) {
	f := newFixture(t)
	// POSITION is ignored in course mode.
	text := "* C\n:PROPERTIES:\n:POSITION: 9\n:END:\n* A\n* B\n"
	f.mustImport(t, text, Options{})

	want := map[int]string{1: "C", 2: "A", 3: "B"}
	if diff := cmp.Diff(want, f.units(t, "go-101")); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_OrphanPoints(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, "** Intro :meta:\n* U1 :x:\n** P1\n", Options{})

	want := []row{
		{Pos: 1, Heading: "Intro", Tags: "meta"},
		{Pos: 2, Heading: "P1", Unit: 1, Tags: "x"},
	}
	if diff := cmp.Diff(want, f.placements(t, "go-101")); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_DeliveryStates(t *testing.T) {
	f := newFixture(t)
	text := `* U
** TODO Loops
:PROPERTIES:
:TYPE: exercise
:END:
** DONE Reading
`
	res := f.mustImport(t, text, Options{})

	want := []row{
		{Pos: 1, Heading: "Loops", Unit: 1, State: "todo"},
		{Pos: 2, Heading: "Reading", Unit: 1},
	}
	if diff := cmp.Diff(want, f.placements(t, "go-101")); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}

	if len(res.Warnings) != 1 || res.Warnings[0].Kind != UnknownDeliveryState || res.Warnings[0].Heading != "Reading" {
		t.Errorf("Warnings = %v, want one unknown-state warning for Reading", res.Warnings)
	}
}

func TestImport_SharedIdentityByHeading(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, "* U\n** Shared\nfirst body\n", Options{Course: "go-101"})
	f.mustImport(t, "* V\n** Shared :extra:\nsecond body\n", Options{Course: "rust-101"})

	if n := f.count(t, "points"); n != 1 {
		t.Errorf("points = %d, want 1 shared point", n)
	}
	p, err := f.db.FindPoint(context.Background(), "Shared")
	if err != nil {
		t.Fatalf("FindPoint() failed: %v", err)
	}
	if p.Contents != "second body" {
		t.Errorf("Contents = %q, want the last import's body", p.Contents)
	}
	// The first course sees the update too.
	if got := f.placements(t, "go-101"); len(got) != 1 || got[0].Tags != "extra" {
		t.Errorf("go-101 placements = %+v, want the shared point with its new tag", got)
	}
}

func TestImport_TagsAccumulate(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, "* U :unit:\n** P :a:\n", Options{})
	f.mustImport(t, "* U\n** P :b:\n", Options{Force: true})

	p, err := f.db.FindPoint(context.Background(), "P")
	if err != nil {
		t.Fatalf("FindPoint() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "unit"}, p.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_TagSuperset(t *testing.T) {
	f := newFixture(t)
	text := "* U1 :x:z:\n** P1 :y:\n** P2\n* U2\n** P3 :w:\n"
	doc := f.parse(t, text)
	f.mustImport(t, text, Options{})

	ctx := context.Background()
	for _, node := range doc.Nodes {
		if node.Level != 2 {
			continue
		}
		p, err := f.db.FindPoint(ctx, node.Heading)
		if err != nil {
			t.Fatalf("FindPoint() failed: %v", err)
		}
		have := make(map[string]bool)
		for _, tag := range p.Tags {
			have[tag] = true
		}
		required := append([]string{}, node.Tags...)
		if !node.Parent.IsRoot() {
			required = append(required, node.Parent.Tags...)
		}
		for _, tag := range required {
			if !have[tag] {
				t.Errorf("point %q tags %v missing %q", node.Heading, p.Tags, tag)
			}
		}
	}
}

func TestImport_DuplicateHeadingInFile(t *testing.T) {
	f := newFixture(t)
	res := f.mustImport(t, "* U1\n** Same\n* U2\n** Same\n", Options{})

	want := []row{{Pos: 1, Heading: "Same", Unit: 2}}
	if diff := cmp.Diff(want, f.placements(t, "go-101")); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
	found := false
	for _, w := range res.Warnings {
		if w.Kind == DuplicatePlacement {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a duplicate-placement warning", res.Warnings)
	}
}

func TestImport_CourseModeReplace(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, threeUnits, Options{})
	before := f.counts(t)

	t.Run("declined", func(t *testing.T) {
		_, err := f.importText(t, prompt.Always(false), "* Only\n", Options{})
		if !errors.Is(err, ErrDeclined) {
			t.Fatalf("Import() error = %v, want ErrDeclined", err)
		}
		if diff := cmp.Diff(before, f.counts(t)); diff != "" {
			t.Errorf("store changed after decline (-want +got):\n%s", diff)
		}
	})

	t.Run("forced with backup", func(t *testing.T) {
		dir := t.TempDir()
		res, err := f.importText(t, prompt.Always(false), "* Only\n** P9\n", Options{Force: true, BackupDir: dir})
		if err != nil {
			t.Fatalf("Import() failed: %v", err)
		}
		if !res.CourseReplaced || res.CourseCreated {
			t.Errorf("Result = %+v, want replaced and not created", res)
		}
		if diff := cmp.Diff(map[int]string{1: "Only"}, f.units(t, "go-101")); diff != "" {
			t.Errorf("units mismatch (-want +got):\n%s", diff)
		}

		snap, err := snapshot.Read(res.BackupPath)
		if err != nil {
			t.Fatalf("snapshot.Read() failed: %v", err)
		}
		if len(snap.Units) != 3 || len(snap.Points) != 3 {
			t.Errorf("backup has %d units and %d points, want 3 and 3", len(snap.Units), len(snap.Points))
		}
	})
}

func TestImport_ShiftInsert(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, threeUnits, Options{})

	text := "* New\n:PROPERTIES:\n:POSITION: 2\n:END:\n** PN\n"
	res := f.mustImport(t, text, Options{Mode: ModeUnits, Insert: true})

	if len(res.Units) != 1 || res.Units[0].Plan != PlanShiftInsert {
		t.Errorf("Units = %+v, want one shift-insert", res.Units)
	}
	wantUnits := map[int]string{1: "U1", 2: "New", 3: "U2", 4: "U3"}
	if diff := cmp.Diff(wantUnits, f.units(t, "go-101")); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
	wantRows := []row{
		{Pos: 1, Heading: "P1", Unit: 1},
		{Pos: 2, Heading: "PN", Unit: 2},
		{Pos: 3, Heading: "P2", Unit: 3},
		{Pos: 4, Heading: "P3", Unit: 4},
	}
	if diff := cmp.Diff(wantRows, f.placements(t, "go-101")); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_UnitModeCreatesCourse(t *testing.T) {
	f := newFixture(t)
	text := "* Second\n:PROPERTIES:\n:POSITION: 2\n:END:\n** B\n* First\n:PROPERTIES:\n:POSITION: 1\n:END:\n** A\n"
	res := f.mustImport(t, text, Options{Mode: ModeUnits})

	if !res.CourseCreated {
		t.Error("CourseCreated = false, want true")
	}
	want := []row{
		{Pos: 1, Heading: "A", Unit: 1},
		{Pos: 2, Heading: "B", Unit: 2},
	}
	if diff := cmp.Diff(want, f.placements(t, "go-101")); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_UnitModeReplace(t *testing.T) {
	text := "* Replacement\n:PROPERTIES:\n:POSITION: 2\n:END:\n** P2\n** PX\n"

	t.Run("confirmed", func(t *testing.T) {
		f := newFixture(t)
		f.mustImport(t, threeUnits, Options{})

		res := f.mustImport(t, "* Replacement\n:PROPERTIES:\n:POSITION: 2\n:END:\n** Q\n", Options{Mode: ModeUnits})
		if res.Units[0].Plan != PlanReplace {
			t.Errorf("Plan = %v, want replace", res.Units[0].Plan)
		}
		want := []row{
			{Pos: 1, Heading: "P1", Unit: 1},
			{Pos: 2, Heading: "Q", Unit: 2},
			{Pos: 3, Heading: "P3", Unit: 3},
		}
		if diff := cmp.Diff(want, f.placements(t, "go-101")); diff != "" {
			t.Errorf("placements mismatch (-want +got):\n%s", diff)
		}
		// Points outlive their placements.
		if _, err := f.db.FindPoint(context.Background(), "P2"); err != nil {
			t.Errorf("FindPoint(P2) failed: %v", err)
		}
	})

	t.Run("declined skips only that unit", func(t *testing.T) {
		f := newFixture(t)
		f.mustImport(t, threeUnits, Options{})

		res, err := f.importText(t, prompt.Always(false), text, Options{Mode: ModeUnits})
		if err != nil {
			t.Fatalf("Import() failed: %v", err)
		}
		if res.Units[0].Plan != PlanSkip {
			t.Errorf("Plan = %v, want skip", res.Units[0].Plan)
		}
		if got := f.units(t, "go-101")[2]; got != "U2" {
			t.Errorf("unit 2 = %q, want the original U2", got)
		}
		want := []row{
			{Pos: 1, Heading: "PX"},
			{Pos: 2, Heading: "P1", Unit: 1},
			{Pos: 3, Heading: "P2", Unit: 2},
			{Pos: 4, Heading: "P3", Unit: 3},
		}
		if diff := cmp.Diff(want, f.placements(t, "go-101")); diff != "" {
			t.Errorf("placements mismatch (-want +got):\n%s", diff)
		}
		skipped := false
		for _, w := range res.Warnings {
			skipped = skipped || w.Kind == UnitSkipped
		}
		if !skipped {
			t.Errorf("Warnings = %v, want unit-skipped", res.Warnings)
		}
	})
}

func TestImport_UnitFilter(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, threeUnits, Options{})

	text := `** Loose
* New1
:PROPERTIES:
:POSITION: 1
:END:
** A
* New3
:PROPERTIES:
:POSITION: 3
:END:
** C
`
	f.mustImport(t, text, Options{Mode: ModeUnits, Units: []int{3}, Force: true})

	want := map[int]string{1: "U1", 2: "U2", 3: "New3"}
	if diff := cmp.Diff(want, f.units(t, "go-101")); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
	for _, heading := range []string{"Loose", "A"} {
		if _, err := f.db.FindPoint(context.Background(), heading); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("FindPoint(%q) error = %v, want filtered out", heading, err)
		}
	}
}

func TestImport_PreflightErrors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		opts  Options
		check func(error) bool
	}{
		{
			name:  "missing position",
			text:  "* U\n** P\n",
			opts:  Options{Mode: ModeUnits},
			check: func(err error) bool { var e *MissingPositionError; return errors.As(err, &e) },
		},
		{
			name:  "invalid position",
			text:  "* U\n:PROPERTIES:\n:POSITION: first\n:END:\n",
			opts:  Options{Mode: ModeUnits},
			check: func(err error) bool { var e *InvalidPositionError; return errors.As(err, &e) },
		},
		{
			name: "duplicate position",
			text: "* A\n:PROPERTIES:\n:POSITION: 2\n:END:\n* B\n:PROPERTIES:\n:POSITION: 2\n:END:\n",
			opts: Options{Mode: ModeUnits},
			check: func(err error) bool {
				var e *DuplicatePositionError
				return errors.As(err, &e) && e.Position == 2 && len(e.Headings) == 2
			},
		},
		{
			name:  "unknown user",
			text:  "* U\n",
			opts:  Options{User: "mallory"},
			check: func(err error) bool { return errors.Is(err, ErrUserNotFound) },
		},
		{
			name:  "markdown",
			text:  "* U\n",
			opts:  Options{Format: FormatMarkdown},
			check: func(err error) bool { return errors.Is(err, ErrUnsupportedFormat) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.counts(t)

			_, err := f.importText(t, prompt.Always(true), tt.text, tt.opts)
			if err == nil || !tt.check(err) {
				t.Fatalf("Import() error = %v", err)
			}
			if !IsPreflight(err) {
				t.Errorf("IsPreflight(%v) = false", err)
			}
			if diff := cmp.Diff(before, f.counts(t)); diff != "" {
				t.Errorf("store changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImport_UnknownTypeRollsBack(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, threeUnits, Options{})
	before := f.counts(t)

	text := `* New1
:PROPERTIES:
:POSITION: 1
:END:
** A
* New2
:PROPERTIES:
:POSITION: 2
:END:
** B
:PROPERTIES:
:TYPE: lab
:END:
`
	_, err := f.importText(t, prompt.Always(true), text, Options{Mode: ModeUnits, Force: true})
	var unknown *UnknownPointTypeError
	if !errors.As(err, &unknown) || unknown.Type != "lab" {
		t.Fatalf("Import() error = %v, want UnknownPointTypeError for lab", err)
	}
	if IsPreflight(err) {
		t.Error("IsPreflight() = true for an error raised mid-transaction")
	}

	if diff := cmp.Diff(before, f.counts(t)); diff != "" {
		t.Errorf("store changed (-want +got):\n%s", diff)
	}
	if got := f.units(t, "go-101")[1]; got != "U1" {
		t.Errorf("unit 1 = %q, want U1 after rollback", got)
	}
}

func TestImport_DryRun(t *testing.T) {
	f := newFixture(t)
	before := f.counts(t)

	res := f.mustImport(t, threeUnits, Options{DryRun: true})
	if !res.DryRun || len(res.Units) != 3 || res.Points != 3 {
		t.Errorf("Result = %+v, want a dry run over 3 units and 3 points", res)
	}
	if diff := cmp.Diff(before, f.counts(t)); diff != "" {
		t.Errorf("dry run changed the store (-want +got):\n%s", diff)
	}
}

func TestImportFile(t *testing.T) {
	f := newFixture(t)
	im := New(f.db, nil, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "course.org")
	if err := os.WriteFile(path, []byte("* U\n** TODO Loop\n:PROPERTIES:\n:TYPE: exercise\n:END:\n"), 0644); err != nil {
		t.Fatalf("failed to write outline: %v", err)
	}

	res, err := im.ImportFile(ctx, path, Options{Course: "go-101", User: "alice"})
	if err != nil {
		t.Fatalf("ImportFile() failed: %v", err)
	}
	if res.Points != 1 {
		t.Errorf("Points = %d, want 1", res.Points)
	}
	if got := f.placements(t, "go-101"); len(got) != 1 || got[0].State != "todo" {
		t.Errorf("placements = %+v, want Loop in state todo", got)
	}

	_, err = im.ImportFile(ctx, filepath.Join(t.TempDir(), "missing.org"), Options{Course: "go-101", User: "alice"})
	if !errors.Is(err, ErrInputFileNotFound) {
		t.Errorf("ImportFile(missing) error = %v, want ErrInputFileNotFound", err)
	}

	_, err = im.ImportFile(ctx, t.TempDir(), Options{Course: "go-101", User: "alice"})
	if !errors.Is(err, ErrInputFileNotFound) {
		t.Errorf("ImportFile(dir) error = %v, want ErrInputFileNotFound", err)
	}
}

func TestImporter_Renumber(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, threeUnits, Options{})
	im := New(f.db, nil, nil)

	n, err := im.Renumber(context.Background(), "go-101", "alice")
	if err != nil {
		t.Fatalf("Renumber() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Renumber() changed %d positions on a dense course, want 0", n)
	}

	if _, err := im.Renumber(context.Background(), "nope", "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Renumber(missing course) error = %v, want ErrNotFound", err)
	}
}
