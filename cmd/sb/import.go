package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syllabooster/syllabooster/internal/importer"
	"github.com/syllabooster/syllabooster/internal/prompt"
	"github.com/syllabooster/syllabooster/internal/ui"
)

var importFlags struct {
	format string
	units  []int
	insert bool
	force  bool
	dryRun bool
	backup string
}

var importCmd = &cobra.Command{
	Use:     "import",
	GroupID: "import",
	Short:   "Import an org outline into a course",
	Long: `Import an org outline into a course.

Level-1 headlines become units and level-2 headlines become points. Deeper
headlines are part of the body of the point above them. A point's TODO
keyword sets its delivery state and its TYPE property selects the point
type.`,
}

var importCourseCmd = &cobra.Command{
	Use:   "course COURSE FILE",
	Short: "Replace a whole course with an outline",
	Long: `Replace a whole course with the contents of FILE.

Units are numbered in document order. If the course already exists you are
asked once before it is deleted; --force skips the question and --backup
writes a JSON snapshot of the old course first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], args[1], importer.ModeCourse)
	},
}

var importUnitCmd = &cobra.Command{
	Use:   "unit COURSE FILE",
	Short: "Import units into an existing course",
	Long: `Import the units of FILE into COURSE, each at its POSITION property.

An occupied position is replaced after confirmation (declining skips that
unit), or, with --insert, the units from that position on move up by one.
--unit limits the import to the given positions.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], args[1], importer.ModeUnits)
	},
}

func init() {
	for _, c := range []*cobra.Command{importCourseCmd, importUnitCmd} {
		c.Flags().StringVarP(&importFlags.format, "format", "t", importer.FormatOrg, "input format (org, md)")
		c.Flags().BoolVarP(&importFlags.force, "force", "f", false, "replace without asking")
		c.Flags().BoolVar(&importFlags.dryRun, "dry-run", false, "run the import and roll it back")
	}
	importCourseCmd.Flags().StringVar(&importFlags.backup, "backup", "", "directory for a snapshot of the replaced course")
	importUnitCmd.Flags().IntSliceVarP(&importFlags.units, "unit", "n", nil, "only import the unit at this position (repeatable)")
	importUnitCmd.Flags().BoolVarP(&importFlags.insert, "insert", "i", false, "shift existing units up instead of replacing them")

	importCmd.AddCommand(importCourseCmd, importUnitCmd)
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, course, file string, mode importer.Mode) error {
	ctx := cmd.Context()
	if strings.TrimSpace(cfg.User) == "" {
		return errors.New("no user given: pass --user or set user in the config file")
	}

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	imp := importer.New(db, prompt.New(os.Stdin, cmd.OutOrStdout()), logger)
	res, err := imp.ImportFile(ctx, file, importer.Options{
		Course:       course,
		User:         cfg.User,
		Format:       importFlags.format,
		Mode:         mode,
		Units:        importFlags.units,
		Insert:       importFlags.insert,
		Force:        importFlags.force,
		DefaultType:  cfg.Import.DefaultType,
		ShiftOffset:  cfg.Import.ShiftOffset,
		TodoKeywords: cfg.Import.TodoKeywords,
		DryRun:       importFlags.dryRun,
		BackupDir:    importFlags.backup,
	})
	if errors.Is(err, importer.ErrDeclined) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Import cancelled, course %s left unchanged\n", ui.RenderWarn("⚠"), course)
		return nil
	}
	if err != nil {
		return err
	}

	printResult(cmd, course, res)
	return nil
}

func printResult(cmd *cobra.Command, course string, res *importer.Result) {
	out := cmd.OutOrStdout()

	verb := "Imported"
	if res.DryRun {
		verb = "Would import"
	}
	fmt.Fprintf(out, "%s %s %s\n", ui.RenderPass("✓"), verb, ui.RenderAccent(course))
	switch {
	case res.CourseReplaced:
		fmt.Fprintf(out, "   Course: replaced\n")
	case res.CourseCreated:
		fmt.Fprintf(out, "   Course: created\n")
	}
	if res.BackupPath != "" {
		fmt.Fprintf(out, "   Backup: %s\n", res.BackupPath)
	}

	for _, u := range res.Units {
		fmt.Fprintf(out, "   Unit %d: %s %s\n", u.Position, u.Title, ui.RenderMuted("("+u.Plan.String()+")"))
	}
	fmt.Fprintf(out, "   Points: %d\n", res.Points)
	if res.Renumbered > 0 {
		fmt.Fprintf(out, "   Renumbered: %d\n", res.Renumbered)
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(out, "\n%s %d warning(s)\n", ui.RenderWarn("⚠"), len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "   %s\n", strings.TrimSpace(w.String()))
		}
	}
	if res.DryRun {
		fmt.Fprintf(out, "\n%s\n", ui.RenderMuted("Dry run: nothing was written."))
	}
}
