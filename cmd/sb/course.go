package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syllabooster/syllabooster/internal/importer"
	"github.com/syllabooster/syllabooster/internal/snapshot"
	"github.com/syllabooster/syllabooster/internal/ui"
)

var exportOutput string

var courseCmd = &cobra.Command{
	Use:     "course",
	GroupID: "manage",
	Short:   "Inspect and maintain courses",
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the courses of the user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := currentUser(ctx, db)
		if err != nil {
			return err
		}
		courses, err := db.ListCourses(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, c := range courses {
			fmt.Fprintln(cmd.OutOrStdout(), c.Name)
		}
		return nil
	},
}

var courseShowCmd = &cobra.Command{
	Use:   "show COURSE",
	Short: "Show the units and points of a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := currentUser(ctx, db)
		if err != nil {
			return err
		}
		course, err := db.FindCourse(ctx, args[0], user.ID)
		if err != nil {
			return err
		}
		snap, err := snapshot.Build(ctx, db, course, user.Username)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n%s %s\n", ui.RenderAccent(snap.Name), ui.RenderMuted("("+snap.User+")"))

		titles := make(map[int]string, len(snap.Units))
		for _, u := range snap.Units {
			titles[u.Position] = u.Title
		}
		current := -1
		for _, pl := range snap.Points {
			unit := 0
			if pl.UnitPosition != nil {
				unit = *pl.UnitPosition
			}
			if unit != current {
				current = unit
				if unit == 0 {
					fmt.Fprintf(out, "\n%s\n", ui.RenderMuted("(no unit)"))
				} else {
					fmt.Fprintf(out, "\n%d. %s\n", unit, titles[unit])
				}
			}

			line := fmt.Sprintf("  %3d  %s", pl.Position, pl.Heading)
			if pl.State != "" {
				line += " " + ui.RenderWarn("["+pl.State+"]")
			}
			if len(pl.Tags) > 0 {
				line += " " + ui.RenderMuted(":"+strings.Join(pl.Tags, ":")+":")
			}
			fmt.Fprintln(out, line)
		}
		// Units without points.
		for _, u := range snap.Units {
			if !hasPoints(snap, u.Position) {
				fmt.Fprintf(out, "\n%d. %s %s\n", u.Position, u.Title, ui.RenderMuted("(empty)"))
			}
		}
		fmt.Fprintln(out)
		return nil
	},
}

func hasPoints(snap *snapshot.Course, unit int) bool {
	for _, pl := range snap.Points {
		if pl.UnitPosition != nil && *pl.UnitPosition == unit {
			return true
		}
	}
	return false
}

var courseRenumberCmd = &cobra.Command{
	Use:   "renumber COURSE",
	Short: "Renumber the points of a course 1..N",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := currentUser(ctx, db); err != nil {
			return err
		}
		changed, err := importer.New(db, nil, logger).Renumber(ctx, args[0], cfg.User)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Renumbered %s (%d position(s) changed)\n",
			ui.RenderPass("✓"), ui.RenderAccent(args[0]), changed)
		return nil
	},
}

var courseExportCmd = &cobra.Command{
	Use:   "export COURSE",
	Short: "Write a JSON snapshot of a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := currentUser(ctx, db)
		if err != nil {
			return err
		}
		course, err := db.FindCourse(ctx, args[0], user.ID)
		if err != nil {
			return err
		}
		snap, err := snapshot.Build(ctx, db, course, user.Username)
		if err != nil {
			return err
		}

		path := exportOutput
		if path == "" {
			path = snapshot.BackupPath(".", user.Username, course.Name, snap.TakenAt)
		}
		if err := snapshot.Write(snap, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %d unit(s) and %d point(s) to %s\n",
			ui.RenderPass("✓"), len(snap.Units), len(snap.Points), path)
		return nil
	},
}

func init() {
	courseExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default USER--COURSE--TIMESTAMP.json)")

	courseCmd.AddCommand(courseListCmd, courseShowCmd, courseRenumberCmd, courseExportCmd)
	rootCmd.AddCommand(courseCmd)
}
