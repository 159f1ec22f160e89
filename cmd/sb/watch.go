package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syllabooster/syllabooster/internal/importer"
	"github.com/syllabooster/syllabooster/internal/ui"
	"github.com/syllabooster/syllabooster/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:     "watch COURSE FILE",
	GroupID: "import",
	Short:   "Re-import a course every time its outline changes",
	Long: `Watch FILE and replace COURSE with it on every save.

Each import runs in course mode without asking, as 'sb import course
--force' would. A failed import is reported and the previous state of the
course is kept. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		course, file := args[0], args[1]
		if strings.TrimSpace(cfg.User) == "" {
			return errors.New("no user given: pass --user or set user in the config file")
		}

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		imp := importer.New(db, nil, logger)
		opts := importer.Options{
			Course:       course,
			User:         cfg.User,
			Mode:         importer.ModeCourse,
			Force:        true,
			DefaultType:  cfg.Import.DefaultType,
			ShiftOffset:  cfg.Import.ShiftOffset,
			TodoKeywords: cfg.Import.TodoKeywords,
		}

		// Import once up front so the course matches the file before the
		// first edit.
		res, err := imp.ImportFile(ctx, file, opts)
		if err != nil {
			return err
		}
		printResult(cmd, course, res)

		w, err := watch.New(file, watchDebounce, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s Watching %s (Ctrl-C to stop)\n", ui.RenderAccent("👀"), w.Path())

		return watch.Serve(ctx, w, func(ctx context.Context, c watch.Change) error {
			res, err := imp.ImportFile(ctx, c.Path, opts)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", ui.RenderFail("Error:"), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", ui.RenderMuted(c.At.Format("15:04:05")))
			printResult(cmd, course, res)
			return nil
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-importing")
	rootCmd.AddCommand(watchCmd)
}
