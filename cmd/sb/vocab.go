package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syllabooster/syllabooster/internal/ui"
	"github.com/syllabooster/syllabooster/internal/vocab"
)

var vocabCmd = &cobra.Command{
	Use:     "vocab",
	GroupID: "manage",
	Short:   "Manage point types and delivery states",
}

var vocabLoadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load point types and delivery states from a TOML or YAML file",
	Long: `Load point types and their delivery states from FILE.

Types and states are matched by name and updated in place; nothing is
deleted. The order of the states in the file is their position.

Example (TOML):

  [[point_types]]
  name = "exercise"

  [[point_types.states]]
  name = "todo"
  display_name = "To do"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := vocab.Read(args[0])
		if err != nil {
			return err
		}

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		sum, err := vocab.Load(ctx, db, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Loaded %d point type(s) and %d state(s)\n",
			ui.RenderPass("✓"), sum.PointTypes, sum.States)
		return nil
	},
}

var vocabListCmd = &cobra.Command{
	Use:   "list",
	Short: "List point types and their delivery states",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		types, err := db.ListPointTypes(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(types) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("No point types. Load some with 'sb vocab load FILE'."))
			return nil
		}
		for _, pt := range types {
			states, err := db.ListDeliveryStates(ctx, pt.ID)
			if err != nil {
				return err
			}
			labels := make([]string, 0, len(states))
			for _, s := range states {
				labels = append(labels, s.Label())
			}
			name := pt.Name
			if pt.Icon != "" {
				name = pt.Icon + " " + name
			}
			fmt.Fprintf(out, "%s %s\n", ui.RenderAccent(name), ui.RenderMuted(strings.Join(labels, " → ")))
		}
		return nil
	},
}

func init() {
	vocabCmd.AddCommand(vocabLoadCmd, vocabListCmd)
	rootCmd.AddCommand(vocabCmd)
}
