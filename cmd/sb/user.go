package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syllabooster/syllabooster/internal/ui"
)

var userCmd = &cobra.Command{
	Use:     "user",
	GroupID: "manage",
	Short:   "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := db.CreateUser(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Created user %s\n", ui.RenderPass("✓"), ui.RenderAccent(user.Username))
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := db.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("No users. Create one with 'sb user add NAME'."))
			return nil
		}
		for _, u := range users {
			fmt.Fprintln(cmd.OutOrStdout(), u.Username)
		}
		return nil
	},
}

func init() {
	userCmd.AddCommand(userAddCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}
