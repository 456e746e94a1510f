package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"attendance/internal/app"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo users and students (SEED_FILE overrides the built-in fixture)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			res, err := a.Seed(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "students: %d created, %d skipped\nusers: %d created, %d skipped\n",
				res.StudentsCreated, res.StudentsSkipped, res.UsersCreated, res.UsersSkipped)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
