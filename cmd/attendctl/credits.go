package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"attendance/internal/app"
	"attendance/internal/auth"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and replenish staff correction credits",
}

var creditsShowCmd = &cobra.Command{
	Use:   "show <staff-email>",
	Short: "Print a staff member's balance and audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		staffID := auth.NormalizeIdentifier(args[0])
		return withApp(cmd, func(a *app.App) error {
			b, err := a.Ledger.Balance(cmd.Context(), staffID)
			if err != nil {
				return err
			}
			history, err := a.Ledger.History(cmd.Context(), staffID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d/%d used, %d remaining (period %d)\n", b.StaffID, b.Consumed, b.Total, b.Remaining(), b.Period)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tKIND\tAMOUNT\tPERIOD\tREFERENCE")
			for _, e := range history {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.At.Format(time.RFC3339), e.Kind, e.Amount, e.Period, e.Reference)
			}
			return tw.Flush()
		})
	},
}

var creditsResetCmd = &cobra.Command{
	Use:   "reset <staff-email>",
	Short: "Start a new credit period for a staff member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			u, err := a.Users.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("staff %s: %w", args[0], err)
			}
			if u.Role != auth.RoleStaff {
				return fmt.Errorf("%s is a %s account, not staff", u.Email, u.Role)
			}
			b, err := a.Ledger.Reset(cmd.Context(), u.Email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: period %d, %d credits available\n", b.StaffID, b.Period, b.Remaining())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(creditsShowCmd, creditsResetCmd)
}
