package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd(g *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete processed records older than a number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("days") {
					days = a.cfg.Storage.RetentionDays
				}
				if days <= 0 {
					return errors.New("no retention configured: pass --days or set storage.retention_days")
				}
				n, err := a.store.CleanupOld(ctx, days)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Removed %d records older than %d days.\n", n, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default storage.retention_days)")
	return cmd
}

func newResetCmd(g *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every processed record so all articles are treated as new",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes all processed records; rerun with --yes to confirm")
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				n, err := a.store.Reset(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Removed %d records.\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
