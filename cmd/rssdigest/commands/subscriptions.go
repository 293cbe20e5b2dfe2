package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubscriptionsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "List the feeds that a run would read",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				subs, err := a.subscriptions()
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(a.out, subs)
				}
				for i, s := range subs {
					if s.Title != "" {
						fmt.Fprintf(a.out, "%3d. %s (%s)\n", i+1, s.URL, s.Title)
					} else {
						fmt.Fprintf(a.out, "%3d. %s\n", i+1, s.URL)
					}
				}
				return nil
			})
		},
	}
}
