// Package commands implements the rssdigest command line.
package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	json       bool
}

// NewRootCmd builds the command tree. Running the root command without a
// subcommand performs a pipeline run.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	run := newRunCmd(opts)

	root := &cobra.Command{
		Use:   "rssdigest",
		Short: "Fetch RSS feeds, summarize new articles and push a digest",
		Long: `rssdigest reads subscribed RSS/Atom feeds, skips articles it has already
processed, summarizes the rest with an LLM and pushes the summaries to
WeCom or Telegram.

Without a subcommand it behaves like "rssdigest run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.toml",
		"Path to config file (TOML, or YAML with a .yaml/.yml extension)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"Enable debug logging")
	root.PersistentFlags().BoolVar(&opts.json, "json", false,
		"Print results as JSON")

	// The bare root command accepts the run flags too.
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run)
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newArticlesCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newCleanupCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newSubscriptionsCmd(opts))

	return root
}

// Execute runs the CLI under ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
