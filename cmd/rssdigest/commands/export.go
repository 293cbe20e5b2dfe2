package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/rssdigest/internal/digest"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

type exportOptions struct {
	format string
	output string
	start  string
	end    string
	hours  int
	title  string
}

func newExportCmd(g *globalOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export summarized articles in a range as JSON, markdown or HTML",
		Example: `  rssdigest export --format html -o digest.html
  rssdigest export --format json --start 2024-01-01 --end 2024-02-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := digest.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				tr, err := a.resolver().Resolve(timerange.Bounds{Start: opts.start, End: opts.end, Hours: opts.hours})
				if err != nil {
					return err
				}
				records, err := a.store.SummarizedInRange(ctx, tr.Start, tr.End)
				if err != nil {
					return err
				}

				title := opts.title
				if title == "" {
					title = a.cfg.Notify.Title
				}
				d := digest.Digest{
					Title:       title,
					Range:       tr,
					GeneratedAt: time.Now().UTC(),
					Articles:    records,
				}

				if opts.output == "" || opts.output == "-" {
					return digest.Write(a.out, d, format)
				}
				f, err := os.Create(opts.output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", opts.output, err)
				}
				if err := digest.Write(f, d, format); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				a.logger.Info("exported digest", "path", opts.output, "format", format, "articles", len(records))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "html", "Output format: json, markdown or html")
	f.StringVarP(&opts.output, "output", "o", "", "Write to this file instead of stdout")
	f.StringVar(&opts.start, "start", "", "Range start (inclusive)")
	f.StringVar(&opts.end, "end", "", "Range end (exclusive, default now)")
	f.IntVar(&opts.hours, "hours", 0, "Rolling window in hours ending at --end")
	f.StringVar(&opts.title, "title", "", "Digest title (default notify.title)")
	cmd.MarkFlagsMutuallyExclusive("start", "hours")

	return cmd
}
