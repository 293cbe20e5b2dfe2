package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/pipeline"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

type runOptions struct {
	start    string
	end      string
	hours    int
	force    bool
	noPush   bool
	pushOnly bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, summarize and push articles in a time range",
		Long: `Run one pass over every subscribed feed.

The range defaults to the last feeds.default_window_hours hours. --start and
--end accept RFC3339 timestamps, dates such as 2024-01-31, "now" and relative
phrases such as "3 days ago".`,
		Example: `  rssdigest run
  rssdigest run --hours 6
  rssdigest run --start 2024-01-01 --end 2024-01-02 --no-push
  rssdigest run --push-only --start "1 day ago"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				return runPipeline(ctx, a, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "Range start (inclusive)")
	f.StringVar(&opts.end, "end", "", "Range end (exclusive, default now)")
	f.IntVar(&opts.hours, "hours", 0, "Rolling window in hours ending at --end")
	f.BoolVar(&opts.force, "force", false, "Reprocess articles that were already summarized")
	f.BoolVar(&opts.noPush, "no-push", false, "Process and store articles without notifying")
	f.BoolVar(&opts.pushOnly, "push-only", false, "Re-send stored summaries in the range without fetching")

	cmd.MarkFlagsMutuallyExclusive("push-only", "force")
	cmd.MarkFlagsMutuallyExclusive("push-only", "no-push")
	cmd.MarkFlagsMutuallyExclusive("start", "hours")

	return cmd
}

func runPipeline(ctx context.Context, a *app, opts *runOptions) error {
	bounds := timerange.Bounds{Start: opts.start, End: opts.end, Hours: opts.hours}

	p, err := a.pipeline(!opts.pushOnly)
	if err != nil {
		return err
	}

	var res *models.RunResult
	if opts.pushOnly {
		res, err = p.PushOnly(ctx, bounds)
	} else {
		res, err = p.Run(ctx, pipeline.RunOptions{Range: bounds, Force: opts.force, DryRun: opts.noPush})
	}
	if res != nil {
		if a.json {
			if perr := printJSON(a.out, res); perr != nil && err == nil {
				err = perr
			}
		} else {
			printRunResult(a.out, res)
		}
	}
	return err
}

func printRunResult(w io.Writer, r *models.RunResult) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.Mode)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Range:                %s - %s\n", r.RangeStart.Format(time.RFC3339), r.RangeEnd.Format(time.RFC3339))
	if r.Mode == models.RunModeFull {
		fmt.Fprintf(w, "Fetched:              %d\n", r.Fetched)
		fmt.Fprintf(w, "Skipped (duplicate):  %d\n", r.SkippedDuplicate)
		fmt.Fprintf(w, "Summarized:           %d\n", r.Summarized)
		fmt.Fprintf(w, "Extraction failed:    %d\n", r.ExtractionFailed)
		fmt.Fprintf(w, "Summarization failed: %d\n", r.SummarizationFailed)
	}
	fmt.Fprintf(w, "Notified:             %d\n", r.Notified)
	if r.NotifyFailed > 0 {
		fmt.Fprintf(w, "Notify failed:        %d\n", r.NotifyFailed)
	}
	if len(r.FailedFeeds) > 0 {
		fmt.Fprintf(w, "Failed feeds:         %s\n", strings.Join(r.FailedFeeds, ", "))
	}
	fmt.Fprintf(w, "Duration:             %s\n", r.Duration().Round(time.Millisecond))
}
