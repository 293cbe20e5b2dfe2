package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/rssdigest/internal/models"
)

func newStatsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processed article statistics and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				stats, err := a.store.Statistics(ctx)
				if err != nil {
					return err
				}
				runs, err := a.store.RecentRuns(ctx, 5)
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(a.out, struct {
						Stats *models.Stats      `json:"stats"`
						Runs  []models.RunResult `json:"recent_runs"`
					}{stats, runs})
				}
				printStats(a.out, stats, runs)
				return nil
			})
		},
	}
}

func printStats(w io.Writer, s *models.Stats, runs []models.RunResult) {
	fmt.Fprintln(w, "Processed articles")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Total: %d\n", s.Total)

	statuses := make([]models.Status, 0, len(s.ByStatus))
	for st := range s.ByStatus {
		statuses = append(statuses, st)
	}
	slices.Sort(statuses)
	for _, st := range statuses {
		fmt.Fprintf(w, "  %-22s %d\n", st+":", s.ByStatus[st])
	}
	if s.Oldest != nil && s.Newest != nil {
		fmt.Fprintf(w, "Oldest: %s\nNewest: %s\n", s.Oldest.Format(time.RFC3339), s.Newest.Format(time.RFC3339))
	}

	if len(s.BySource) > 0 {
		fmt.Fprintln(w, "\nTop sources")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for _, sc := range s.BySource {
			name := sc.SourceName
			if name == "" {
				name = sc.SourceFeed
			}
			fmt.Fprintf(w, "  %4d  %s\n", sc.Count, name)
		}
	}

	if len(runs) > 0 {
		fmt.Fprintln(w, "\nRecent runs")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for _, r := range runs {
			fmt.Fprintf(w, "  %s  %-9s summarized=%d failed=%d notified=%d\n",
				r.FinishedAt.Format("2006-01-02 15:04"), r.Mode, r.Summarized,
				r.ExtractionFailed+r.SummarizationFailed, r.Notified)
		}
	}
}
