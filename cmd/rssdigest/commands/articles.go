package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/storage"
)

type articlesOptions struct {
	status  string
	source  string
	keyword string
	start   string
	end     string
	limit   int
	offset  int
}

func newArticlesCmd(g *globalOptions) *cobra.Command {
	opts := &articlesOptions{}

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List processed articles, newest first",
		Example: `  rssdigest articles --limit 5
  rssdigest articles --keyword golang --status summarized
  rssdigest articles --start "2 days ago"
  rssdigest articles show <identity>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				filter, err := opts.filter(a)
				if err != nil {
					return err
				}
				records, err := a.store.ListRecords(ctx, filter)
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(a.out, records)
				}
				printRecords(a.out, records)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.status, "status", "", "Filter by status (summarized, extraction_failed, summarization_failed)")
	f.StringVar(&opts.source, "source", "", "Filter by feed URL")
	f.StringVarP(&opts.keyword, "keyword", "k", "", "Match title, summary or link")
	f.StringVar(&opts.start, "start", "", "Published at or after")
	f.StringVar(&opts.end, "end", "", "Published before")
	f.IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of articles")
	f.IntVar(&opts.offset, "offset", 0, "Skip this many articles")

	cmd.AddCommand(newArticleShowCmd(g))
	return cmd
}

func (o *articlesOptions) filter(a *app) (storage.RecordFilter, error) {
	f := storage.RecordFilter{
		Status:     models.Status(o.status),
		SourceFeed: o.source,
		Query:      o.keyword,
		Limit:      o.limit,
		Offset:     o.offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("unknown status %q", o.status)
	}
	r := a.resolver()
	if o.start != "" {
		t, err := r.ParsePoint(o.start)
		if err != nil {
			return f, err
		}
		f.Start = &t
	}
	if o.end != "" {
		t, err := r.ParsePoint(o.end)
		if err != nil {
			return f, err
		}
		f.End = &t
	}
	return f, nil
}

func newArticleShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <identity>",
		Short: "Show one article with its full summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				rec, err := a.store.GetRecord(ctx, args[0])
				if err != nil {
					return fmt.Errorf("article %s: %w", args[0], err)
				}
				if a.json {
					return printJSON(a.out, rec)
				}
				printRecordFull(a.out, rec)
				return nil
			})
		},
	}
}

func printRecords(w io.Writer, records []models.ProcessedRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return
	}
	for i, rec := range records {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, rec.Status, rec.Title)
		fmt.Fprintf(w, "   %s | %s\n", recordTime(rec), sourceOf(rec))
		if rec.Link != "" {
			fmt.Fprintf(w, "   %s\n", rec.Link)
		}
		if s := rec.Summary(); s != "" {
			fmt.Fprintf(w, "   %s\n", preview(s, 160))
		} else if rec.FailureReason != "" {
			fmt.Fprintf(w, "   reason: %s\n", rec.FailureReason)
		}
		fmt.Fprintf(w, "   id: %s\n", rec.Identity)
	}
}

func printRecordFull(w io.Writer, rec *models.ProcessedRecord) {
	fmt.Fprintln(w, rec.Title)
	fmt.Fprintf(w, "Status:    %s\n", rec.Status)
	fmt.Fprintf(w, "Source:    %s\n", sourceOf(*rec))
	fmt.Fprintf(w, "Link:      %s\n", rec.Link)
	fmt.Fprintf(w, "Published: %s\n", recordTime(*rec))
	fmt.Fprintf(w, "Processed: %s\n", rec.ProcessedAt.Format(time.RFC3339))
	if rec.Language != "" {
		fmt.Fprintf(w, "Language:  %s\n", rec.Language)
	}
	if rec.Model != "" {
		fmt.Fprintf(w, "Model:     %s\n", rec.Model)
	}
	if rec.FailureReason != "" {
		fmt.Fprintf(w, "Reason:    %s\n", rec.FailureReason)
	}
	if s := rec.Summary(); s != "" {
		fmt.Fprintf(w, "\n%s\n", s)
	}
}

func recordTime(rec models.ProcessedRecord) string {
	if rec.PublishedAt == nil {
		return "undated"
	}
	return rec.PublishedAt.Format("2006-01-02 15:04")
}

func sourceOf(rec models.ProcessedRecord) string {
	if rec.SourceName != "" {
		return rec.SourceName
	}
	return rec.SourceFeed
}
