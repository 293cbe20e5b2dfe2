// Package digest renders stored summaries as a readable report.
package digest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts json, markdown (or md) and html.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown export format %q: want json, markdown or html", s)
}

// Digest is a titled set of records covering one range.
type Digest struct {
	Title       string                   `json:"title"`
	Range       timerange.TimeRange      `json:"range"`
	GeneratedAt time.Time                `json:"generated_at"`
	Articles    []models.ProcessedRecord `json:"articles"`
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Write encodes d to w in the given format.
func Write(w io.Writer, d Digest, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encoding digest: %w", err)
		}
		return nil
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(d))
		return err
	case FormatHTML:
		return writeHTML(w, d)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// Markdown renders d as a markdown document grouped by source.
func Markdown(d Digest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", escape(d.Title))
	fmt.Fprintf(&sb, "_%s to %s, %d articles_\n\n",
		d.Range.Start.Format("2006-01-02 15:04"),
		d.Range.End.Format("2006-01-02 15:04"),
		len(d.Articles))

	if len(d.Articles) == 0 {
		sb.WriteString("No articles in this time range.\n")
		return sb.String()
	}

	source := ""
	for _, rec := range d.Articles {
		if name := sourceLabel(rec); name != source {
			source = name
			fmt.Fprintf(&sb, "## %s\n\n", escape(source))
		}
		if rec.Link != "" {
			fmt.Fprintf(&sb, "### [%s](%s)\n\n", escape(rec.Title), rec.Link)
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", escape(rec.Title))
		}
		if rec.PublishedAt != nil {
			fmt.Fprintf(&sb, "*Published %s*\n\n", rec.PublishedAt.Format("2006-01-02 15:04"))
		}
		if s := strings.TrimSpace(rec.Summary()); s != "" {
			sb.WriteString(s)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.55; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: .2rem; }
h3 { margin-bottom: .2rem; }
</style>
</head>
<body>
`

func writeHTML(w io.Writer, d Digest) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(d)), &body); err != nil {
		return fmt.Errorf("rendering digest html: %w", err)
	}
	if _, err := fmt.Fprintf(w, htmlHead, htmlEscaper.Replace(d.Title)); err != nil {
		return err
	}
	if _, err := body.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}

func sourceLabel(rec models.ProcessedRecord) string {
	if rec.SourceName != "" {
		return rec.SourceName
	}
	return rec.SourceFeed
}

var (
	mdEscaper   = strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`)
	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
