package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hoanghai1803/rssdigest/internal/models"
)

var recordColumnList = []string{
	"identity", "status", "title", "link", "summary_text", "source_feed", "source_name",
	"published_at", "language", "model", "failure_reason", "run_id", "processed_at",
}

var recordColumns = strings.Join(recordColumnList, ", ")

// IsProcessed reports whether identity has a record with status summarized.
// Records in any failure status are eligible for another attempt.
func (s *Store) IsProcessed(ctx context.Context, identity string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_articles WHERE identity = ? AND status = ?)`,
		identity, models.StatusSummarized,
	).Scan(&exists)
	if err != nil {
		return false, unavailable("is_processed", fmt.Errorf("checking identity %s: %w", identity, err))
	}
	return exists, nil
}

// Mark inserts the record or replaces the existing row with the same identity.
// A failure status never replaces a summarized row, so a failed forced
// reprocess keeps the stored summary. A zero ProcessedAt is set to the
// current time.
func (s *Store) Mark(ctx context.Context, rec *models.ProcessedRecord) error {
	if rec.Identity == "" {
		return errors.New("marking record: empty identity")
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("marking record %s: unknown status %q", rec.Identity, rec.Status)
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_articles (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
			status         = excluded.status,
			title          = excluded.title,
			link           = excluded.link,
			summary_text   = excluded.summary_text,
			source_feed    = excluded.source_feed,
			source_name    = excluded.source_name,
			published_at   = excluded.published_at,
			language       = excluded.language,
			model          = excluded.model,
			failure_reason = excluded.failure_reason,
			run_id         = excluded.run_id,
			processed_at   = excluded.processed_at
		 WHERE processed_articles.status <> 'summarized' OR excluded.status = 'summarized'`,
		rec.Identity, rec.Status, rec.Title, rec.Link, rec.SummaryText,
		rec.SourceFeed, rec.SourceName, formatTimePtr(rec.PublishedAt),
		rec.Language, rec.Model, rec.FailureReason, rec.RunID,
		formatTime(rec.ProcessedAt),
	)
	if err != nil {
		return unavailable("mark", fmt.Errorf("upserting record %s: %w", rec.Identity, err))
	}
	return nil
}

// GetRecord returns the record for identity, or ErrNotFound.
func (s *Store) GetRecord(ctx context.Context, identity string) (*models.ProcessedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM processed_articles WHERE identity = ?`, identity)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get_record", fmt.Errorf("getting record %s: %w", identity, err))
	}
	return rec, nil
}

// CleanupOld deletes records processed more than days ago, regardless of
// status, and returns how many were removed.
func (s *Store) CleanupOld(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("cleanup: retention must be positive, got %d", days)
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_articles WHERE processed_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, unavailable("cleanup", fmt.Errorf("deleting records before %s: %w", cutoff, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("cleanup", err)
	}
	return n, nil
}

// Reset removes every processed record.
func (s *Store) Reset(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM processed_articles`)
	if err != nil {
		return 0, unavailable("reset", fmt.Errorf("deleting records: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("reset", err)
	}
	return n, nil
}

// Statistics returns aggregate counts. All queries run in one transaction so
// the result reflects a single snapshot.
func (s *Store) Statistics(ctx context.Context) (*models.Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("statistics", fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // read-only transaction

	stats := &models.Stats{ByStatus: make(map[models.Status]int)}

	var oldest, newest sql.NullString
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(processed_at), MAX(processed_at) FROM processed_articles`,
	).Scan(&stats.Total, &oldest, &newest); err != nil {
		return nil, unavailable("statistics", fmt.Errorf("counting records: %w", err))
	}
	stats.Oldest = parseTimePtr(oldest)
	stats.Newest = parseTimePtr(newest)

	rows, err := tx.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM processed_articles GROUP BY status`)
	if err != nil {
		return nil, unavailable("statistics", fmt.Errorf("counting by status: %w", err))
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, unavailable("statistics", fmt.Errorf("scanning status count: %w", err))
		}
		stats.ByStatus[models.Status(status)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, unavailable("statistics", err)
	}

	rows, err = tx.QueryContext(ctx,
		`SELECT source_feed, MAX(source_name), COUNT(*) AS n
		 FROM processed_articles
		 GROUP BY source_feed
		 ORDER BY n DESC, source_feed
		 LIMIT 10`)
	if err != nil {
		return nil, unavailable("statistics", fmt.Errorf("counting by source: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var sc models.SourceCount
		if err := rows.Scan(&sc.SourceFeed, &sc.SourceName, &sc.Count); err != nil {
			return nil, unavailable("statistics", fmt.Errorf("scanning source count: %w", err))
		}
		stats.BySource = append(stats.BySource, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("statistics", err)
	}

	return stats, nil
}

// RecordFilter narrows ListRecords. Start and End bound the article's
// publish time, falling back to processed_at for undated records.
type RecordFilter struct {
	Status     models.Status
	SourceFeed string
	Query      string
	Start      *time.Time
	End        *time.Time
	Limit      int
	Offset     int
	Ascending  bool
}

// ListRecords returns records matching f, newest first unless f.Ascending.
func (s *Store) ListRecords(ctx context.Context, f RecordFilter) ([]models.ProcessedRecord, error) {
	const effectiveTime = "COALESCE(published_at, processed_at)"

	q := sq.Select(recordColumnList...).
		From("processed_articles")

	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.SourceFeed != "" {
		q = q.Where(sq.Eq{"source_feed": f.SourceFeed})
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		pattern := "%" + term + "%"
		q = q.Where(sq.Or{
			sq.Like{"title": pattern},
			sq.Like{"summary_text": pattern},
			sq.Like{"link": pattern},
		})
	}
	if f.Start != nil {
		q = q.Where(sq.Expr(effectiveTime+" >= ?", formatTime(*f.Start)))
	}
	if f.End != nil {
		q = q.Where(sq.Expr(effectiveTime+" < ?", formatTime(*f.End)))
	}
	if f.Ascending {
		q = q.OrderBy(effectiveTime+" ASC", "identity")
	} else {
		q = q.OrderBy(effectiveTime+" DESC", "identity")
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building record query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list_records", fmt.Errorf("querying records: %w", err))
	}
	defer rows.Close()

	records := []models.ProcessedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("list_records", fmt.Errorf("scanning record: %w", err))
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list_records", fmt.Errorf("iterating records: %w", err))
	}
	return records, nil
}

// SummarizedInRange returns summarized records whose publish time (or
// processed time, when undated) lies in [start, end), oldest first.
func (s *Store) SummarizedInRange(ctx context.Context, start, end time.Time) ([]models.ProcessedRecord, error) {
	return s.ListRecords(ctx, RecordFilter{
		Status:    models.StatusSummarized,
		Start:     &start,
		End:       &end,
		Ascending: true,
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.ProcessedRecord, error) {
	var (
		rec         models.ProcessedRecord
		status      string
		summary     sql.NullString
		publishedAt sql.NullString
		processedAt string
	)
	if err := row.Scan(
		&rec.Identity, &status, &rec.Title, &rec.Link, &summary,
		&rec.SourceFeed, &rec.SourceName, &publishedAt,
		&rec.Language, &rec.Model, &rec.FailureReason, &rec.RunID,
		&processedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = models.Status(status)
	if summary.Valid {
		rec.SummaryText = &summary.String
	}
	rec.PublishedAt = parseTimePtr(publishedAt)
	rec.ProcessedAt = parseTime(processedAt)
	return &rec, nil
}
