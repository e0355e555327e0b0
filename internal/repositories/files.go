// Package repositories implements SQLite persistence for analysis results.
//
// [FileRepository] owns the files table. Rows are keyed by
// (category, file_name) so re-running an analysis overwrites prior rows
// in place, and summaries are always recomputed from the rows rather
// than stored.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/depicts/internal/models"
	"github.com/desertthunder/depicts/internal/shared"
	"github.com/desertthunder/depicts/internal/stats"
)

// timestampFormats covers the layouts sqlite emits for aggregated
// timestamp expressions, which lose the column's declared type.
var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// FileRepository persists per-file analysis results.
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new FileRepository with the given database connection
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Upsert inserts or replaces the result row for (category, file_name).
func (r *FileRepository) Upsert(record *models.FileRecord) error {
	if record.Category == "" || record.FileName == "" {
		return fmt.Errorf("%w: category and file name are required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO files (category, file_name, has_depicts, depicts, checked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(category, file_name) DO UPDATE SET
			has_depicts = excluded.has_depicts,
			depicts = excluded.depicts,
			checked_at = excluded.checked_at
	`

	_, err := r.db.Exec(query,
		record.Category,
		record.FileName,
		record.HasDepicts,
		record.Depicts,
		record.CheckedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert file result: %v", shared.ErrStoreFailure, err)
	}

	return nil
}

// ListByCategory retrieves all result rows for a category, files with
// depicts statements first, then alphabetical.
func (r *FileRepository) ListByCategory(category string) ([]models.FileRecord, error) {
	query := `
		SELECT category, file_name, has_depicts, depicts, checked_at
		FROM files
		WHERE category = ?
		ORDER BY has_depicts DESC, file_name ASC
	`

	rows, err := r.db.Query(query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var records []models.FileRecord
	for rows.Next() {
		record, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}

	return records, nil
}

// Summary aggregates the result rows for one category. Returns
// shared.ErrNotFound when no rows exist for it.
func (r *FileRepository) Summary(category string) (*models.CategorySummary, error) {
	query := `
		SELECT COUNT(*),
			SUM(CASE WHEN has_depicts = 1 THEN 1 ELSE 0 END),
			MAX(checked_at)
		FROM files
		WHERE category = ?
	`

	var total int
	var withDepicts sql.NullInt64
	var lastAnalyzed sql.NullString

	err := r.db.QueryRow(query, category).Scan(&total, &withDepicts, &lastAnalyzed)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category: %w", err)
	}

	if total == 0 {
		return nil, fmt.Errorf("%w: no results for category %s", shared.ErrNotFound, category)
	}

	return r.buildSummary(category, total, withDepicts, lastAnalyzed), nil
}

// ListCategories returns a summary per analyzed category, most recently
// analyzed first.
func (r *FileRepository) ListCategories() ([]models.CategorySummary, error) {
	query := `
		SELECT category,
			COUNT(*),
			SUM(CASE WHEN has_depicts = 1 THEN 1 ELSE 0 END),
			MAX(checked_at) AS last_analyzed
		FROM files
		GROUP BY category
		ORDER BY last_analyzed DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var summaries []models.CategorySummary
	for rows.Next() {
		var category string
		var total int
		var withDepicts sql.NullInt64
		var lastAnalyzed sql.NullString

		if err := rows.Scan(&category, &total, &withDepicts, &lastAnalyzed); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}

		summaries = append(summaries, *r.buildSummary(category, total, withDepicts, lastAnalyzed))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return summaries, nil
}

// DeleteCategory removes all result rows for a category and returns how
// many were deleted. Deleting an unknown category deletes zero rows.
func (r *FileRepository) DeleteCategory(category string) (int, error) {
	result, err := r.db.Exec("DELETE FROM files WHERE category = ?", category)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete category: %v", shared.ErrStoreFailure, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

func (r *FileRepository) buildSummary(category string, total int, withDepicts sql.NullInt64, lastAnalyzed sql.NullString) *models.CategorySummary {
	with := int(withDepicts.Int64)

	summary := &models.CategorySummary{
		Category:       category,
		Total:          total,
		WithDepicts:    with,
		WithoutDepicts: total - with,
		Coverage:       stats.Coverage(total, with),
	}

	if lastAnalyzed.Valid {
		if ts, err := parseTimestamp(lastAnalyzed.String); err == nil {
			summary.LastAnalyzed = ts
		}
	}

	return summary
}

func (r *FileRepository) scanRow(rows *sql.Rows) (*models.FileRecord, error) {
	var record models.FileRecord
	var depicts sql.NullString

	err := rows.Scan(
		&record.Category,
		&record.FileName,
		&record.HasDepicts,
		&depicts,
		&record.CheckedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan file row: %w", err)
	}

	record.Depicts = depicts.String

	return &record, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
