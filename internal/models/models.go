// package models defines the data model for the depicts analysis service
package models

import (
	"strings"
	"time"
)

const (
	// CategoryPrefix is the canonical namespace prefix for Commons categories.
	CategoryPrefix = "Category:"
	// FilePrefix is the canonical namespace prefix for Commons files.
	FilePrefix = "File:"
)

// FileRecord is one analyzed file within a category.
//
// Rows are keyed by (category, file_name); re-analysis overwrites in place.
type FileRecord struct {
	Category   string    `json:"category"`
	FileName   string    `json:"file_name"`
	HasDepicts bool      `json:"has_depicts"`
	Depicts    string    `json:"depicts,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// CategorySummary aggregates FileRecord rows for one category.
//
// Always recomputed from the files table, never stored.
type CategorySummary struct {
	Category       string    `json:"category"`
	Total          int       `json:"total"`
	WithDepicts    int       `json:"with_depicts"`
	WithoutDepicts int       `json:"without_depicts"`
	Coverage       int       `json:"coverage"`
	LastAnalyzed   time.Time `json:"last_analyzed"`
}

// Suggestion is a candidate depicts entity for a file.
type Suggestion struct {
	QID         string `json:"qid"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// NormalizeCategory returns the category name with the canonical
// "Category:" prefix exactly once, with surrounding whitespace removed.
func NormalizeCategory(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return CategoryPrefix + strings.TrimPrefix(name, CategoryPrefix)
}

// CategoryDisplayName strips the namespace prefix for display.
func CategoryDisplayName(name string) string {
	return strings.TrimPrefix(name, CategoryPrefix)
}

// NormalizeFileTitle returns the file title with the canonical
// "File:" prefix exactly once.
func NormalizeFileTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	return FilePrefix + strings.TrimPrefix(title, FilePrefix)
}
