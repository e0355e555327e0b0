// package commons defines interface Client for interacting with the
// MediaWiki Action APIs backing Wikimedia Commons and Wikidata.
package commons

import (
	"context"

	"github.com/desertthunder/depicts/internal/models"
)

// Client defines the remote operations the analysis engine and HTTP
// handlers need from Commons and Wikidata.
type Client interface {
	// ListCategoryFiles validates the category and returns every file
	// title in it, following continuation until exhausted.
	// Returns shared.ErrCategoryNotFound when the category does not exist.
	ListCategoryFiles(ctx context.Context, category string) ([]string, error)

	// CheckDepicts resolves a file title to its MediaInfo entity and
	// reports whether it carries any depicts (P180) statements.
	CheckDepicts(ctx context.Context, fileTitle string) (*DepictsResult, error)

	// ResolveLabels maps Wikidata item IDs to human-readable labels in
	// the configured language. Unresolvable IDs map to themselves.
	ResolveLabels(ctx context.Context, qids []string) (map[string]string, error)

	// SuggestCategories returns category names (without the namespace
	// prefix) matching the query by prefix.
	SuggestCategories(ctx context.Context, query string, limit int) ([]string, error)

	// SearchEntities searches Wikidata items by term.
	SearchEntities(ctx context.Context, term string, limit int) ([]models.Suggestion, error)

	// SuggestDepicts derives search terms from a file name and returns
	// candidate items the file might depict. Best effort: individual
	// search failures are skipped rather than surfaced.
	SuggestDepicts(ctx context.Context, fileTitle string, limit int) ([]models.Suggestion, error)
}

// DepictsResult is the outcome of a single file check.
type DepictsResult struct {
	HasDepicts bool     `json:"has_depicts"`
	Items      []string `json:"items"`
}
