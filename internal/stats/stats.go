// package stats implements pure helpers for coverage metrics and depicts
// suggestion ranking.
//
// Nothing here performs I/O; the suggestion helpers operate on results the
// commons client already fetched, doing only deduplication and truncation.
package stats

import (
	"math"
	"path"
	"strings"

	"github.com/desertthunder/depicts/internal/models"
)

// stopwords are filename tokens that never make useful entity search terms.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true,
	"at": true, "on": true, "and": true, "or": true, "for": true,
	"with": true, "from": true, "by": true, "to": true,
	"img": true, "image": true, "photo": true, "picture": true,
	"file": true, "dsc": true, "jpg": true, "jpeg": true, "png": true,
}

// Coverage returns the percentage of files carrying a depicts statement,
// rounded to the nearest integer. Defined as 0 for an empty category.
func Coverage(total, withDepicts int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(withDepicts) / float64(total) * 100))
}

// TokenizeFileName derives candidate search terms from a Commons file title.
//
// The File: prefix and extension are stripped, the remainder is split on
// non-alphanumeric boundaries, and stopwords and numeric-only tokens are
// dropped. Tokens are lowercased.
func TokenizeFileName(title string) []string {
	name := strings.TrimPrefix(title, models.FilePrefix)
	name = strings.TrimSuffix(name, path.Ext(name))

	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	var tokens []string
	for _, f := range fields {
		token := strings.ToLower(f)
		if len(token) < 2 || stopwords[token] || isNumeric(token) {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

// RankSuggestions deduplicates candidate entities by QID, preserving the
// order the remote service returned them, and truncates to limit.
func RankSuggestions(candidates []models.Suggestion, limit int) []models.Suggestion {
	if limit <= 0 {
		return nil
	}

	seen := make(map[string]bool, len(candidates))
	ranked := make([]models.Suggestion, 0, limit)

	for _, c := range candidates {
		if c.QID == "" || seen[c.QID] {
			continue
		}
		seen[c.QID] = true
		ranked = append(ranked, c)
		if len(ranked) == limit {
			break
		}
	}

	return ranked
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
