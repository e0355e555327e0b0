package stats

import (
	"reflect"
	"testing"

	"github.com/desertthunder/depicts/internal/models"
)

func TestCoverage(t *testing.T) {
	tc := []struct {
		name  string
		total int
		with  int
		want  int
	}{
		{"empty category", 0, 0, 0},
		{"negative total", -1, 0, 0},
		{"all covered", 10, 10, 100},
		{"none covered", 10, 0, 0},
		{"two thirds rounds up", 3, 2, 67},
		{"one third rounds down", 3, 1, 33},
		{"half", 2, 1, 50},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Coverage(tt.total, tt.with); got != tt.want {
				t.Errorf("Coverage(%d, %d) = %d, want %d", tt.total, tt.with, got, tt.want)
			}
		})
	}
}

func TestTokenizeFileName(t *testing.T) {
	tc := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "typical title",
			title: "File:Black cat sitting on a fence.jpg",
			want:  []string{"black", "cat", "sitting", "fence"},
		},
		{
			name:  "underscores and digits",
			title: "File:Eiffel_Tower_2019_03.png",
			want:  []string{"eiffel", "tower"},
		},
		{
			name:  "camera dump name",
			title: "File:DSC 0042.jpg",
			want:  nil,
		},
		{
			name:  "no prefix",
			title: "Red panda.webm",
			want:  []string{"red", "panda"},
		},
		{
			name:  "stopwords only",
			title: "File:The photo of a picture.jpg",
			want:  nil,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenizeFileName(tt.title)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TokenizeFileName(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestRankSuggestions(t *testing.T) {
	candidates := []models.Suggestion{
		{QID: "Q1", Label: "cat"},
		{QID: "Q2", Label: "fence"},
		{QID: "Q1", Label: "cat (duplicate)"},
		{QID: "", Label: "missing qid"},
		{QID: "Q3", Label: "tree"},
		{QID: "Q4", Label: "sky"},
	}

	t.Run("dedupes and truncates", func(t *testing.T) {
		ranked := RankSuggestions(candidates, 3)

		if len(ranked) != 3 {
			t.Fatalf("expected 3 suggestions, got %d", len(ranked))
		}

		want := []string{"Q1", "Q2", "Q3"}
		for i, qid := range want {
			if ranked[i].QID != qid {
				t.Errorf("position %d: expected %s, got %s", i, qid, ranked[i].QID)
			}
		}
	})

	t.Run("preserves remote order", func(t *testing.T) {
		ranked := RankSuggestions(candidates, 10)

		if len(ranked) != 4 {
			t.Fatalf("expected 4 suggestions, got %d", len(ranked))
		}
		if ranked[0].Label != "cat" {
			t.Errorf("first occurrence should win, got %s", ranked[0].Label)
		}
	})

	t.Run("zero limit", func(t *testing.T) {
		if got := RankSuggestions(candidates, 0); got != nil {
			t.Errorf("expected nil for zero limit, got %v", got)
		}
	})
}
