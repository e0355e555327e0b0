package commons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/depicts/internal/shared"
)

func newTestClient(apiURL, wikidataURL string) *APIClient {
	client := NewAPIClient(shared.CommonsConfig{
		APIURL:         apiURL,
		WikidataAPIURL: wikidataURL,
		UserAgent:      "depicts-test/0.1",
		MinIntervalMS:  1,
		MaxRetries:     3,
		TimeoutSeconds: 5,
		Language:       "en",
	}, nil)
	client.backoff = time.Millisecond
	return client
}

func mediaWikiServer(t *testing.T, handler func(w http.ResponseWriter, q url.Values)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %q", r.URL.Query().Get("format"))
		}
		if r.Header.Get("User-Agent") != "depicts-test/0.1" {
			t.Errorf("expected custom User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, r.URL.Query())
	}))
}

func writePageLookup(w http.ResponseWriter, pageID int, title string) {
	key := fmt.Sprintf("%d", pageID)
	if pageID <= 0 {
		key = "-1"
	}
	json.NewEncoder(w).Encode(map[string]any{
		"query": map[string]any{
			"pages": map[string]any{
				key: map[string]any{"pageid": pageID, "title": title},
			},
		},
	})
}

func TestListCategoryFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("follows continuation", func(t *testing.T) {
		server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
			switch {
			case q.Get("titles") != "":
				if q.Get("titles") != "Category:Cats" {
					t.Errorf("expected normalized category title, got %q", q.Get("titles"))
				}
				writePageLookup(w, 42, "Category:Cats")
			case q.Get("list") == "categorymembers":
				if q.Get("cmtype") != "file" {
					t.Errorf("expected cmtype=file, got %q", q.Get("cmtype"))
				}
				if q.Get("cmcontinue") == "" {
					json.NewEncoder(w).Encode(map[string]any{
						"continue": map[string]any{"cmcontinue": "page2"},
						"query": map[string]any{
							"categorymembers": []map[string]any{
								{"title": "File:A.jpg"},
								{"title": "File:B.jpg"},
							},
						},
					})
				} else {
					json.NewEncoder(w).Encode(map[string]any{
						"query": map[string]any{
							"categorymembers": []map[string]any{
								{"title": "File:C.jpg"},
							},
						},
					})
				}
			default:
				t.Errorf("unexpected request: %v", q)
			}
		})
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		files, err := client.ListCategoryFiles(ctx, "Cats")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(files) != 3 {
			t.Fatalf("expected 3 files, got %d", len(files))
		}
		if files[2] != "File:C.jpg" {
			t.Errorf("expected continuation page appended, got %v", files)
		}
	})

	t.Run("missing category", func(t *testing.T) {
		server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
			writePageLookup(w, -1, "")
		})
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		_, err := client.ListCategoryFiles(ctx, "Does not exist")
		if !errors.Is(err, shared.ErrCategoryNotFound) {
			t.Fatalf("expected ErrCategoryNotFound, got %v", err)
		}
	})
}

func TestCheckDepicts(t *testing.T) {
	ctx := context.Background()

	entityHandler := func(statements any) func(w http.ResponseWriter, q url.Values) {
		return func(w http.ResponseWriter, q url.Values) {
			switch {
			case q.Get("titles") != "":
				writePageLookup(w, 77, q.Get("titles"))
			case q.Get("action") == "wbgetentities":
				if q.Get("ids") != "M77" {
					t.Errorf("expected ids=M77, got %q", q.Get("ids"))
				}
				json.NewEncoder(w).Encode(map[string]any{
					"entities": map[string]any{
						"M77": map[string]any{"statements": statements},
					},
				})
			default:
				t.Errorf("unexpected request: %v", q)
			}
		}
	}

	t.Run("with depicts statements", func(t *testing.T) {
		statements := map[string]any{
			"P180": []map[string]any{
				{"mainsnak": map[string]any{"datavalue": map[string]any{
					"type":  "wikibase-entityid",
					"value": map[string]any{"id": "Q146"},
				}}},
				{"mainsnak": map[string]any{"datavalue": map[string]any{
					"type":  "wikibase-entityid",
					"value": map[string]any{"id": "Q3314483"},
				}}},
			},
		}
		server := mediaWikiServer(t, entityHandler(statements))
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		result, err := client.CheckDepicts(ctx, "File:Cat.jpg")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !result.HasDepicts {
			t.Error("expected HasDepicts to be true")
		}
		if len(result.Items) != 2 || result.Items[0] != "Q146" {
			t.Errorf("expected [Q146 Q3314483], got %v", result.Items)
		}
	})

	t.Run("empty statements array", func(t *testing.T) {
		server := mediaWikiServer(t, entityHandler([]any{}))
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		result, err := client.CheckDepicts(ctx, "File:Cat.jpg")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.HasDepicts {
			t.Error("expected HasDepicts to be false")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
			writePageLookup(w, -1, "")
		})
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		_, err := client.CheckDepicts(ctx, "File:Gone.jpg")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestResolveLabels(t *testing.T) {
	ctx := context.Background()

	var requests atomic.Int64
	server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
		requests.Add(1)
		if q.Get("props") != "labels" {
			t.Errorf("expected props=labels, got %q", q.Get("props"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"entities": map[string]any{
				"Q146": map[string]any{"labels": map[string]any{
					"en": map[string]any{"value": "house cat"},
				}},
				"Q999999999": map[string]any{},
			},
		})
	})
	defer server.Close()

	client := newTestClient(server.URL, server.URL)

	labels, err := client.ResolveLabels(ctx, []string{"Q146", "Q999999999"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if labels["Q146"] != "house cat" {
		t.Errorf("expected label 'house cat', got %q", labels["Q146"])
	}
	if labels["Q999999999"] != "Q999999999" {
		t.Errorf("expected fallback to QID, got %q", labels["Q999999999"])
	}

	t.Run("caches resolved labels", func(t *testing.T) {
		before := requests.Load()

		labels, err := client.ResolveLabels(ctx, []string{"Q146"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if labels["Q146"] != "house cat" {
			t.Errorf("expected cached label, got %q", labels["Q146"])
		}
		if requests.Load() != before {
			t.Error("expected cache hit to skip the API")
		}
	})
}

func TestSuggestCategories(t *testing.T) {
	ctx := context.Background()

	server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
		if q.Get("psnamespace") != "14" {
			t.Errorf("expected psnamespace=14, got %q", q.Get("psnamespace"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"query": map[string]any{
				"prefixsearch": []map[string]any{
					{"title": "Category:Cats"},
					{"title": "Category:Cats of Istanbul"},
				},
			},
		})
	})
	defer server.Close()

	client := newTestClient(server.URL, server.URL)

	t.Run("strips namespace prefix", func(t *testing.T) {
		hits, err := client.SuggestCategories(ctx, "Cats", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(hits) != 2 || hits[0] != "Cats" {
			t.Errorf("expected bare category names, got %v", hits)
		}
	})

	t.Run("short query skips the API", func(t *testing.T) {
		hits, err := client.SuggestCategories(ctx, "c", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hits != nil {
			t.Errorf("expected no suggestions, got %v", hits)
		}
	})
}

func TestSearchEntities(t *testing.T) {
	ctx := context.Background()

	server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
		if q.Get("action") != "wbsearchentities" {
			t.Errorf("expected wbsearchentities, got %q", q.Get("action"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"search": []map[string]any{
				{"id": "Q146", "label": "house cat", "description": "domesticated species"},
			},
		})
	})
	defer server.Close()

	client := newTestClient(server.URL, server.URL)

	hits, err := client.SearchEntities(ctx, "cat", 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(hits) != 1 || hits[0].QID != "Q146" || hits[0].Label != "house cat" {
		t.Errorf("unexpected results: %v", hits)
	}
}

func TestSuggestDepicts(t *testing.T) {
	ctx := context.Background()

	var terms []string
	server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
		terms = append(terms, q.Get("search"))
		json.NewEncoder(w).Encode(map[string]any{
			"search": []map[string]any{
				{"id": "Q146", "label": "house cat"},
			},
		})
	})
	defer server.Close()

	client := newTestClient(server.URL, server.URL)

	hits, err := client.SuggestDepicts(ctx, "File:Tabby cat sleeping.jpg", 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(terms) != 3 {
		t.Errorf("expected one search per token, got %v", terms)
	}
	if len(hits) != 1 {
		t.Errorf("expected duplicate items collapsed, got %v", hits)
	}
}

func TestRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers from transient failure", func(t *testing.T) {
		var requests atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writePageLookup(w, 42, "Category:Cats")
		}))
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		id, err := client.pageID(ctx, "Category:Cats")
		if err != nil {
			t.Fatalf("expected retry to recover, got %v", err)
		}
		if id != 42 {
			t.Errorf("expected page ID 42, got %d", id)
		}
		if requests.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", requests.Load())
		}
	})

	t.Run("gives up after the retry ceiling", func(t *testing.T) {
		var requests atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		_, err := client.pageID(ctx, "Category:Cats")
		if !errors.Is(err, shared.ErrRemoteUnavailable) {
			t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
		}
		if requests.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", requests.Load())
		}
	})

	t.Run("a malformed body leaves no residue in the retry", func(t *testing.T) {
		var entityRequests atomic.Int64
		server := mediaWikiServer(t, func(w http.ResponseWriter, q url.Values) {
			if q.Get("titles") != "" {
				writePageLookup(w, 77, q.Get("titles"))
				return
			}
			// Truncated after a complete entity entry, so the decoder
			// populates it before hitting EOF.
			if entityRequests.Add(1) == 1 {
				fmt.Fprint(w, `{"entities":{"M77":{"statements":{"P180":[{"mainsnak":{"datavalue":{"type":"wikibase-entityid","value":{"id":"Q146"}}}}]}}`)
				return
			}
			fmt.Fprint(w, `{"entities":{"M77":{"statements":[]}}}`)
		})
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		result, err := client.CheckDepicts(ctx, "File:Cat.jpg")
		if err != nil {
			t.Fatalf("expected retry to recover, got %v", err)
		}
		if result.HasDepicts || len(result.Items) != 0 {
			t.Errorf("expected the clean retry's empty statements, got %v", result.Items)
		}
	})

	t.Run("does not retry a 404", func(t *testing.T) {
		var requests atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(server.URL, server.URL)

		_, err := client.pageID(ctx, "Category:Cats")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if requests.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", requests.Load())
		}
	})
}
