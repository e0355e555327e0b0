package commons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/depicts/internal/models"
	"github.com/desertthunder/depicts/internal/shared"
	"github.com/desertthunder/depicts/internal/stats"
	"golang.org/x/time/rate"
)

const (
	// categorymembers page size; the API caps anonymous requests at 500.
	listPageSize = 500
	// wbgetentities accepts at most 50 IDs per request.
	labelBatchSize = 50
	// depictsProperty is the "depicts" property on MediaInfo entities.
	depictsProperty = "P180"
	// tokens taken from a file name when building depicts suggestions.
	suggestTokenLimit = 3

	defaultBackoff = 500 * time.Millisecond
)

// APIClient talks to the Commons and Wikidata Action APIs. All requests
// share one token-bucket limiter so concurrent jobs cannot exceed the
// configured request rate.
type APIClient struct {
	apiURL      string
	wikidataURL string
	userAgent   string
	language    string
	maxRetries  int
	backoff     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter

	mu         sync.Mutex
	labelCache map[string]string
}

// NewAPIClient builds a client from config. Pass a nil httpClient to use
// one with the configured per-request timeout.
func NewAPIClient(cfg shared.CommonsConfig, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}

	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &APIClient{
		apiURL:      cfg.APIURL,
		wikidataURL: cfg.WikidataAPIURL,
		userAgent:   cfg.UserAgent,
		language:    cfg.Language,
		maxRetries:  retries,
		backoff:     defaultBackoff,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Every(cfg.MinInterval()), 1),
		labelCache:  make(map[string]string),
	}
}

type pageInfo struct {
	PageID int    `json:"pageid"`
	Title  string `json:"title"`
}

type pagesResponse struct {
	Query struct {
		Pages map[string]pageInfo `json:"pages"`
	} `json:"query"`
}

type categoryMembersResponse struct {
	Continue *struct {
		CmContinue string `json:"cmcontinue"`
	} `json:"continue"`
	Query struct {
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

type entitiesResponse struct {
	Entities map[string]struct {
		// Statements is an object keyed by property ID, but entities
		// without statements serialize it as an empty array.
		Statements json.RawMessage `json:"statements"`
		Labels     map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
	} `json:"entities"`
}

type statementList []struct {
	Mainsnak struct {
		Datavalue struct {
			Type  string `json:"type"`
			Value struct {
				ID string `json:"id"`
			} `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type prefixSearchResponse struct {
	Query struct {
		PrefixSearch []struct {
			Title string `json:"title"`
		} `json:"prefixsearch"`
	} `json:"query"`
}

type searchEntitiesResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
}

// ListCategoryFiles implements [Client].
func (c *APIClient) ListCategoryFiles(ctx context.Context, category string) ([]string, error) {
	normalized := models.NormalizeCategory(category)

	if _, err := c.pageID(ctx, normalized); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrCategoryNotFound, models.CategoryDisplayName(normalized))
		}
		return nil, err
	}

	var files []string
	cont := ""

	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "categorymembers")
		params.Set("cmtitle", normalized)
		params.Set("cmtype", "file")
		params.Set("cmlimit", fmt.Sprintf("%d", listPageSize))
		if cont != "" {
			params.Set("cmcontinue", cont)
		}

		var page categoryMembersResponse
		if err := c.get(ctx, c.apiURL, params, &page); err != nil {
			return nil, fmt.Errorf("failed to list category members: %w", err)
		}

		for _, member := range page.Query.CategoryMembers {
			files = append(files, member.Title)
		}

		if page.Continue == nil || page.Continue.CmContinue == "" {
			break
		}
		cont = page.Continue.CmContinue
	}

	return files, nil
}

// CheckDepicts implements [Client].
func (c *APIClient) CheckDepicts(ctx context.Context, fileTitle string) (*DepictsResult, error) {
	title := models.NormalizeFileTitle(fileTitle)

	pageID, err := c.pageID(ctx, title)
	if err != nil {
		return nil, err
	}

	mediaID := fmt.Sprintf("M%d", pageID)
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", mediaID)

	var resp entitiesResponse
	if err := c.get(ctx, c.apiURL, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch entity %s: %w", mediaID, err)
	}

	entity, ok := resp.Entities[mediaID]
	if !ok {
		return &DepictsResult{}, nil
	}

	statements := map[string]statementList{}
	if len(entity.Statements) > 0 {
		// Ignore unmarshal failures: "statements": [] means none.
		_ = json.Unmarshal(entity.Statements, &statements)
	}

	result := &DepictsResult{}
	for _, claim := range statements[depictsProperty] {
		dv := claim.Mainsnak.Datavalue
		if dv.Type == "wikibase-entityid" && dv.Value.ID != "" {
			result.Items = append(result.Items, dv.Value.ID)
		}
	}
	result.HasDepicts = len(result.Items) > 0

	return result, nil
}

// ResolveLabels implements [Client]. Labels are cached for the lifetime
// of the client, so repeated jobs over overlapping items stay cheap.
func (c *APIClient) ResolveLabels(ctx context.Context, qids []string) (map[string]string, error) {
	labels := make(map[string]string, len(qids))

	var missing []string
	c.mu.Lock()
	for _, qid := range qids {
		if label, ok := c.labelCache[qid]; ok {
			labels[qid] = label
		} else {
			missing = append(missing, qid)
		}
	}
	c.mu.Unlock()

	for start := 0; start < len(missing); start += labelBatchSize {
		end := min(start+labelBatchSize, len(missing))
		batch := missing[start:end]

		params := url.Values{}
		params.Set("action", "wbgetentities")
		params.Set("ids", strings.Join(batch, "|"))
		params.Set("props", "labels")
		params.Set("languages", c.language)

		var resp entitiesResponse
		if err := c.get(ctx, c.wikidataURL, params, &resp); err != nil {
			return nil, fmt.Errorf("failed to resolve labels: %w", err)
		}

		for _, qid := range batch {
			label := qid
			if entity, ok := resp.Entities[qid]; ok {
				if l, ok := entity.Labels[c.language]; ok && l.Value != "" {
					label = l.Value
				}
			}
			labels[qid] = label
		}
	}

	c.mu.Lock()
	for _, qid := range missing {
		c.labelCache[qid] = labels[qid]
	}
	c.mu.Unlock()

	return labels, nil
}

// SuggestCategories implements [Client].
func (c *APIClient) SuggestCategories(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "prefixsearch")
	params.Set("pssearch", query)
	params.Set("psnamespace", "14")
	params.Set("pslimit", fmt.Sprintf("%d", limit))

	var resp prefixSearchResponse
	if err := c.get(ctx, c.apiURL, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to search categories: %w", err)
	}

	suggestions := make([]string, 0, len(resp.Query.PrefixSearch))
	for _, hit := range resp.Query.PrefixSearch {
		suggestions = append(suggestions, models.CategoryDisplayName(hit.Title))
	}

	return suggestions, nil
}

// SearchEntities implements [Client].
func (c *APIClient) SearchEntities(ctx context.Context, term string, limit int) ([]models.Suggestion, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", term)
	params.Set("language", c.language)
	params.Set("type", "item")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var resp searchEntitiesResponse
	if err := c.get(ctx, c.wikidataURL, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}

	results := make([]models.Suggestion, 0, len(resp.Search))
	for _, hit := range resp.Search {
		results = append(results, models.Suggestion{
			QID:         hit.ID,
			Label:       hit.Label,
			Description: hit.Description,
		})
	}

	return results, nil
}

// SuggestDepicts implements [Client].
func (c *APIClient) SuggestDepicts(ctx context.Context, fileTitle string, limit int) ([]models.Suggestion, error) {
	tokens := stats.TokenizeFileName(fileTitle)
	if len(tokens) > suggestTokenLimit {
		tokens = tokens[:suggestTokenLimit]
	}

	var candidates []models.Suggestion
	for _, token := range tokens {
		hits, err := c.SearchEntities(ctx, token, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		candidates = append(candidates, hits...)
	}

	return stats.RankSuggestions(candidates, limit), nil
}

// pageID looks up the page ID for a title. Returns shared.ErrNotFound
// when the page does not exist.
func (c *APIClient) pageID(ctx context.Context, title string) (int, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)

	var resp pagesResponse
	if err := c.get(ctx, c.apiURL, params, &resp); err != nil {
		return 0, fmt.Errorf("failed to look up page %q: %w", title, err)
	}

	for id, page := range resp.Query.Pages {
		if id == "-1" || page.PageID <= 0 {
			continue
		}
		return page.PageID, nil
	}

	return 0, fmt.Errorf("%w: %s", shared.ErrNotFound, title)
}

// get performs a rate-limited GET against a MediaWiki endpoint, retrying
// transient failures with exponential backoff. Definitive client errors
// and context cancellation are returned immediately.
func (c *APIClient) get(ctx context.Context, baseURL string, params url.Values, result interface{}) error {
	params.Set("format", "json")
	reqURL := baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		// Decode into a fresh value per attempt; a malformed body can
		// partially populate result before the decoder fails.
		dest := result
		if result != nil {
			dest = reflect.New(reflect.TypeOf(result).Elem()).Interface()
		}

		err := c.doGet(ctx, reqURL, dest)
		if err == nil {
			if result != nil {
				reflect.ValueOf(result).Elem().Set(reflect.ValueOf(dest).Elem())
			}
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

func (c *APIClient) doGet(ctx context.Context, reqURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, reqURL)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrRemoteUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
		}
	}

	return nil
}

func retryable(err error) bool {
	return errors.Is(err, shared.ErrRemoteUnavailable) || errors.Is(err, shared.ErrMalformedResponse)
}
