// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/depicts/internal/commons"
	"github.com/desertthunder/depicts/internal/models"
)

// MockClient is a configurable test double for [commons.Client].
// Unset function fields return zero values.
type MockClient struct {
	ListCategoryFilesFunc func(ctx context.Context, category string) ([]string, error)
	CheckDepictsFunc      func(ctx context.Context, fileTitle string) (*commons.DepictsResult, error)
	ResolveLabelsFunc     func(ctx context.Context, qids []string) (map[string]string, error)
	SuggestCategoriesFunc func(ctx context.Context, query string, limit int) ([]string, error)
	SearchEntitiesFunc    func(ctx context.Context, term string, limit int) ([]models.Suggestion, error)
	SuggestDepictsFunc    func(ctx context.Context, fileTitle string, limit int) ([]models.Suggestion, error)
}

func (m *MockClient) ListCategoryFiles(ctx context.Context, category string) ([]string, error) {
	if m.ListCategoryFilesFunc != nil {
		return m.ListCategoryFilesFunc(ctx, category)
	}
	return nil, nil
}

func (m *MockClient) CheckDepicts(ctx context.Context, fileTitle string) (*commons.DepictsResult, error) {
	if m.CheckDepictsFunc != nil {
		return m.CheckDepictsFunc(ctx, fileTitle)
	}
	return &commons.DepictsResult{}, nil
}

func (m *MockClient) ResolveLabels(ctx context.Context, qids []string) (map[string]string, error) {
	if m.ResolveLabelsFunc != nil {
		return m.ResolveLabelsFunc(ctx, qids)
	}
	labels := make(map[string]string, len(qids))
	for _, qid := range qids {
		labels[qid] = qid
	}
	return labels, nil
}

func (m *MockClient) SuggestCategories(ctx context.Context, query string, limit int) ([]string, error) {
	if m.SuggestCategoriesFunc != nil {
		return m.SuggestCategoriesFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockClient) SearchEntities(ctx context.Context, term string, limit int) ([]models.Suggestion, error) {
	if m.SearchEntitiesFunc != nil {
		return m.SearchEntitiesFunc(ctx, term, limit)
	}
	return nil, nil
}

func (m *MockClient) SuggestDepicts(ctx context.Context, fileTitle string, limit int) ([]models.Suggestion, error) {
	if m.SuggestDepictsFunc != nil {
		return m.SuggestDepictsFunc(ctx, fileTitle, limit)
	}
	return nil, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
