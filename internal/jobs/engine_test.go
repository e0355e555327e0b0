package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/depicts/internal/commons"
	"github.com/desertthunder/depicts/internal/models"
	"github.com/desertthunder/depicts/internal/shared"
)

type fakeClient struct {
	mu       sync.Mutex
	files    []string
	listErr  error
	results  map[string]*commons.DepictsResult
	checkErr map[string]error
	labels   map[string]string
	labelErr error

	// When set, CheckDepicts blocks until the context is cancelled:
	// blockChecks for every file, blockOn for one specific file.
	blockChecks bool
	blockOn     string
	checking    chan string
}

func (f *fakeClient) ListCategoryFiles(ctx context.Context, category string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeClient) CheckDepicts(ctx context.Context, fileTitle string) (*commons.DepictsResult, error) {
	if f.checking != nil {
		f.checking <- fileTitle
	}
	if f.blockChecks || (f.blockOn != "" && fileTitle == f.blockOn) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.checkErr[fileTitle]; ok {
		return nil, err
	}
	if result, ok := f.results[fileTitle]; ok {
		return result, nil
	}
	return &commons.DepictsResult{}, nil
}

func (f *fakeClient) ResolveLabels(ctx context.Context, qids []string) (map[string]string, error) {
	if f.labelErr != nil {
		return nil, f.labelErr
	}
	labels := make(map[string]string, len(qids))
	for _, qid := range qids {
		if label, ok := f.labels[qid]; ok {
			labels[qid] = label
		} else {
			labels[qid] = qid
		}
	}
	return labels, nil
}

func (f *fakeClient) SuggestCategories(ctx context.Context, query string, limit int) ([]string, error) {
	return nil, nil
}

func (f *fakeClient) SearchEntities(ctx context.Context, term string, limit int) ([]models.Suggestion, error) {
	return nil, nil
}

func (f *fakeClient) SuggestDepicts(ctx context.Context, fileTitle string, limit int) ([]models.Suggestion, error) {
	return nil, nil
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.FileRecord
	failOn  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]models.FileRecord)}
}

func (s *fakeStore) Upsert(record *models.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && record.FileName == s.failOn {
		return fmt.Errorf("%w: disk full", shared.ErrStoreFailure)
	}
	s.records[record.FileName] = *record
	return nil
}

func (s *fakeStore) get(fileName string) (models.FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[fileName]
	return record, ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newTestEngine(t *testing.T, client commons.Client, store FileStore) (*Engine, *Registry) {
	t.Helper()
	registry := newTestRegistry(t)
	return NewEngine(client, store, registry, shared.NewLogger(io.Discard)), registry
}

func waitForTerminal(t *testing.T, registry *Registry, id string) Snapshot {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := registry.Snapshot(id)
		if err != nil {
			t.Fatalf("failed to poll job: %v", err)
		}
		if snap.Phase == "done" || snap.Phase == "error" || snap.Phase == "cancelled" {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("job did not finish before the deadline")
	return Snapshot{}
}

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("analyzes a category end to end", func(t *testing.T) {
		client := &fakeClient{
			files: []string{"File:A.jpg", "File:B.jpg", "File:C.jpg"},
			results: map[string]*commons.DepictsResult{
				"File:A.jpg": {HasDepicts: true, Items: []string{"Q146"}},
				"File:B.jpg": {HasDepicts: true, Items: []string{"Q146", "Q144"}},
			},
			labels: map[string]string{"Q146": "house cat", "Q144": "dog"},
		}
		store := newFakeStore()
		engine, registry := newTestEngine(t, client, store)

		snap, err := engine.Submit(ctx, "Category:Cats")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if snap.Category != "Cats" {
			t.Errorf("expected normalized category, got %q", snap.Category)
		}

		final := waitForTerminal(t, registry, snap.ID)
		if final.Phase != "done" {
			t.Fatalf("expected done, got %s (%s)", final.Phase, final.Error)
		}
		if final.Percent != 100 {
			t.Errorf("expected 100 percent, got %d", final.Percent)
		}
		if final.Processed != 3 || final.WithDepicts != 2 {
			t.Errorf("unexpected counts: %+v", final)
		}

		if record, ok := store.get("File:B.jpg"); !ok {
			t.Error("expected row for File:B.jpg")
		} else if record.Depicts != "house cat, dog" {
			t.Errorf("expected resolved labels, got %q", record.Depicts)
		}

		if record, ok := store.get("File:C.jpg"); !ok || record.HasDepicts {
			t.Errorf("expected undepicted row for File:C.jpg, got %+v", record)
		}
	})

	t.Run("an empty category completes with nothing processed", func(t *testing.T) {
		store := newFakeStore()
		engine, registry := newTestEngine(t, &fakeClient{}, store)

		snap, err := engine.Submit(ctx, "Empty room")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		final := waitForTerminal(t, registry, snap.ID)
		if final.Phase != "done" {
			t.Fatalf("expected done, got %s (%s)", final.Phase, final.Error)
		}
		if final.Processed != 0 || final.Total != 0 {
			t.Errorf("expected zero counts, got %+v", final)
		}
		if final.Percent != 100 {
			t.Errorf("expected 100 percent, got %d", final.Percent)
		}
		if store.count() != 0 {
			t.Errorf("expected no rows, got %d", store.count())
		}
	})

	t.Run("rejects blank categories", func(t *testing.T) {
		engine, _ := newTestEngine(t, &fakeClient{}, newFakeStore())

		if _, err := engine.Submit(ctx, "   "); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects a duplicate submission", func(t *testing.T) {
		client := &fakeClient{files: []string{"File:A.jpg"}, blockChecks: true}
		engine, registry := newTestEngine(t, client, newFakeStore())

		snap, err := engine.Submit(ctx, "Cats")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := engine.Submit(ctx, "Category:Cats"); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		registry.Cancel(snap.ID)
		waitForTerminal(t, registry, snap.ID)
	})

	t.Run("missing category fails the job", func(t *testing.T) {
		client := &fakeClient{listErr: fmt.Errorf("%w: Nope", shared.ErrCategoryNotFound)}
		engine, registry := newTestEngine(t, client, newFakeStore())

		snap, err := engine.Submit(ctx, "Nope")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		final := waitForTerminal(t, registry, snap.ID)
		if final.Phase != "error" {
			t.Fatalf("expected error phase, got %s", final.Phase)
		}
		if final.Error == "" {
			t.Error("expected error detail in snapshot")
		}
	})

	t.Run("a failed check records the file as undepicted", func(t *testing.T) {
		client := &fakeClient{
			files: []string{"File:A.jpg", "File:B.jpg"},
			results: map[string]*commons.DepictsResult{
				"File:A.jpg": {HasDepicts: true, Items: []string{"Q146"}},
			},
			checkErr: map[string]error{
				"File:B.jpg": fmt.Errorf("%w: status 503", shared.ErrRemoteUnavailable),
			},
		}
		store := newFakeStore()
		engine, registry := newTestEngine(t, client, store)

		snap, _ := engine.Submit(ctx, "Cats")
		final := waitForTerminal(t, registry, snap.ID)

		if final.Phase != "done" {
			t.Fatalf("expected done, got %s", final.Phase)
		}
		if record, ok := store.get("File:B.jpg"); !ok || record.HasDepicts {
			t.Errorf("expected undepicted row for failed check, got %+v", record)
		}
	})

	t.Run("a store failure is terminal", func(t *testing.T) {
		client := &fakeClient{files: []string{"File:A.jpg", "File:B.jpg"}}
		store := newFakeStore()
		store.failOn = "File:B.jpg"
		engine, registry := newTestEngine(t, client, store)

		snap, _ := engine.Submit(ctx, "Cats")
		final := waitForTerminal(t, registry, snap.ID)

		if final.Phase != "error" {
			t.Fatalf("expected error phase, got %s", final.Phase)
		}
	})

	t.Run("cancellation keeps completed rows", func(t *testing.T) {
		client := &fakeClient{
			files:       []string{"File:A.jpg", "File:B.jpg"},
			blockChecks: true,
			checking:    make(chan string, 2),
		}
		store := newFakeStore()
		engine, registry := newTestEngine(t, client, store)

		snap, err := engine.Submit(ctx, "Cats")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		// Wait until the first check is in flight, then cancel.
		<-client.checking
		if _, err := registry.Cancel(snap.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		final := waitForTerminal(t, registry, snap.ID)
		if final.Phase != "cancelled" {
			t.Fatalf("expected cancelled, got %s", final.Phase)
		}
		if store.count() != 0 {
			t.Errorf("expected no rows for unchecked files, got %d", store.count())
		}

		t.Run("cancellation mid-run keeps exactly the processed rows", func(t *testing.T) {
			client := &fakeClient{
				files: []string{"File:A.jpg", "File:B.jpg", "File:C.jpg"},
				results: map[string]*commons.DepictsResult{
					"File:A.jpg": {HasDepicts: true, Items: []string{"Q146"}},
				},
				blockOn:  "File:B.jpg",
				checking: make(chan string, 3),
			}
			store := newFakeStore()
			engine, registry := newTestEngine(t, client, store)

			snap, err := engine.Submit(ctx, "Cats")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			// Let the first file finish, then cancel while the second is in flight.
			for <-client.checking != "File:B.jpg" {
			}
			if _, err := registry.Cancel(snap.ID); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			final := waitForTerminal(t, registry, snap.ID)
			if final.Phase != "cancelled" {
				t.Fatalf("expected cancelled, got %s", final.Phase)
			}
			if final.Error != "" {
				t.Errorf("expected no error detail on cancellation, got %q", final.Error)
			}
			if final.Processed != 1 {
				t.Errorf("expected 1 processed file, got %d", final.Processed)
			}
			if store.count() != 1 {
				t.Errorf("expected exactly 1 row, got %d", store.count())
			}
			if _, ok := store.get("File:A.jpg"); !ok {
				t.Error("expected the completed file's row to survive")
			}
		})

		t.Run("category reopens after cancellation", func(t *testing.T) {
			client.mu.Lock()
			client.blockChecks = false
			client.checking = nil
			client.mu.Unlock()

			again, err := engine.Submit(ctx, "Cats")
			if err != nil {
				t.Fatalf("expected resubmission to succeed, got %v", err)
			}
			waitForTerminal(t, registry, again.ID)
		})
	})
}
