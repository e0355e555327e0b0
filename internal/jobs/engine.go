package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/depicts/internal/commons"
	"github.com/desertthunder/depicts/internal/models"
	"github.com/desertthunder/depicts/internal/shared"
)

// FileStore is the slice of the repository layer the engine writes to.
type FileStore interface {
	Upsert(record *models.FileRecord) error
}

// Engine runs analysis jobs against Commons and persists per-file
// results. Submit returns as soon as the job is registered; callers
// follow progress through the [Registry].
type Engine struct {
	client   commons.Client
	store    FileStore
	registry *Registry
	logger   *log.Logger
}

// NewEngine creates an Engine with the provided dependencies.
func NewEngine(client commons.Client, store FileStore, registry *Registry, logger *log.Logger) *Engine {
	return &Engine{
		client:   client,
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Submit starts an analysis job for a category and returns its initial
// snapshot. Returns shared.ErrConflict when the category already has an
// unfinished job, shared.ErrInvalidInput for a blank category.
//
// The job runs on its own context so it outlives the submitting request;
// it stops only through [Registry.Cancel] or by finishing.
func (e *Engine) Submit(ctx context.Context, category string) (Snapshot, error) {
	display := models.CategoryDisplayName(models.NormalizeCategory(category))
	if display == "" {
		return Snapshot{}, fmt.Errorf("%w: category is required", shared.ErrInvalidInput)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := newJob(shared.GenerateID(), display, cancel)

	if err := e.registry.register(job); err != nil {
		cancel()
		return Snapshot{}, err
	}

	e.logger.Info("analysis started", "job", job.id, "category", display)
	go e.run(runCtx, job)

	return job.Snapshot(), nil
}

func (e *Engine) run(ctx context.Context, job *Job) {
	job.setPhase(Fetching, fmt.Sprintf("Fetching files in Category:%s", job.category))

	files, err := e.client.ListCategoryFiles(ctx, job.category)
	if err != nil {
		if canceled(ctx, err) {
			job.markCancelled()
			e.logger.Info("analysis cancelled", "job", job.id, "category", job.category)
			return
		}
		job.fail(err)
		e.logger.Error("listing failed", "job", job.id, "category", job.category, "error", err)
		return
	}

	if cancelRequested(ctx) {
		job.markCancelled()
		return
	}

	job.beginChecking(len(files))

	// Item IDs seen across the category, resolved to labels once at the end.
	depictsByFile := make(map[string][]string)

	for _, fileName := range files {
		if cancelRequested(ctx) {
			job.markCancelled()
			e.logger.Info("analysis cancelled", "job", job.id, "category", job.category, "processed", job.Snapshot().Processed)
			return
		}

		record := models.FileRecord{
			Category:  job.category,
			FileName:  fileName,
			CheckedAt: time.Now(),
		}

		result, err := e.client.CheckDepicts(ctx, fileName)
		switch {
		case err == nil:
			record.HasDepicts = result.HasDepicts
			record.Depicts = strings.Join(result.Items, ", ")
			if result.HasDepicts {
				depictsByFile[fileName] = result.Items
			}
		case canceled(ctx, err):
			job.markCancelled()
			return
		default:
			// A single unreadable file does not sink the job; record it
			// as unchecked rather than losing the row.
			e.logger.Warn("check failed", "job", job.id, "file", fileName, "error", err)
		}

		if err := e.store.Upsert(&record); err != nil {
			job.fail(err)
			e.logger.Error("store failed", "job", job.id, "file", fileName, "error", err)
			return
		}

		job.advance(fileName, record.HasDepicts)
	}

	if cancelRequested(ctx) {
		job.markCancelled()
		return
	}

	job.setPhase(Finalizing, "Resolving depicts labels")
	e.finalize(ctx, job, depictsByFile)

	job.complete()
	e.logger.Info("analysis finished", "job", job.id, "category", job.category, "files", len(files))
}

// finalize rewrites rows with human-readable labels in place of raw
// item IDs. Label resolution is best effort; rows keep their IDs when
// the lookup fails.
func (e *Engine) finalize(ctx context.Context, job *Job, depictsByFile map[string][]string) {
	if len(depictsByFile) == 0 {
		return
	}

	seen := make(map[string]bool)
	var qids []string
	for _, items := range depictsByFile {
		for _, qid := range items {
			if !seen[qid] {
				seen[qid] = true
				qids = append(qids, qid)
			}
		}
	}

	labels, err := e.client.ResolveLabels(ctx, qids)
	if err != nil {
		e.logger.Warn("label resolution failed", "job", job.id, "error", err)
		return
	}

	now := time.Now()
	for fileName, items := range depictsByFile {
		named := make([]string, 0, len(items))
		for _, qid := range items {
			if label, ok := labels[qid]; ok && label != "" {
				named = append(named, label)
			} else {
				named = append(named, qid)
			}
		}

		record := models.FileRecord{
			Category:   job.category,
			FileName:   fileName,
			HasDepicts: true,
			Depicts:    strings.Join(named, ", "),
			CheckedAt:  now,
		}
		if err := e.store.Upsert(&record); err != nil {
			e.logger.Warn("label rewrite failed", "job", job.id, "file", fileName, "error", err)
		}
	}
}

func cancelRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
