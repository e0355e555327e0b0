package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/depicts/internal/shared"
)

const janitorInterval = time.Minute

// Registry is the in-memory index of jobs, keyed by job ID. It enforces
// one active job per category and evicts finished jobs after the
// retention window so pollers have time to read final state.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	active    map[string]string // category -> job ID
	retention time.Duration

	stop chan struct{}
	once sync.Once
}

// NewRegistry creates a registry whose janitor evicts terminal jobs
// older than retention. Call [Registry.Close] to stop the janitor.
func NewRegistry(retention time.Duration) *Registry {
	r := &Registry{
		jobs:      make(map[string]*Job),
		active:    make(map[string]string),
		retention: retention,
		stop:      make(chan struct{}),
	}

	go r.janitor()

	return r
}

// Close stops the background janitor. Idempotent.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
}

// register indexes a new job. Returns shared.ErrConflict when another
// job for the same category has not finished.
func (r *Registry) register(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.active[job.category]; ok {
		if existing, ok := r.jobs[id]; ok && !existing.terminal() {
			return fmt.Errorf("%w: %s (job %s)", shared.ErrConflict, job.category, id)
		}
	}

	r.jobs[job.id] = job
	r.active[job.category] = job.id

	return nil
}

// Snapshot returns the current state of a job.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	job, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return job.Snapshot(), nil
}

// Cancel requests cancellation of a job and returns its state at the
// time of the request. Cancelling a finished or already-cancelled job is
// a no-op; the job flips to the cancelled phase at its next checkpoint,
// not within this call.
func (r *Registry) Cancel(id string) (Snapshot, error) {
	job, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	if !job.terminal() && job.cancel != nil {
		job.cancel()
	}

	return job.Snapshot(), nil
}

// Active returns the ID of the unfinished job for a category, if any.
func (r *Registry) Active(category string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.active[category]
	if !ok {
		return "", false
	}
	job, ok := r.jobs[id]
	if !ok || job.terminal() {
		return "", false
	}
	return id, true
}

// Jobs returns a snapshot of every tracked job, newest first.
func (r *Registry) Jobs() []Snapshot {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(jobs))
	for _, job := range jobs {
		snapshots = append(snapshots, job.Snapshot())
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].StartedAt.After(snapshots[j].StartedAt)
	})

	return snapshots
}

func (r *Registry) get(id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, nil
}

func (r *Registry) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.evict(now)
		}
	}
}

// evict drops terminal jobs whose last update is older than the
// retention window, releasing their category for reuse.
func (r *Registry) evict(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, job := range r.jobs {
		snap := job.Snapshot()
		if !job.terminal() || now.Sub(snap.UpdatedAt) < r.retention {
			continue
		}

		delete(r.jobs, id)
		if r.active[snap.Category] == id {
			delete(r.active, snap.Category)
		}
	}
}
