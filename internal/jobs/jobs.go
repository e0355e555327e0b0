// package jobs implements asynchronous category analysis.
//
// The core abstraction is [Engine], which orchestrates one analysis job
// per category: list the category's files, check each for depicts
// statements, resolve labels, and persist one row per file. Jobs are
// tracked in a [Registry] that callers poll for progress snapshots.
package jobs

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Job phase enumeration. Phases only move forward; Done, Error and
// Cancelled are terminal.
type Phase int

const (
	Queued Phase = iota
	Fetching
	Checking
	Finalizing
	Done
	Error
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Fetching:
		return "fetching"
	case Checking:
		return "checking"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Error:
		return "error"
	case Cancelled:
		return "cancelled"
	default:
		return ""
	}
}

// Terminal reports whether a job in this phase has finished.
func (p Phase) Terminal() bool {
	return p == Done || p == Error || p == Cancelled
}

// Snapshot is a point-in-time copy of a job's state, safe to serialize
// and hand to HTTP or UI layers.
type Snapshot struct {
	ID          string    `json:"job_id"`
	Category    string    `json:"category"`
	Phase       string    `json:"phase"`
	Percent     int       `json:"percent"`
	Processed   int       `json:"processed"`
	Total       int       `json:"total"`
	WithDepicts int       `json:"with_depicts"`
	Message     string    `json:"message"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Job tracks the state of one running or finished analysis.
//
// All state transitions go through the mutex; readers take a [Snapshot]
// rather than inspecting fields.
type Job struct {
	mu sync.Mutex

	id          string
	category    string
	phase       Phase
	processed   int
	total       int
	withDepicts int
	message     string
	err         string
	startedAt   time.Time
	updatedAt   time.Time

	cancel func()
}

func newJob(id, category string, cancel func()) *Job {
	now := time.Now()
	return &Job{
		id:        id,
		category:  category,
		phase:     Queued,
		message:   "Queued",
		startedAt: now,
		updatedAt: now,
		cancel:    cancel,
	}
}

// ID returns the job's identifier.
func (j *Job) ID() string {
	return j.id
}

// Category returns the category under analysis, without the namespace prefix.
func (j *Job) Category() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.category
}

// Snapshot copies the job's current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	return Snapshot{
		ID:          j.id,
		Category:    j.category,
		Phase:       j.phase.String(),
		Percent:     percent(j.phase, j.processed, j.total),
		Processed:   j.processed,
		Total:       j.total,
		WithDepicts: j.withDepicts,
		Message:     j.message,
		Error:       j.err,
		StartedAt:   j.startedAt,
		UpdatedAt:   j.updatedAt,
	}
}

func (j *Job) terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.phase.Terminal()
}

func (j *Job) setPhase(phase Phase, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = phase
	j.message = message
	j.updatedAt = time.Now()
}

func (j *Job) beginChecking(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = Checking
	j.total = total
	j.processed = 0
	j.message = fmt.Sprintf("Checking %d files", total)
	j.updatedAt = time.Now()
}

func (j *Job) advance(fileName string, hasDepicts bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.processed++
	if hasDepicts {
		j.withDepicts++
	}
	j.message = fmt.Sprintf("[%d/%d] %s", j.processed, j.total, fileName)
	j.updatedAt = time.Now()
}

func (j *Job) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = Done
	j.message = fmt.Sprintf("Analyzed %d files, %d with depicts", j.total, j.withDepicts)
	j.updatedAt = time.Now()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = Error
	j.err = err.Error()
	j.message = "Analysis failed"
	j.updatedAt = time.Now()
}

func (j *Job) markCancelled() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = Cancelled
	j.message = fmt.Sprintf("Cancelled after %d of %d files", j.processed, j.total)
	j.updatedAt = time.Now()
}

// percent maps job state to a 0-100 progress value, non-decreasing
// until terminal. Only Done reports 100; running phases are clamped to
// 99 so pollers never see a finished percentage on an unfinished job.
// Fetching floors at 5 and Checking keeps that floor until file
// progress passes it; Finalizing floors at 95.
func percent(phase Phase, processed, total int) int {
	switch phase {
	case Queued:
		return 0
	case Done:
		return 100
	}

	if total < 1 {
		total = 1
	}
	p := int(math.Round(float64(processed) / float64(total) * 100))

	switch phase {
	case Fetching, Checking:
		if p < 5 {
			p = 5
		}
	case Finalizing:
		if p < 95 {
			p = 95
		}
	}

	if p > 99 {
		p = 99
	}
	return p
}
