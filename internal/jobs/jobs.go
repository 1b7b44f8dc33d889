// Package jobs implements C8: the async job manager backing the
// long-running crawl/research/monitor MCP tools. It follows the teacher's
// Job/JobLog shape (internal/queue/job_manager.go) persisted through
// badgerhold instead of the teacher's pluggable QueueStorage interface,
// since this module has exactly one storage backend.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/quaero-labs/corequaero/internal/model"
)

// Status is a job's lifecycle state. Transitions are monotonic: Pending ->
// Running -> {Completed, Failed, Cancelled}; no status is ever revisited.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is the persisted record for one crawl/research/monitor run.
type Job struct {
	ID              string     `badgerhold:"key"`
	Type            string     `badgerhold:"index"`
	Status          Status     `badgerhold:"index"`
	CreatedAt       time.Time  `badgerhold:"index"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Payload         string // JSON-encoded tool input
	Result          string // JSON-encoded tool output, set on completion
	Error           string
	ProgressCurrent int
	ProgressTotal   int
}

// Manager creates, tracks and cancels Jobs, persisting every mutation to
// badgerhold so status survives a process restart (spec.md §4.8).
type Manager struct {
	store     *badgerhold.Store
	retention time.Duration

	mu        sync.Mutex
	cancelFns map[string]context.CancelFunc
}

// New builds a Manager. retention bounds how long a terminal job record is
// kept before Reap deletes it.
func New(store *badgerhold.Store, retention time.Duration) *Manager {
	return &Manager{
		store:     store,
		retention: retention,
		cancelFns: make(map[string]context.CancelFunc),
	}
}

// Create inserts a new Pending job of the given type with the supplied
// JSON payload, and returns a context that Cancel will cancel.
func (m *Manager) Create(ctx context.Context, jobType, payload string) (*Job, context.Context, error) {
	id := uuid.New().String()
	job := &Job{
		ID:        id,
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		Payload:   payload,
	}
	if err := m.store.Insert(id, job); err != nil {
		return nil, nil, fmt.Errorf("create job %s: %w", id, err)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelFns[id] = cancel
	m.mu.Unlock()

	return job, jobCtx, nil
}

// MarkRunning transitions a Pending job to Running.
func (m *Manager) MarkRunning(id string) error {
	return m.update(id, func(j *Job) error {
		if j.Status != StatusPending {
			return model.New(model.KindInvalidArgument, "job %s is %s, not pending", id, j.Status)
		}
		now := time.Now()
		j.Status = StatusRunning
		j.StartedAt = &now
		return nil
	})
}

// UpdateProgress reports partial progress on a Running job, e.g. pages
// crawled so far out of a budget.
func (m *Manager) UpdateProgress(id string, current, total int) error {
	return m.update(id, func(j *Job) error {
		j.ProgressCurrent = current
		j.ProgressTotal = total
		return nil
	})
}

// Complete transitions a Running job to Completed with its JSON result.
func (m *Manager) Complete(id, result string) error {
	defer m.forgetCancel(id)
	return m.update(id, func(j *Job) error {
		now := time.Now()
		j.Status = StatusCompleted
		j.Result = result
		j.CompletedAt = &now
		return nil
	})
}

// Fail transitions a job to Failed with an error message.
func (m *Manager) Fail(id string, cause error) error {
	defer m.forgetCancel(id)
	return m.update(id, func(j *Job) error {
		now := time.Now()
		j.Status = StatusFailed
		j.Error = cause.Error()
		j.CompletedAt = &now
		return nil
	})
}

// Cancel requests cancellation of a Pending or Running job, invoking the
// context.CancelFunc handed to its worker and marking it Cancelled. Cancel
// on an already-terminal job is a no-op, per spec.md's monotonic-status
// invariant.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	cancel, ok := m.cancelFns[id]
	delete(m.cancelFns, id)
	m.mu.Unlock()
	if ok {
		cancel()
	}

	var job Job
	if err := m.store.Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return model.New(model.KindJobNotFound, "job %s not found", id)
		}
		return err
	}
	if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
		return nil
	}
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	return m.store.Update(id, &job)
}

// Get returns the current state of job id.
func (m *Manager) Get(id string) (*Job, error) {
	var job Job
	if err := m.store.Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, model.New(model.KindJobNotFound, "job %s not found", id)
		}
		return nil, err
	}
	return &job, nil
}

// List returns jobs of the given type (or all types if empty), newest
// first.
func (m *Manager) List(jobType string, limit int) ([]Job, error) {
	var jobs []Job
	var query *badgerhold.Query
	if jobType != "" {
		query = badgerhold.Where("Type").Eq(jobType)
	} else {
		query = badgerhold.Where("CreatedAt").Ge(time.Time{})
	}
	query = query.SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := m.store.Find(&jobs, query); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Reap deletes terminal jobs older than the configured retention window.
func (m *Manager) Reap(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-m.retention)
	var old []Job
	err := m.store.Find(&old, badgerhold.Where("CreatedAt").Lt(cutoff).
		And("Status").In(StatusCompleted, StatusFailed, StatusCancelled))
	if err != nil {
		return 0, err
	}
	for _, j := range old {
		if err := m.store.Delete(j.ID, &Job{}); err != nil {
			return 0, err
		}
	}
	return len(old), nil
}

func (m *Manager) update(id string, mutate func(*Job) error) error {
	var job Job
	if err := m.store.Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return model.New(model.KindJobNotFound, "job %s not found", id)
		}
		return err
	}
	if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
		return model.New(model.KindInvalidArgument, "job %s is already %s", id, job.Status)
	}
	if err := mutate(&job); err != nil {
		return err
	}
	return m.store.Update(id, &job)
}

func (m *Manager) forgetCancel(id string) {
	m.mu.Lock()
	delete(m.cancelFns, id)
	m.mu.Unlock()
}
