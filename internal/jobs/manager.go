// Package jobs tracks scrape runs requested through the API and feeds
// them to a single sequential worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketintel/stealth-scraper/internal/pipeline"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one requested pipeline run.
type Job struct {
	ID          string           `json:"id"`
	Target      string           `json:"target"`
	MaxProducts int              `json:"max_products"`
	SkipEnrich  bool             `json:"skip_enrich"`
	Status      Status           `json:"status"`
	Report      *pipeline.Report `json:"report,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Stats aggregates job outcomes for the status endpoint.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type Manager struct {
	pipeline *pipeline.Pipeline
	queue    *jobQueue
	mu       sync.RWMutex
	jobs     map[string]*Job
	logger   *slog.Logger
}

func NewManager(p *pipeline.Pipeline) *Manager {
	return &Manager{
		pipeline: p,
		queue:    newJobQueue(),
		jobs:     make(map[string]*Job),
		logger:   slog.Default().With("component", "job_manager"),
	}
}

// Create registers a run and queues it for the worker.
func (m *Manager) Create(target string, maxProducts int, skipEnrich bool) (*Job, error) {
	job := &Job{
		ID:          uuid.New().String(),
		Target:      target,
		MaxProducts: maxProducts,
		SkipEnrich:  skipEnrich,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if err := m.queue.Push(job); err != nil {
		m.mu.Lock()
		job.Status = StatusFailed
		job.Error = err.Error()
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job queued", "job_id", job.ID, "target", target)

	return job, nil
}

// Get returns a copy of a job by id.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}

	copied := *job
	return &copied, true
}

// List returns copies of all known jobs.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		out = append(out, &copied)
	}
	return out
}

// GetStats aggregates job counts by status.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Total: len(m.jobs)}
	for _, job := range m.jobs {
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// StartWorker drains the queue until the context is cancelled. Jobs
// run one at a time: a browser session serves one navigation flow, so
// parallel runs would need independent sessions.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		job, err := m.queue.Pop(ctx)
		if err != nil {
			m.logger.Info("job worker stopping", "reason", err)
			return
		}

		m.run(ctx, job)
	}
}

func (m *Manager) run(ctx context.Context, job *Job) {
	now := time.Now()
	m.mu.Lock()
	job.Status = StatusRunning
	job.StartedAt = &now
	m.mu.Unlock()

	m.logger.Info("job started", "job_id", job.ID, "target", job.Target)

	report, err := m.pipeline.Run(ctx, pipeline.Options{
		Target:      job.Target,
		MaxProducts: job.MaxProducts,
		SkipEnrich:  job.SkipEnrich,
	})

	done := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	job.CompletedAt = &done
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		m.logger.Error("job failed", "job_id", job.ID, "error", err)
		return
	}

	job.Status = StatusCompleted
	job.Report = report
	m.logger.Info("job completed", "job_id", job.ID, "records", report.TotalProducts)
}

// Close shuts the queue; queued jobs are abandoned.
func (m *Manager) Close() {
	m.queue.Close()
}
