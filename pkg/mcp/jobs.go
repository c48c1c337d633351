package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a build job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Done reports whether the status is final
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents a background collection build
type Job struct {
	ID             string    `json:"id"`
	CollectionKey  string    `json:"collection_key"`
	Status         JobStatus `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
	TotalPages     int       `json:"total_pages"`
	PagesExported  int       `json:"pages_exported"`
	PagesUnchanged int       `json:"pages_unchanged"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Incremental    bool      `json:"incremental"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks build jobs; at most one job runs per collection.
// Accessors return copies so callers never share a Job with the worker.
type JobManager struct {
	jobs         map[string]*Job
	mu           sync.RWMutex
	byCollection map[string]string // collectionKey -> jobID for unfinished jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:         make(map[string]*Job),
		byCollection: make(map[string]string),
	}
}

// CreateJob creates a pending job for a collection. If one is already
// pending or running it is returned instead, with created set to false.
func (m *JobManager) CreateJob(collectionKey string, incremental bool) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, exists := m.byCollection[collectionKey]; exists {
		if existing := m.jobs[existingID]; existing != nil && !existing.Status.Done() {
			return *existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:            uuid.New().String(),
		CollectionKey: collectionKey,
		Status:        JobStatusPending,
		StartedAt:     time.Now(),
		Incremental:   incremental,
		ctx:           ctx,
		cancel:        cancel,
	}

	m.jobs[j.ID] = j
	m.byCollection[collectionKey] = j.ID
	return *j, true
}

// GetJob retrieves a snapshot of a job by ID
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, exists := m.jobs[jobID]; exists {
		return *job, true
	}
	return Job{}, false
}

// IsRunning checks if a job is pending or running for a collection
func (m *JobManager) IsRunning(collectionKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.byCollection[collectionKey]; exists {
		job := m.jobs[jobID]
		return job != nil && !job.Status.Done()
	}
	return false
}

// UpdateStatus updates the status of a job. Final statuses are sticky.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status.Done() {
		return
	}
	job.Status = status
	if status.Done() {
		job.CompletedAt = time.Now()
		job.cancel()
		delete(m.byCollection, job.CollectionKey)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// UpdateProgress records the page counters of a job
func (m *JobManager) UpdateProgress(jobID string, total, exported, unchanged int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.TotalPages = total
		job.PagesExported = exported
		job.PagesUnchanged = unchanged
	}
}

// CancelJob cancels an unfinished job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status.Done() {
		return false
	}
	job.cancel()
	job.Status = JobStatusCancelled
	job.CompletedAt = time.Now()
	delete(m.byCollection, job.CollectionKey)
	return true
}

// CancelAll cancels all unfinished jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if !job.Status.Done() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byCollection = make(map[string]string)
}

// ListJobs returns snapshots of all jobs, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.Before(jobs[j].StartedAt) })
	return jobs
}

// GetContext returns the context a job's build runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
