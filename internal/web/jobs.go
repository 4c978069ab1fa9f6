package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkralik/photo-tagger/internal/pipeline"
)

// JobStatus represents the status of an async processing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ProcessJob is one async batch run over an album.
type ProcessJob struct {
	ID          string          `json:"id"`
	AlbumUID    string          `json:"album_uid"`
	Status      JobStatus       `json:"status"`
	DryRun      bool            `json:"dry_run"`
	Force       bool            `json:"force"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	Stats       *pipeline.Stats `json:"stats,omitempty"`

	cancel context.CancelFunc
	mu     sync.RWMutex
}

// Snapshot returns a copy safe to serialize while the job is running.
func (j *ProcessJob) Snapshot() ProcessJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ProcessJob{
		ID:          j.ID,
		AlbumUID:    j.AlbumUID,
		Status:      j.Status,
		DryRun:      j.DryRun,
		Force:       j.Force,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Error:       j.Error,
		Stats:       j.Stats,
	}
}

func (j *ProcessJob) finish(status JobStatus, stats *pipeline.Stats, err error) {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobStatusCancelled {
		j.CompletedAt = &now
		return
	}
	j.Status = status
	j.Stats = stats
	j.CompletedAt = &now
	if err != nil {
		j.Error = err.Error()
	}
}

// Cancel stops the job's context. The runner notices at the next item
// boundary.
func (j *ProcessJob) Cancel() {
	j.mu.Lock()
	j.Status = JobStatusCancelled
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// JobManager tracks async processing jobs by ID.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*ProcessJob
}

func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*ProcessJob)}
}

// Start registers a new job and runs it in the background.
func (m *JobManager) Start(albumUID string, dryRun, force bool, runner Runner) *ProcessJob {
	ctx, cancel := context.WithCancel(context.Background())
	job := &ProcessJob{
		ID:        uuid.NewString(),
		AlbumUID:  albumUID,
		Status:    JobStatusRunning,
		DryRun:    dryRun,
		Force:     force,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go func() {
		defer cancel()
		stats, err := runner.Run(ctx, albumUID)
		if err != nil {
			job.finish(JobStatusFailed, stats, err)
			return
		}
		job.finish(JobStatusCompleted, stats, nil)
	}()

	return job
}

// Get returns the job with the given ID.
func (m *JobManager) Get(id string) (*ProcessJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// CancelAll cancels every tracked job. Used during shutdown.
func (m *JobManager) CancelAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if job.Snapshot().Status == JobStatusRunning {
			job.Cancel()
		}
	}
}
