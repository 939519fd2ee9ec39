package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/contractrisk/config"
	"github.com/AnTengye/contractrisk/model"
	"github.com/google/uuid"
)

// JobStore is an in-memory, process-lifetime registry of analysis jobs.
// Each job is written only by the pipeline run that owns it; Get hands out
// copies so pollers never observe a half-applied update.
type JobStore struct {
	jobs    map[string]*model.Job
	mu      sync.RWMutex
	maxJobs int // 0 = unlimited
	now     func() time.Time
}

func NewJobStore(cfg *config.StoreConfig) *JobStore {
	maxJobs := 0
	if cfg != nil && cfg.MaxJobs > 0 {
		maxJobs = cfg.MaxJobs
	}
	slog.Info("job store initialized", "max_jobs", maxJobs)
	return &JobStore{
		jobs:    make(map[string]*model.Job),
		maxJobs: maxJobs,
		now:     time.Now,
	}
}

// Create registers a new queued job and returns a copy of it.
func (s *JobStore) Create() *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	job := &model.Job{
		ID:        uuid.New().String(),
		Status:    model.StatusQueued,
		Step:      model.StepQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	s.cleanupIfNeeded()

	return snapshot(job)
}

// Get returns a snapshot of the job, or false when the id is unknown.
func (s *JobStore) Get(id string) (*model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return snapshot(job), true
}

// SetStatus moves a job to processing or error. errMsg is kept only for the
// error status. Jobs never return to queued and finished jobs cannot be
// moved again.
func (s *JobStore) SetStatus(id, status, step, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.IsTerminal() {
		return ErrJobFinalized
	}
	if !model.ValidStatus(status) {
		return fmt.Errorf("unknown job status %q", status)
	}
	if status == model.StatusQueued {
		return errors.New("job cannot move back to queued")
	}
	if status == model.StatusDone {
		return errors.New("use SetReport to complete a job")
	}
	if status == model.StatusError && errMsg == "" {
		errMsg = "unknown error"
	}
	if status != model.StatusError {
		errMsg = ""
	}

	job.Status = status
	job.Step = step
	job.Error = errMsg
	job.UpdatedAt = s.now()
	return nil
}

// SetReport stores the final report and marks the job done.
func (s *JobStore) SetReport(id string, report *model.Report) error {
	if report == nil {
		return errors.New("nil report")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.IsTerminal() {
		return ErrJobFinalized
	}

	job.Report = report.Clone()
	job.Status = model.StatusDone
	job.Step = model.StepComplete
	job.Error = ""
	job.UpdatedAt = s.now()
	return nil
}

// Count returns the number of jobs in the store
func (s *JobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// cleanupIfNeeded drops the oldest finished jobs once maxJobs is exceeded.
// Jobs still running are never evicted. Must be called with lock held.
func (s *JobStore) cleanupIfNeeded() {
	if s.maxJobs <= 0 || len(s.jobs) <= s.maxJobs {
		return
	}

	finished := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.IsTerminal() {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})

	excess := len(s.jobs) - s.maxJobs
	for i := 0; i < excess && i < len(finished); i++ {
		slog.Info("evicting finished job",
			"job_id", finished[i].ID,
			"status", finished[i].Status,
			"created_at", finished[i].CreatedAt,
		)
		delete(s.jobs, finished[i].ID)
	}
}

func snapshot(job *model.Job) *model.Job {
	cp := *job
	cp.Report = job.Report.Clone()
	return &cp
}
