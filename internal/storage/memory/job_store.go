// Package memory provides the in-process job store.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pricescout/pricescout/internal/scout"
)

// DefaultMaxJobs caps the store when no explicit limit is configured.
const DefaultMaxJobs = 100

// JobStore is a bounded map of jobs in insertion order. When full, the
// oldest terminal job is evicted before a new insert; in-flight jobs are
// never evicted, so under pathological load the store can briefly exceed
// its cap rather than lose live work.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]scout.Job
	order   []string
	maxJobs int
}

// NewJobStore constructs a JobStore with the given cap (<=0 means default).
func NewJobStore(maxJobs int) *JobStore {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	return &JobStore{
		jobs:    make(map[string]scout.Job),
		maxJobs: maxJobs,
	}
}

// CreateJob stores a new job in queued status, evicting if necessary.
func (s *JobStore) CreateJob(_ context.Context, job scout.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	if len(s.jobs) >= s.maxJobs {
		s.evictOldestTerminalLocked()
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return nil
}

func (s *JobStore) evictOldestTerminalLocked() {
	for i, id := range s.order {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		if job.Status.IsTerminal() {
			delete(s.jobs, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// GetJob fetches a job by ID. Unknown and evicted ids both come back as
// scout.ErrJobNotFound.
func (s *JobStore) GetJob(_ context.Context, jobID string) (scout.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scout.Job{}, scout.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// MarkProcessing flips a queued job to processing.
func (s *JobStore) MarkProcessing(_ context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scout.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return errors.New("job already finished")
	}
	job.Status = scout.JobStatusProcessing
	job.StartedAt = pointerTime(at)
	s.jobs[jobID] = job
	return nil
}

// Complete records the site results and seals the job. Terminal states are
// set exactly once.
func (s *JobStore) Complete(_ context.Context, jobID string, results []scout.SiteResult, at time.Time) error {
	return s.finish(jobID, scout.JobStatusCompleted, "", results, at)
}

// Fail seals the job with a diagnostic message.
func (s *JobStore) Fail(_ context.Context, jobID string, errText string, results []scout.SiteResult, at time.Time) error {
	return s.finish(jobID, scout.JobStatusFailed, errText, results, at)
}

func (s *JobStore) finish(jobID string, status scout.JobStatus, errText string, results []scout.SiteResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scout.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return errors.New("job already finished")
	}
	job.Status = status
	job.ErrorText = errText
	job.SiteResults = append([]scout.SiteResult(nil), results...)
	job.FinishedAt = pointerTime(at)
	s.jobs[jobID] = job
	return nil
}

// Len reports the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Has reports whether the id is still stored (not evicted).
func (s *JobStore) Has(jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jobs[jobID]
	return ok
}

func cloneJob(job scout.Job) scout.Job {
	cp := job
	cp.SiteResults = append([]scout.SiteResult(nil), job.SiteResults...)
	return cp
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
