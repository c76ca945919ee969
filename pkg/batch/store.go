package batch

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"simulator/pkg/engine"
	"simulator/pkg/logx"
)

// Store holds batch jobs in memory. All job mutation goes through the
// store so concurrent status reads during a run are safe.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	logger *logx.Logger
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs:   make(map[string]*Job),
		logger: logx.NewLogger("batchstore"),
	}
}

// Create registers a new pending job and returns its id.
func (s *Store) Create(scenarios []engine.Scenario) string {
	batchID := uuid.New().String()

	s.mu.Lock()
	s.jobs[batchID] = &Job{
		BatchID:        batchID,
		Scenarios:      scenarios,
		Status:         StatusPending,
		CreatedAt:      time.Now(),
		TotalScenarios: len(scenarios),
	}
	s.mu.Unlock()

	s.logger.Info("created batch job %s with %d scenarios", batchID, len(scenarios))
	return batchID
}

// Get returns a snapshot of a job, or ErrJobNotFound.
func (s *Store) Get(batchID string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[batchID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return snapshot(job), nil
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, snapshot(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// update applies fn to the live job under the write lock.
func (s *Store) update(batchID string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[batchID]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}

// isCancelled reports whether the job was cancelled.
func (s *Store) isCancelled(batchID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[batchID]
	return ok && job.Status == StatusCancelled
}

// Cancel marks a running job cancelled. It is advisory: in-flight
// scenarios finish normally, only not-yet-admitted scenarios are
// skipped. Returns false if the job is missing or not running.
func (s *Store) Cancel(batchID string) bool {
	cancelled := false
	_ = s.update(batchID, func(job *Job) {
		if job.Status == StatusRunning {
			now := time.Now()
			job.Status = StatusCancelled
			job.CompletedAt = &now
			cancelled = true
		}
	})
	if cancelled {
		s.logger.Info("cancelled batch job %s", batchID)
	}
	return cancelled
}

// CleanupCompleted drops terminal jobs older than maxAge and returns
// how many were removed.
func (s *Store) CleanupCompleted(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for batchID, job := range s.jobs {
		switch job.Status {
		case StatusCompleted, StatusFailed, StatusCancelled:
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, batchID)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Info("cleaned up %d old batch jobs", removed)
	}
	return removed
}

func snapshot(job *Job) Job {
	cp := *job
	cp.Records = make([]Record, len(job.Records))
	copy(cp.Records, job.Records)
	return cp
}
