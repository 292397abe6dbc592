package scheduler

import (
	"fmt"
	"sync"

	"cartolapse/internal/checkpoint"
)

// State tags a job as Pending (never failed) or Retrying(n) after n failures.
type State struct {
	retries int
}

// Pending is the state of a job that has not failed yet.
func Pending() State { return State{} }

// Retrying is the state of a job that has failed n times and was requeued.
func Retrying(n int) State { return State{retries: n} }

// Retries returns the number of failed attempts so far.
func (s State) Retries() int { return s.retries }

func (s State) String() string {
	if s.retries == 0 {
		return "pending"
	}
	return fmt.Sprintf("retrying(%d)", s.retries)
}

// Job is one artifact's acquisition and its retry state.
type Job struct {
	Artifact checkpoint.Artifact
	State    State
}

// NewJobs wraps artifacts as pending jobs, preserving order.
func NewJobs(artifacts []checkpoint.Artifact) []Job {
	jobs := make([]Job, 0, len(artifacts))
	for _, artifact := range artifacts {
		jobs = append(jobs, Job{Artifact: artifact, State: Pending()})
	}
	return jobs
}

// deque is the shared work queue. Every access holds mu, so a job is claimed
// by exactly one worker.
type deque struct {
	mu    sync.Mutex
	items []Job
}

func newDeque(jobs []Job) *deque {
	return &deque{items: append([]Job(nil), jobs...)}
}

func (q *deque) popFront() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Job{}, false
	}
	job := q.items[0]
	q.items[0] = Job{}
	q.items = q.items[1:]
	return job, true
}

func (q *deque) pushFront(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Job{})
	copy(q.items[1:], q.items)
	q.items[0] = job
}

// drain removes and returns every queued job.
func (q *deque) drain() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	rest := q.items
	q.items = nil
	return rest
}
