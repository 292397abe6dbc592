package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cartolapse/internal/acquire"
	"cartolapse/internal/checkpoint"
	"cartolapse/internal/scheduler"
	"cartolapse/internal/services"
)

// fakeAcquirer fails each artifact a configured number of times before
// succeeding. A negative count fails forever.
type fakeAcquirer struct {
	mu       sync.Mutex
	failures map[string]int
	attempts []string
	success  map[string]int
	opened   int
	closed   int
	block    bool
}

func newFakeAcquirer(failures map[string]int) *fakeAcquirer {
	if failures == nil {
		failures = map[string]int{}
	}
	return &fakeAcquirer{failures: failures, success: map[string]int{}}
}

func (f *fakeAcquirer) factory() acquire.SessionFactory {
	return acquire.SessionFactoryFunc(func(context.Context, int) (acquire.Session, error) {
		f.mu.Lock()
		f.opened++
		f.mu.Unlock()
		return &fakeSession{parent: f}, nil
	})
}

type fakeSession struct {
	parent *fakeAcquirer
}

func (s *fakeSession) Acquire(ctx context.Context, artifact checkpoint.Artifact) error {
	f := s.parent
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, artifact.ImageName)
	remaining := f.failures[artifact.ImageName]
	if remaining != 0 {
		if remaining > 0 {
			f.failures[artifact.ImageName] = remaining - 1
		}
		return fmt.Errorf("render %s: %w", artifact.ImageName, services.ErrAcquisition)
	}
	f.success[artifact.ImageName]++
	return nil
}

func (s *fakeSession) Close() error {
	s.parent.mu.Lock()
	s.parent.closed++
	s.parent.mu.Unlock()
	return nil
}

func makeJobs(names ...string) []scheduler.Job {
	artifacts := make([]checkpoint.Artifact, 0, len(names))
	for _, name := range names {
		artifacts = append(artifacts, checkpoint.Artifact{ID: name, ImageName: name})
	}
	return scheduler.NewJobs(artifacts)
}

func TestRetryThenSuccessAcquiresOnce(t *testing.T) {
	fake := newFakeAcquirer(map[string]int{"a.png": 1})
	result, err := scheduler.Run(context.Background(), makeJobs("a.png"), scheduler.Options{Workers: 1, MaxRetries: 3}, fake.factory())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Succeeded) != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Succeeded[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", result.Succeeded[0].Attempts)
	}
	if fake.success["a.png"] != 1 {
		t.Fatalf("expected exactly one successful acquisition, got %d", fake.success["a.png"])
	}
}

func TestFailedJobRetriesBeforeOtherWork(t *testing.T) {
	fake := newFakeAcquirer(map[string]int{"a.png": 1})
	_, err := scheduler.Run(context.Background(), makeJobs("a.png", "b.png", "c.png"), scheduler.Options{Workers: 1, MaxRetries: 1}, fake.factory())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a.png", "a.png", "b.png", "c.png"}
	if fmt.Sprint(fake.attempts) != fmt.Sprint(want) {
		t.Fatalf("unexpected attempt order: got %v want %v", fake.attempts, want)
	}
}

func TestEveryJobReachesTerminalOutcome(t *testing.T) {
	names := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png", "g.png"}
	for workers := 1; workers <= 5; workers++ {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fake := newFakeAcquirer(map[string]int{"b.png": -1, "d.png": 2, "f.png": 5})
			result, _ := scheduler.Run(context.Background(), makeJobs(names...), scheduler.Options{Workers: workers, MaxRetries: 2}, fake.factory())
			if result.Total() != len(names) {
				t.Fatalf("expected %d outcomes, got %d", len(names), result.Total())
			}
			for _, outcome := range result.Succeeded {
				if fake.success[outcome.Artifact.ImageName] != 1 {
					t.Fatalf("%s acquired %d times", outcome.Artifact.ImageName, fake.success[outcome.Artifact.ImageName])
				}
			}
			if len(result.Failed) != 2 {
				t.Fatalf("expected b and f to fail, got %+v", result.Failed)
			}
			if fake.opened != fake.closed {
				t.Fatalf("sessions leaked: opened %d closed %d", fake.opened, fake.closed)
			}
			if fake.opened > len(names) || fake.opened > workers {
				t.Fatalf("opened %d sessions for %d workers", fake.opened, workers)
			}
		})
	}
}

func TestPermanentFailureIsAggregated(t *testing.T) {
	fake := newFakeAcquirer(map[string]int{"b.png": -1})
	var failed []string
	opts := scheduler.Options{
		Workers:    2,
		MaxRetries: 2,
		OnFailure:  func(o scheduler.Outcome) { failed = append(failed, o.Artifact.ImageName) },
	}
	result, err := scheduler.Run(context.Background(), makeJobs("a.png", "b.png", "c.png"), opts, fake.factory())
	if err == nil {
		t.Fatal("expected aggregate failure")
	}
	var agg *scheduler.AggregateAcquisitionFailure
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregateAcquisitionFailure, got %T", err)
	}
	if agg.Count != 1 || agg.Identities[0] != "b.png" {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatal("expected aggregate to match ErrAcquisition")
	}
	if len(result.Succeeded) != 2 {
		t.Fatalf("expected two successes, got %+v", result.Succeeded)
	}
	if result.Failed[0].Attempts != 3 {
		t.Fatalf("expected MaxRetries+1 attempts, got %d", result.Failed[0].Attempts)
	}
	if len(failed) != 1 || failed[0] != "b.png" {
		t.Fatalf("unexpected failure hook calls: %v", failed)
	}
}

func TestNoSessionFailsAllJobs(t *testing.T) {
	factory := acquire.SessionFactoryFunc(func(context.Context, int) (acquire.Session, error) {
		return nil, errors.New("browser missing")
	})
	result, err := scheduler.Run(context.Background(), makeJobs("a.png", "b.png"), scheduler.Options{Workers: 2}, factory)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(result.Failed) != 2 || len(result.Succeeded) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestJobTimeoutIsRetryableFailure(t *testing.T) {
	fake := newFakeAcquirer(nil)
	fake.block = true
	var attempts []scheduler.Attempt
	opts := scheduler.Options{
		Workers:    1,
		MaxRetries: 1,
		JobTimeout: 20 * time.Millisecond,
		OnAttempt:  func(a scheduler.Attempt) { attempts = append(attempts, a) },
	}
	result, err := scheduler.Run(context.Background(), makeJobs("slow.png"), opts, fake.factory())
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(attempts) != 2 || !attempts[0].Requeued || attempts[1].Requeued {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}
	if !errors.Is(result.Failed[0].Err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", result.Failed[0].Err)
	}
}

func TestCancelledContextFailsRemainingJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := newFakeAcquirer(nil)
	result, err := scheduler.Run(ctx, makeJobs("a.png", "b.png"), scheduler.Options{Workers: 1}, fake.factory())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if result.Total() != 2 || len(result.Failed) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestEmptyJobListOpensNoSession(t *testing.T) {
	fake := newFakeAcquirer(nil)
	result, err := scheduler.Run(context.Background(), nil, scheduler.Options{Workers: 3}, fake.factory())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Total() != 0 || fake.opened != 0 {
		t.Fatalf("unexpected work: %+v opened=%d", result, fake.opened)
	}
}
