package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cartolapse/internal/catalog"
	"cartolapse/internal/checkpoint"
)

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func artifactAt(name string, minute int) checkpoint.Artifact {
	ts := time.Date(2026, 1, 2, 12, minute, 0, 0, time.UTC)
	return checkpoint.NewArtifact(filepath.Join("/saves", "Meadow_"+name+".sav"), "Meadow", ts)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	for i := 0; i < 2; i++ {
		store, err := catalog.Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}
}

func TestSyncAndTransitions(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	done := artifactAt("b", 2)
	done.MarkAcquired()
	pending := artifactAt("a", 1)
	if err := store.Sync(ctx, []checkpoint.Artifact{done, pending}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	entries, err := store.List(ctx, "Meadow")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ImageName != pending.ImageName || entries[0].Status != catalog.StatusPending {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Status != catalog.StatusAcquired || !entries[1].Complete() {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if !entries[0].CapturedAt.Equal(pending.Timestamp) {
		t.Fatalf("captured_at mismatch: %s", entries[0].CapturedAt)
	}

	if err := store.RecordAttempt(ctx, pending.ImageName, errors.New("loader stuck")); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := store.RecordAttempt(ctx, pending.ImageName, nil); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := store.MarkAcquired(ctx, pending.ImageName); err != nil {
		t.Fatalf("MarkAcquired: %v", err)
	}
	got, err := store.Get(ctx, pending.ImageName)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Attempts != 2 || got.Status != catalog.StatusAcquired || got.LastError != "" {
		t.Fatalf("unexpected entry after acquisition: %+v", got)
	}

	if err := store.MarkFailed(ctx, done.ImageName, errors.New("gave up")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	counts, err := store.Count(ctx, "")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if counts.Acquired != 1 || counts.Failed != 1 || counts.Total() != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestSyncDemotesMissingRasters(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	a := artifactAt("a", 1)
	a.MarkAcquired()
	if err := store.Sync(ctx, []checkpoint.Artifact{a}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	a.HasOverlay = false
	if err := store.Sync(ctx, []checkpoint.Artifact{a}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	got, err := store.Get(ctx, a.ImageName)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != catalog.StatusPending || got.HasOverlay {
		t.Fatalf("expected pending entry without overlay, got %+v", got)
	}
}

func TestMarkUnknownReturnsNotFound(t *testing.T) {
	store := openStore(t)
	err := store.MarkAcquired(context.Background(), "missing.png")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.png"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestRunsRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if run, err := store.LastRun(ctx); err != nil || run != nil {
		t.Fatalf("expected no runs, got %+v err=%v", run, err)
	}
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := store.BeginRun(ctx, "run-1", "Meadow", started); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, catalog.Run{ID: "run-1", Frames: 12, Failures: 1, OutputPath: "/out/animation-Meadow.mp4"}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	run, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if run == nil || run.ID != "run-1" || run.Frames != 12 || run.FinishedAt == nil || !run.StartedAt.Equal(started) {
		t.Fatalf("unexpected run: %+v", run)
	}
	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no artifact sessions, got %v", sessions)
	}
}
