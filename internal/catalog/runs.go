package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BeginRun records the start of a pipeline invocation.
func (s *Store) BeginRun(ctx context.Context, runID, session string, started time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session, started_at) VALUES (?, ?, ?)`,
		runID, session, formatTime(started),
	); err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run started with BeginRun.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, frames = ?, failures = ?, output_path = ?, error = ? WHERE run_id = ?`,
		formatTime(finished), run.Frames, run.Failures, nullableString(run.OutputPath), nullableString(run.Error), run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when none exists.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, session, started_at, finished_at, frames, failures, output_path, error
         FROM runs ORDER BY started_at DESC LIMIT 1`)
	var (
		run                 Run
		startedRaw          string
		finishedRaw         sql.NullString
		outputPath, errText sql.NullString
	)
	err := row.Scan(&run.ID, &run.Session, &startedRaw, &finishedRaw, &run.Frames, &run.Failures, &outputPath, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	run.OutputPath = outputPath.String
	run.Error = errText.String
	return &run, nil
}
