package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cartolapse/internal/checkpoint"
)

// ErrNotFound reports an image name the catalog has never seen.
var ErrNotFound = errors.New("catalog entry not found")

// Store is the SQLite-backed catalog.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the catalog database and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background(), migrationFS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Sync upserts every artifact. Raster flags are taken from the artifacts, and
// a row whose rasters disappeared from disk drops back to pending.
func (s *Store) Sync(ctx context.Context, artifacts []checkpoint.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO artifacts (
            image_name, artifact_id, session, source_path, captured_at,
            has_screenshot, has_overlay, status, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(image_name) DO UPDATE SET
            artifact_id = excluded.artifact_id,
            session = excluded.session,
            source_path = excluded.source_path,
            captured_at = excluded.captured_at,
            has_screenshot = excluded.has_screenshot,
            has_overlay = excluded.has_overlay,
            status = CASE
                WHEN excluded.has_screenshot = 1 AND excluded.has_overlay = 1 THEN 'acquired'
                WHEN artifacts.status = 'acquired' THEN 'pending'
                ELSE artifacts.status
            END,
            updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare sync: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, a := range artifacts {
		status := StatusPending
		if a.Complete() {
			status = StatusAcquired
		}
		if _, err := stmt.ExecContext(ctx,
			a.ImageName,
			a.ID,
			a.Session,
			a.SourcePath,
			formatTime(a.Timestamp),
			boolToInt(a.HasScreenshot),
			boolToInt(a.HasOverlay),
			string(status),
			now,
		); err != nil {
			return fmt.Errorf("sync %s: %w", a.ImageName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync: %w", err)
	}
	return nil
}

// RecordAttempt counts one acquisition try and remembers its error, if any.
func (s *Store) RecordAttempt(ctx context.Context, imageName string, cause error) error {
	return s.exec(ctx, "record attempt", imageName,
		`UPDATE artifacts SET attempts = attempts + 1, last_error = ?, updated_at = ? WHERE image_name = ?`,
		errorText(cause), formatTime(time.Now()), imageName)
}

// MarkAcquired sets both raster flags and the acquired status.
func (s *Store) MarkAcquired(ctx context.Context, imageName string) error {
	return s.exec(ctx, "mark acquired", imageName,
		`UPDATE artifacts SET has_screenshot = 1, has_overlay = 1, status = ?, last_error = NULL, updated_at = ? WHERE image_name = ?`,
		string(StatusAcquired), formatTime(time.Now()), imageName)
}

// MarkFailed records a permanent acquisition failure.
func (s *Store) MarkFailed(ctx context.Context, imageName string, cause error) error {
	return s.exec(ctx, "mark failed", imageName,
		`UPDATE artifacts SET status = ?, last_error = ?, updated_at = ? WHERE image_name = ?`,
		string(StatusFailed), errorText(cause), formatTime(time.Now()), imageName)
}

func (s *Store) exec(ctx context.Context, op, imageName, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", op, imageName, ErrNotFound)
	}
	return nil
}

// Get returns the entry for an image name.
func (s *Store) Get(ctx context.Context, imageName string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM artifacts WHERE image_name = ?`, imageName)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get %s: %w", imageName, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns entries ordered by image name. An empty session lists all.
func (s *Store) List(ctx context.Context, session string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM artifacts`
	var args []any
	if session = strings.TrimSpace(session); session != "" {
		query += ` WHERE session = ?`
		args = append(args, session)
	}
	query += ` ORDER BY image_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Sessions returns the distinct session names in the catalog.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session FROM artifacts ORDER BY session`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var sessions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, name)
	}
	return sessions, rows.Err()
}

// Count tallies entries by status. An empty session counts all.
func (s *Store) Count(ctx context.Context, session string) (Counts, error) {
	query := `SELECT status, COUNT(1) FROM artifacts`
	var args []any
	if session = strings.TrimSpace(session); session != "" {
		query += ` WHERE session = ?`
		args = append(args, session)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Counts{}, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("scan count: %w", err)
		}
		switch Status(status) {
		case StatusAcquired:
			counts.Acquired = n
		case StatusFailed:
			counts.Failed = n
		default:
			counts.Pending += n
		}
	}
	return counts, rows.Err()
}
