package catalog

import (
	"database/sql"
	"errors"
	"time"
)

const entryColumns = "image_name, artifact_id, session, source_path, captured_at, has_screenshot, has_overlay, attempts, last_error, status, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry         Entry
		capturedRaw   string
		hasScreenshot int64
		hasOverlay    int64
		lastError     sql.NullString
		status        string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&entry.ImageName,
		&entry.ArtifactID,
		&entry.Session,
		&entry.SourcePath,
		&capturedRaw,
		&hasScreenshot,
		&hasOverlay,
		&entry.Attempts,
		&lastError,
		&status,
		&updatedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.HasScreenshot = hasScreenshot != 0
	entry.HasOverlay = hasOverlay != 0
	entry.LastError = lastError.String
	entry.Status = Status(status)
	if captured, err := parseTimeString(capturedRaw); err == nil {
		entry.CapturedAt = captured
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func errorText(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
