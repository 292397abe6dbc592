package catalog

import "time"

// Status is the acquisition state of a catalogued artifact.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAcquired Status = "acquired"
	StatusFailed   Status = "failed"
)

// Entry is one catalogued checkpoint.
type Entry struct {
	ImageName     string
	ArtifactID    string
	Session       string
	SourcePath    string
	CapturedAt    time.Time
	HasScreenshot bool
	HasOverlay    bool
	Attempts      int
	LastError     string
	Status        Status
	UpdatedAt     time.Time
}

// Complete reports whether both rasters were recorded.
func (e Entry) Complete() bool {
	return e.HasScreenshot && e.HasOverlay
}

// Run is the record of one pipeline invocation.
type Run struct {
	ID         string
	Session    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Frames     int
	Failures   int
	OutputPath string
	Error      string
}

// Counts summarizes entries by status.
type Counts struct {
	Pending  int
	Acquired int
	Failed   int
}

// Total is the number of entries counted.
func (c Counts) Total() int { return c.Pending + c.Acquired + c.Failed }
