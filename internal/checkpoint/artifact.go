package checkpoint

import (
	"path/filepath"
	"strings"
	"time"

	"cartolapse/internal/fileutil"
	"cartolapse/internal/textutil"
)

// imageTimestampLayout leads every image name so lexicographic order equals
// chronological order.
const imageTimestampLayout = "20060102150405"

// Artifact describes one checkpoint and the rasters derived from it.
type Artifact struct {
	ID            string
	Session       string
	Timestamp     time.Time
	SourcePath    string
	ImageName     string
	HasScreenshot bool
	HasOverlay    bool
}

// Complete reports whether both rasters are present.
func (a Artifact) Complete() bool {
	return a.HasScreenshot && a.HasOverlay
}

// NewArtifact builds an artifact with its derived image name. The session
// prefix is trimmed from the save stem so the id is not repeated.
func NewArtifact(sourcePath, session string, timestamp time.Time) Artifact {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	sessionToken := textutil.SanitizeSegment(session)
	id := textutil.SanitizeSegment(stem)
	if trimmed, ok := strings.CutPrefix(id, sessionToken+"_"); ok && trimmed != "" {
		id = trimmed
	}
	return Artifact{
		ID:         id,
		Session:    sessionToken,
		Timestamp:  timestamp,
		SourcePath: sourcePath,
		ImageName:  ImageName(timestamp, sessionToken, id),
	}
}

// ImageName renders `<YYYYMMDDhhmmss>__<session>_<id>.png` in UTC.
func ImageName(timestamp time.Time, session, id string) string {
	return timestamp.UTC().Format(imageTimestampLayout) + "__" + session + "_" + id + ".png"
}

// Layout locates the rasters of an artifact on disk.
type Layout struct {
	ScreenshotsDir string
	OverlaysDir    string
}

// Screenshot returns the screenshot path for a.
func (l Layout) Screenshot(a Artifact) string {
	return filepath.Join(l.ScreenshotsDir, a.ImageName)
}

// Overlay returns the transparency overlay path for a.
func (l Layout) Overlay(a Artifact) string {
	return filepath.Join(l.OverlaysDir, a.ImageName)
}

// Refresh sets the raster flags of a from what exists on disk.
func (l Layout) Refresh(a *Artifact) {
	a.HasScreenshot = fileutil.Exists(l.Screenshot(*a))
	a.HasOverlay = fileutil.Exists(l.Overlay(*a))
}

// MarkAcquired flips both raster flags after a successful acquisition.
func (a *Artifact) MarkAcquired() {
	a.HasScreenshot = true
	a.HasOverlay = true
}
