package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"cartolapse/internal/catalog"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// countLines renders the acquisition tally of one session.
func countLines(counts catalog.Counts, colorize bool) []string {
	failedKind := statusOK
	if counts.Failed > 0 {
		failedKind = statusError
	}
	pendingKind := statusOK
	if counts.Pending > 0 {
		pendingKind = statusWarn
	}
	return []string{
		renderStatusLine("Checkpoints", statusInfo, fmt.Sprintf("%d total", counts.Total()), colorize),
		renderStatusLine("Acquired", statusOK, fmt.Sprintf("%d", counts.Acquired), colorize),
		renderStatusLine("Pending", pendingKind, fmt.Sprintf("%d", counts.Pending), colorize),
		renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", counts.Failed), colorize),
	}
}

// runLine renders the outcome of the most recent pipeline run.
func runLine(run *catalog.Run, colorize bool) string {
	if run == nil {
		return renderStatusLine("Last run", statusInfo, "none recorded", colorize)
	}
	started := run.StartedAt.Local().Format("2006-01-02 15:04")
	switch {
	case run.FinishedAt == nil:
		return renderStatusLine("Last run", statusWarn, fmt.Sprintf("%s %s did not finish", started, run.Session), colorize)
	case run.Error != "":
		return renderStatusLine("Last run", statusError, fmt.Sprintf("%s %s failed: %s", started, run.Session, run.Error), colorize)
	case run.Failures > 0:
		return renderStatusLine("Last run", statusWarn,
			fmt.Sprintf("%s %s, %d frames, %d failed", started, run.Session, run.Frames, run.Failures), colorize)
	default:
		return renderStatusLine("Last run", statusOK, fmt.Sprintf("%s %s, %d frames", started, run.Session, run.Frames), colorize)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
