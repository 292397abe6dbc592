package checkpoint

import (
	"fmt"
	"sort"
	"strings"

	"cartolapse/internal/services"
	"cartolapse/internal/textutil"
)

// SessionSummary describes one session found in a discovery.
type SessionSummary struct {
	Name        string
	Checkpoints int
	Newest      Artifact
}

// Sessions groups artifacts by session, ordered by most recent checkpoint first.
func Sessions(artifacts []Artifact) []SessionSummary {
	index := make(map[string]int)
	var out []SessionSummary
	for _, artifact := range artifacts {
		pos, ok := index[artifact.Session]
		if !ok {
			index[artifact.Session] = len(out)
			out = append(out, SessionSummary{Name: artifact.Session, Checkpoints: 1, Newest: artifact})
			continue
		}
		out[pos].Checkpoints++
		if artifact.ImageName > out[pos].Newest.ImageName {
			out[pos].Newest = artifact
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Newest.Timestamp.Equal(out[j].Newest.Timestamp) {
			return out[i].Newest.Timestamp.After(out[j].Newest.Timestamp)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Selection is the outcome of choosing a session to render.
type Selection struct {
	Session   string
	Artifacts []Artifact
	// Reason explains how the session was chosen, for the decision log.
	Reason string
	// Candidates lists every session that was available.
	Candidates []SessionSummary
}

// SelectSession picks the session to render. A preferred name wins when it
// matches a discovered session; with no preference the session with the most
// recent checkpoint is chosen. The returned artifacts keep image name order.
func SelectSession(artifacts []Artifact, preferred string) (Selection, error) {
	summaries := Sessions(artifacts)
	if len(summaries) == 0 {
		return Selection{}, services.Wrap(services.ErrConfiguration, "checkpoint", "select session", "no qualifying saves found", nil)
	}

	selection := Selection{Candidates: summaries}
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		token := textutil.SanitizeSegment(preferred)
		for _, summary := range summaries {
			if strings.EqualFold(summary.Name, token) {
				selection.Session = summary.Name
				selection.Reason = "configured session"
				break
			}
		}
		if selection.Session == "" {
			names := make([]string, 0, len(summaries))
			for _, summary := range summaries {
				names = append(names, summary.Name)
			}
			return Selection{}, services.Wrap(services.ErrConfiguration, "checkpoint", "select session",
				fmt.Sprintf("session %q not found (available: %s)", preferred, strings.Join(names, ", ")), nil)
		}
	} else {
		selection.Session = summaries[0].Name
		selection.Reason = "only session"
		if len(summaries) > 1 {
			selection.Reason = "most recent checkpoint"
		}
	}

	for _, artifact := range artifacts {
		if artifact.Session == selection.Session {
			selection.Artifacts = append(selection.Artifacts, artifact)
		}
	}
	return selection, nil
}
