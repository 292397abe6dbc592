package scheduler

import (
	"fmt"
	"strings"

	"cartolapse/internal/services"
)

// AggregateAcquisitionFailure reports every job that failed permanently in a
// run. It matches services.ErrAcquisition.
type AggregateAcquisitionFailure struct {
	Count      int
	Identities []string
}

func (e *AggregateAcquisitionFailure) Error() string {
	const preview = 5
	names := e.Identities
	suffix := ""
	if len(names) > preview {
		suffix = fmt.Sprintf(" (+%d more)", len(names)-preview)
		names = names[:preview]
	}
	return fmt.Sprintf("%d acquisition(s) failed permanently: %s%s", e.Count, strings.Join(names, ", "), suffix)
}

func (e *AggregateAcquisitionFailure) Unwrap() error {
	return services.ErrAcquisition
}
