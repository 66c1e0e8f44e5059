package model

import (
	"time"

	"github.com/google/uuid"
)

// RunReport summarizes one whole invocation. It lives only for the duration
// of the run and is persisted nowhere but the run log.
type RunReport struct {
	ID         uuid.UUID
	Dir        string
	Started    time.Time
	Stopped    time.Time
	FailedKeys []string
}

func NewRunReport(dir string) RunReport {
	return RunReport{
		ID:      uuid.New(),
		Dir:     dir,
		Started: time.Now().UTC(),
	}
}

func (r RunReport) Duration() time.Duration {
	return r.Stopped.Sub(r.Started)
}

// Succeeded reports whether every job produced its artifact.
func (r RunReport) Succeeded() bool {
	return len(r.FailedKeys) == 0
}
