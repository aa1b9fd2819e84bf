package rrdp

import (
	"context"
	"time"
)

// PublicationRun records one execution of the engine for the audit-only
// run history. It is never consulted to reconstruct RRDP state; the XML
// documents on disk remain the sole authority for that.
type PublicationRun struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Kind        PlanKind
	SessionID   string
	Serial      uint64
	PublishedN  int
	UpdatedN    int
	WithdrawnN  int
	CleanedDirs int
	Err         string // empty on success
}

// HistoryRecorder persists PublicationRun rows. Disabled by default; when
// disabled the engine uses NopHistoryRecorder. A Record failure is fatal
// to the run's exit code when history is enabled.
type HistoryRecorder interface {
	Record(ctx context.Context, run PublicationRun) error
}

// NopHistoryRecorder is used when run history is not configured.
type NopHistoryRecorder struct{}

func (NopHistoryRecorder) Record(context.Context, PublicationRun) error { return nil }
