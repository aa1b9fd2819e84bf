package app

// RunTracker tracks the in-flight status of a single rrdpd invocation
// before it is written to the run-history audit log. It's a single
// in-memory struct rather than a persisted create-then-finish record,
// since an rrdpd run is a short batch job with no observable
// "in progress" state worth persisting separately.
type RunTracker struct {
	RunID  string
	Status string // "success" or "error"
	Detail string
}

// NewRunTracker creates a new in-memory run tracker, optimistic by default.
func NewRunTracker(runID string) *RunTracker {
	return &RunTracker{RunID: runID, Status: "success"}
}

// Fail marks the tracked run as failed with the given detail.
func (t *RunTracker) Fail(detail string) {
	t.Status = "error"
	t.Detail = detail
}
