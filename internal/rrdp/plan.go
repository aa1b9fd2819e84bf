package rrdp

import "fmt"

// PlanKind identifies the decision the Session Planner made for a run.
type PlanKind int

const (
	// PlanUnknown is recorded when a run failed before the Session
	// Planner produced a decision (scan, Session Store load, or planning
	// failure), so the audit log still gets a row instead of silently
	// having none.
	PlanUnknown PlanKind = iota - 1

	// PlanNoop means the newly scanned snapshot is identical to the
	// previous one; no artifacts are written and the run completes
	// idempotently.
	PlanNoop

	// PlanFresh means a brand new session is required: either there was
	// no usable previous state, or the previous state failed a sanity
	// check and was downgraded.
	PlanFresh

	// PlanExtend means the previous session is healthy and gets a new
	// delta appended, bumping the serial by one.
	PlanExtend
)

func (k PlanKind) String() string {
	switch k {
	case PlanUnknown:
		return "unknown"
	case PlanNoop:
		return "noop"
	case PlanFresh:
		return "fresh"
	case PlanExtend:
		return "extend"
	default:
		return "unknown"
	}
}

// Plan is the Session Planner's decision for one run: the new state to
// publish plus the delta history the Publisher should keep, already
// truncated to max_deltas.
type Plan struct {
	Kind PlanKind

	SessionID string
	Serial    uint64
	Snapshot  Snapshot

	// Delta is the newly computed delta for this run. Zero value when
	// Kind is PlanFresh or PlanNoop.
	Delta Delta

	// DeltaRefs is the full set of delta references the notification
	// should declare, newest first, truncated to at most maxDeltas
	// entries. Empty when Kind is PlanFresh.
	DeltaRefs []DeltaRef
}

// PlanSession decides how to reconcile a freshly scanned snapshot against
// whatever the Session Store recovered.
//
// previous is nil when the Session Store found no usable previous state
// (first run, or a sanity check failed and the state was downgraded); in
// that case PlanSession always returns PlanFresh.
//
// maxDeltas must be >= 1; the caller (config validation) is responsible
// for rejecting anything smaller before it reaches here.
func PlanSession(previous *LoadedState, scanned Snapshot, maxDeltas int, ids IDGenerator) (Plan, error) {
	if maxDeltas < 1 {
		return Plan{}, fmt.Errorf("planning session: max_deltas must be >= 1, got %d: %w", maxDeltas, ErrPlan)
	}

	if previous == nil {
		sessionID := ids.New()
		fresh := Snapshot{SessionID: sessionID, Serial: 1, Objects: scanned.Objects}.SortedByURI()
		return Plan{
			Kind:      PlanFresh,
			SessionID: sessionID,
			Serial:    1,
			Snapshot:  fresh,
		}, nil
	}

	oldSnapshot := previous.Snapshot
	newSerial := previous.Serial + 1
	candidate := Snapshot{SessionID: previous.SessionID, Serial: newSerial, Objects: scanned.Objects}.SortedByURI()

	delta := Diff(oldSnapshot, candidate)
	if delta.IsEmpty() {
		return Plan{
			Kind:      PlanNoop,
			SessionID: previous.SessionID,
			Serial:    previous.Serial,
			Snapshot:  oldSnapshot,
		}, nil
	}

	refs := make([]DeltaRef, 0, len(previous.Deltas)+1)
	refs = append(refs, DeltaRef{Serial: newSerial}) // Ref filled in by the Publisher once the delta body is written
	refs = append(refs, previous.Deltas...)
	if len(refs) > maxDeltas {
		refs = refs[:maxDeltas]
	}

	return Plan{
		Kind:      PlanExtend,
		SessionID: previous.SessionID,
		Serial:    newSerial,
		Snapshot:  candidate,
		Delta:     delta,
		DeltaRefs: refs,
	}, nil
}
