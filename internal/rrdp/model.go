// Package rrdp holds the domain core of the RRDP publication engine: the
// data model, the diff and planning algorithms, the interfaces implemented
// by the storage/mirror/backup/history side-packages, and the Service that
// wires them into a single reconciliation run.
package rrdp

import "sort"

// Object is a single repository object keyed by its rsync URI, as recovered
// from the source tree by the scanner or from a parsed snapshot/delta.
type Object struct {
	URI   string
	Bytes []byte
	Hash  string // lowercase hex SHA-256 of Bytes
}

// Snapshot is the full enumeration of a repository's objects at a serial
// within a session.
type Snapshot struct {
	SessionID string
	Serial    uint64
	Objects   []Object
}

// ByURI returns the snapshot's objects indexed by URI. Callers must not
// mutate the returned map's values in place; Object is a value type.
func (s Snapshot) ByURI() map[string]Object {
	m := make(map[string]Object, len(s.Objects))
	for _, o := range s.Objects {
		m[o.URI] = o
	}
	return m
}

// SortedByURI returns a copy of s with Objects ordered by URI, satisfying
// the Source Scanner's determinism contract and the Codec's canonical
// serialization order.
func (s Snapshot) SortedByURI() Snapshot {
	out := Snapshot{SessionID: s.SessionID, Serial: s.Serial, Objects: append([]Object(nil), s.Objects...)}
	sort.Slice(out.Objects, func(i, j int) bool { return out.Objects[i].URI < out.Objects[j].URI })
	return out
}

// Publish is a delta element for a URI with no prior version.
type Publish struct {
	URI   string
	Bytes []byte
	Hash  string
}

// Update is a delta element replacing a prior version of a URI.
type Update struct {
	URI     string
	Bytes   []byte
	Hash    string
	OldHash string
}

// Withdraw is a delta element removing a URI that existed at the prior serial.
type Withdraw struct {
	URI     string
	OldHash string
}

// Delta is the set of publishes, updates, and withdraws that transform the
// snapshot at Serial-1 into the snapshot at Serial.
type Delta struct {
	SessionID string
	Serial    uint64
	Publishes []Publish
	Updates   []Update
	Withdraws []Withdraw
}

// Len returns the total number of elements in the delta.
func (d Delta) Len() int {
	return len(d.Publishes) + len(d.Updates) + len(d.Withdraws)
}

// IsEmpty reports whether the delta carries no changes at all.
func (d Delta) IsEmpty() bool {
	return d.Len() == 0
}

// FileRef names an RRDP document on disk by its HTTPS URI, its SHA-256 hash,
// and its size — the three facts a Notification needs to point a reader at
// a body and let it verify what it fetched.
type FileRef struct {
	URI  string
	Hash string
	Size int64
}

// DeltaRef is a FileRef tagged with the serial it belongs to.
type DeltaRef struct {
	Serial uint64
	Ref    FileRef
}

// Notification is the entry-point document: it names the current snapshot
// and the tail of the retained delta history, in descending serial order.
type Notification struct {
	SessionID    string
	Serial       uint64
	SnapshotRef  FileRef
	DeltaRefs    []DeltaRef // descending by Serial, highest (== Serial) first
}
