package rrdpxml

import (
	"testing"

	"rrdpd/internal/rrdp"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := rrdp.Snapshot{
		SessionID: "1111-2222", Serial: 3,
		Objects: []rrdp.Object{
			{URI: "rsync://a/b.cer", Bytes: []byte("hello"), Hash: "ignored-on-write"},
			{URI: "rsync://a/a.cer", Bytes: []byte("world"), Hash: "ignored-on-write"},
		},
	}
	data, err := MarshalSnapshot(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseSnapshot(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.SessionID != s.SessionID || got.Serial != s.Serial {
		t.Fatalf("session/serial mismatch: %+v", got)
	}
	if len(got.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(got.Objects))
	}
	if got.Objects[0].URI != "rsync://a/a.cer" {
		t.Fatalf("expected URI-sorted objects, got %+v", got.Objects)
	}
	if string(got.Objects[1].Bytes) != "hello" {
		t.Fatalf("bytes did not round-trip: %q", got.Objects[1].Bytes)
	}
}

func TestDeltaRoundTripDistinguishesPublishFromUpdate(t *testing.T) {
	oldHash := sha256Hex([]byte("previous"))
	d := rrdp.Delta{
		SessionID: "sess", Serial: 5,
		Publishes: []rrdp.Publish{{URI: "rsync://a/new.cer", Bytes: []byte("new"), Hash: sha256Hex([]byte("new"))}},
		Updates:   []rrdp.Update{{URI: "rsync://a/changed.cer", Bytes: []byte("after"), Hash: sha256Hex([]byte("after")), OldHash: oldHash}},
		Withdraws: []rrdp.Withdraw{{URI: "rsync://a/gone.cer", OldHash: oldHash}},
	}

	data, err := MarshalDelta(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseDelta(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Publishes) != 1 || got.Publishes[0].URI != "rsync://a/new.cer" {
		t.Fatalf("publishes mismatch: %+v", got.Publishes)
	}
	if len(got.Updates) != 1 || got.Updates[0].OldHash != oldHash {
		t.Fatalf("updates mismatch: %+v", got.Updates)
	}
	if len(got.Withdraws) != 1 || got.Withdraws[0].OldHash != oldHash {
		t.Fatalf("withdraws mismatch: %+v", got.Withdraws)
	}
}

func TestNotificationRoundTripDescendingOrder(t *testing.T) {
	n := rrdp.Notification{
		SessionID:   "sess",
		Serial:      3,
		SnapshotRef: rrdp.FileRef{URI: "https://x/sess/3/snapshot.xml", Hash: sha256Hex([]byte("snap"))},
		DeltaRefs: []rrdp.DeltaRef{
			{Serial: 2, Ref: rrdp.FileRef{URI: "https://x/sess/2/delta.xml", Hash: sha256Hex([]byte("d2"))}},
			{Serial: 3, Ref: rrdp.FileRef{URI: "https://x/sess/3/delta.xml", Hash: sha256Hex([]byte("d3"))}},
		},
	}
	data, err := MarshalNotification(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseNotification(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.DeltaRefs) != 2 || got.DeltaRefs[0].Serial != 3 || got.DeltaRefs[1].Serial != 2 {
		t.Fatalf("expected descending serial order, got %+v", got.DeltaRefs)
	}
}

func TestParseNotificationRejectsBadHash(t *testing.T) {
	bad := []byte(`<?xml version="1.0"?><notification xmlns="http://www.ripe.net/rpki/rrdp" version="1" session_id="s" serial="1"><snapshot uri="https://x/s/1/snapshot.xml" hash="not-a-hash"/></notification>`)
	if _, err := ParseNotification(bad); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}

func TestParseSnapshotRejectsUnknownElement(t *testing.T) {
	bad := []byte(`<?xml version="1.0"?><snapshot xmlns="http://www.ripe.net/rpki/rrdp" version="1" session_id="s" serial="1"><bogus/></snapshot>`)
	if _, err := ParseSnapshot(bad); err == nil {
		t.Fatalf("expected error for unknown element")
	}
}
