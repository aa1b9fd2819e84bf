package publish

import (
	"os"
	"path/filepath"
	"testing"

	"rrdpd/internal/rrdp"
	"rrdpd/internal/rrdpxml"
)

func TestPublishFreshSessionWritesSnapshotOnly(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "https://example.com/repo")

	plan := rrdp.Plan{
		Kind:      rrdp.PlanFresh,
		SessionID: "sess-1",
		Serial:    1,
		Snapshot: rrdp.Snapshot{
			SessionID: "sess-1", Serial: 1,
			Objects: []rrdp.Object{{URI: "rsync://x/a.cer", Bytes: []byte("a"), Hash: "irrelevant"}},
		},
	}

	if err := p.Publish(plan); err != nil {
		t.Fatalf("publish: %v", err)
	}

	snapshotPath := filepath.Join(dir, "sess-1", "1", "snapshot.xml")
	if _, err := os.Stat(snapshotPath); err != nil {
		t.Fatalf("expected snapshot.xml to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sess-1", "1", "delta.xml")); err == nil {
		t.Fatalf("did not expect delta.xml for a fresh session")
	}

	notificationBytes, err := os.ReadFile(filepath.Join(dir, "notification.xml"))
	if err != nil {
		t.Fatalf("reading notification: %v", err)
	}
	n, err := rrdpxml.ParseNotification(notificationBytes)
	if err != nil {
		t.Fatalf("parsing notification: %v", err)
	}
	if n.SessionID != "sess-1" || n.Serial != 1 {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if len(n.DeltaRefs) != 0 {
		t.Fatalf("expected zero delta refs, got %+v", n.DeltaRefs)
	}
	if n.SnapshotRef.URI != "https://example.com/repo/sess-1/1/snapshot.xml" {
		t.Fatalf("unexpected snapshot URI: %s", n.SnapshotRef.URI)
	}
}

func TestPublishExtendWritesDeltaAndNotification(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "https://example.com/repo/")

	delta := rrdp.Delta{
		SessionID: "sess-1", Serial: 2,
		Publishes: []rrdp.Publish{{URI: "rsync://x/new.cer", Bytes: []byte("new"), Hash: "h-new"}},
	}
	plan := rrdp.Plan{
		Kind:      rrdp.PlanExtend,
		SessionID: "sess-1",
		Serial:    2,
		Snapshot: rrdp.Snapshot{
			SessionID: "sess-1", Serial: 2,
			Objects: []rrdp.Object{{URI: "rsync://x/new.cer", Bytes: []byte("new"), Hash: "h-new"}},
		},
		Delta:     delta,
		DeltaRefs: []rrdp.DeltaRef{{Serial: 2}},
	}

	if err := p.Publish(plan); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deltaPath := filepath.Join(dir, "sess-1", "2", "delta.xml")
	if _, err := os.Stat(deltaPath); err != nil {
		t.Fatalf("expected delta.xml to exist: %v", err)
	}

	notificationBytes, err := os.ReadFile(filepath.Join(dir, "notification.xml"))
	if err != nil {
		t.Fatalf("reading notification: %v", err)
	}
	n, err := rrdpxml.ParseNotification(notificationBytes)
	if err != nil {
		t.Fatalf("parsing notification: %v", err)
	}
	if len(n.DeltaRefs) != 1 || n.DeltaRefs[0].Serial != 2 {
		t.Fatalf("expected one delta ref for serial 2, got %+v", n.DeltaRefs)
	}
	if n.DeltaRefs[0].Ref.Hash == "" {
		t.Fatalf("expected delta ref hash to be filled in from written bytes")
	}
}

func TestPublishNoopWritesNothing(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "https://example.com/repo")
	if err := p.Publish(rrdp.Plan{Kind: rrdp.PlanNoop}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written for a no-op plan, got %+v", entries)
	}
}
