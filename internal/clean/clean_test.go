package clean

import (
	"os"
	"path/filepath"
	"testing"

	"rrdpd/internal/publish"
	"rrdpd/internal/rrdp"
	"rrdpd/internal/store"
)

func TestCleanRemovesUnreferencedSessionDir(t *testing.T) {
	dir := t.TempDir()
	pub := publish.New(dir, "https://example.com/repo")

	if err := pub.Publish(rrdp.Plan{
		Kind: rrdp.PlanFresh, SessionID: "old-session", Serial: 1,
		Snapshot: rrdp.Snapshot{SessionID: "old-session", Serial: 1},
	}); err != nil {
		t.Fatalf("publish old: %v", err)
	}
	if err := pub.Publish(rrdp.Plan{
		Kind: rrdp.PlanFresh, SessionID: "new-session", Serial: 1,
		Snapshot: rrdp.Snapshot{SessionID: "new-session", Serial: 1},
	}); err != nil {
		t.Fatalf("publish new: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "old-session")); err != nil {
		t.Fatalf("expected old-session dir to still exist before clean: %v", err)
	}

	s := store.New(dir, nil)
	c := New(dir, s, nil)
	removed, err := c.Clean()
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed directory, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "old-session")); !os.IsNotExist(err) {
		t.Fatalf("expected old-session dir to be gone, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "new-session", "1", "snapshot.xml")); err != nil {
		t.Fatalf("expected current session artifacts to survive: %v", err)
	}
}

func TestCleanRefusesWithoutPriorPublication(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir, nil)
	c := New(dir, s, nil)
	if _, err := c.Clean(); err == nil {
		t.Fatalf("expected error when target has no notification")
	}
}
