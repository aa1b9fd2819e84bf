// Package clean implements the Cleaner: removing on-disk session/serial
// directories the current notification no longer references.
package clean

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"rrdpd/internal/rrdp"
)

// Cleaner removes artifacts not referenced by the current notification.
type Cleaner struct {
	targetDir string
	store     rrdp.SessionStore
	logger    rrdp.Logger
}

// New builds a Cleaner. store is used both to read the current
// notification and to enumerate on-disk artifacts.
func New(targetDir string, store rrdp.SessionStore, logger rrdp.Logger) *Cleaner {
	if logger == nil {
		logger = rrdp.NewNopLogger()
	}
	return &Cleaner{targetDir: targetDir, store: store, logger: logger}
}

var _ rrdp.Cleaner = (*Cleaner)(nil)

// Clean deletes every "<session_id>/<serial>/" directory not referenced
// by the current notification, then any "<session_id>" directory left
// empty. Per-entry deletion failures are logged and do not abort the
// pass; it never touches notification.xml itself.
func (c *Cleaner) Clean() (int, error) {
	state, ok, err := c.store.Load()
	if err != nil {
		return 0, fmt.Errorf("loading current notification: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("no usable notification to clean against: %w", rrdp.ErrConfig)
	}

	keepSerials := map[uint64]bool{state.Serial: true}
	for _, d := range state.Deltas {
		keepSerials[d.Serial] = true
	}

	artifacts, err := c.store.Artifacts()
	if err != nil {
		return 0, fmt.Errorf("enumerating artifacts: %w", err)
	}

	removed := 0
	sessionsSeen := map[string]bool{}
	for _, a := range artifacts {
		sessionsSeen[a.SessionID] = true
		if !a.HasSerial {
			continue
		}
		if a.SessionID == state.SessionID && keepSerials[a.Serial] {
			continue
		}
		dir := filepath.Join(c.targetDir, a.SessionID, strconv.FormatUint(a.Serial, 10))
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("failed to remove stale serial directory", "dir", dir, "err", err.Error())
			continue
		}
		removed++
	}

	for sessionID := range sessionsSeen {
		dir := filepath.Join(c.targetDir, sessionID)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				c.logger.Warn("failed to remove empty session directory", "dir", dir, "err", err.Error())
			}
		}
	}

	return removed, nil
}
