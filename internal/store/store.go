// Package store implements the Session Store: recovering the previous
// RRDP session from a target directory tree, and enumerating on-disk
// artifacts for the Cleaner.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"rrdpd/internal/hash"
	"rrdpd/internal/rrdp"
	"rrdpd/internal/rrdpxml"
)

// Store is the filesystem-backed rrdp.SessionStore.
type Store struct {
	targetDir string
	logger    rrdp.Logger
}

// New builds a Store rooted at targetDir.
func New(targetDir string, logger rrdp.Logger) *Store {
	if logger == nil {
		logger = rrdp.NewNopLogger()
	}
	return &Store{targetDir: targetDir, logger: logger}
}

var _ rrdp.SessionStore = (*Store)(nil)

func (s *Store) notificationPath() string {
	return filepath.Join(s.targetDir, "notification.xml")
}

// HasEverPublished reports whether notification.xml currently exists in
// the target. A notification that was deleted after being written is not
// detected; the clean safety brake only needs "does the file exist right
// now", since a target that never produced one has no notion of prior
// publication at all.
func (s *Store) HasEverPublished() (bool, error) {
	_, err := os.Stat(s.notificationPath())
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking for prior notification: %w: %w", err, rrdp.ErrIO)
}

// Load recovers the previous session, downgrading any parse or integrity
// failure to (nil, false, nil) instead of propagating it.
func (s *Store) Load() (*rrdp.LoadedState, bool, error) {
	data, err := os.ReadFile(s.notificationPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading notification: %w: %w", err, rrdp.ErrIO)
	}

	notification, err := rrdpxml.ParseNotification(data)
	if err != nil {
		s.logger.Info("previous notification unusable, starting fresh session", "err", err.Error())
		return nil, false, nil
	}

	if err := checkDeltaChainConsecutive(notification); err != nil {
		s.logger.Info("previous state unusable, starting fresh session", "err", err.Error())
		return nil, false, nil
	}

	snapshotPath := s.docPath(notification.SessionID, notification.Serial, "snapshot.xml")
	snapshotBytes, err := readAndVerify(snapshotPath, notification.SnapshotRef.Hash)
	if err != nil {
		s.logger.Info("previous state unusable, starting fresh session", "err", err.Error())
		return nil, false, nil
	}
	snapshot, err := rrdpxml.ParseSnapshot(snapshotBytes)
	if err != nil {
		s.logger.Info("previous state unusable, starting fresh session", "err", err.Error())
		return nil, false, nil
	}
	if snapshot.SessionID != notification.SessionID {
		s.logger.Info("previous state unusable, starting fresh session", "err", "snapshot session_id disagrees with notification")
		return nil, false, nil
	}

	for _, ref := range notification.DeltaRefs {
		deltaPath := s.docPath(notification.SessionID, ref.Serial, "delta.xml")
		deltaBytes, err := readAndVerify(deltaPath, ref.Ref.Hash)
		if err != nil {
			s.logger.Info("previous state unusable, starting fresh session", "err", err.Error())
			return nil, false, nil
		}
		delta, err := rrdpxml.ParseDelta(deltaBytes)
		if err != nil {
			s.logger.Info("previous state unusable, starting fresh session", "err", err.Error())
			return nil, false, nil
		}
		if delta.SessionID != notification.SessionID {
			s.logger.Info("previous state unusable, starting fresh session", "err", "delta session_id disagrees with notification")
			return nil, false, nil
		}
	}

	deltas := append([]rrdp.DeltaRef(nil), notification.DeltaRefs...)
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Serial > deltas[j].Serial })

	return &rrdp.LoadedState{
		SessionID: notification.SessionID,
		Serial:    notification.Serial,
		Snapshot:  snapshot,
		Deltas:    deltas,
	}, true, nil
}

// Artifacts enumerates every "<session_id>" and "<session_id>/<serial>/"
// directory under the target, for the Cleaner.
func (s *Store) Artifacts() ([]rrdp.SessionDir, error) {
	entries, err := os.ReadDir(s.targetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading target directory: %w: %w", err, rrdp.ErrIO)
	}

	var dirs []rrdp.SessionDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sessionID := e.Name()
		dirs = append(dirs, rrdp.SessionDir{SessionID: sessionID})

		serials, err := os.ReadDir(filepath.Join(s.targetDir, sessionID))
		if err != nil {
			return nil, fmt.Errorf("reading session directory %s: %w: %w", sessionID, err, rrdp.ErrIO)
		}
		for _, se := range serials {
			if !se.IsDir() {
				continue
			}
			serial, err := strconv.ParseUint(se.Name(), 10, 64)
			if err != nil {
				continue // not a serial directory; leave alone
			}
			dirs = append(dirs, rrdp.SessionDir{SessionID: sessionID, Serial: serial, HasSerial: true})
		}
	}

	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].SessionID != dirs[j].SessionID {
			return dirs[i].SessionID < dirs[j].SessionID
		}
		return dirs[i].Serial < dirs[j].Serial
	})
	return dirs, nil
}

func (s *Store) docPath(sessionID string, serial uint64, name string) string {
	return filepath.Join(s.targetDir, sessionID, strconv.FormatUint(serial, 10), name)
}

func readAndVerify(path, wantHash string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	got := hash.Hex(data)
	if got != wantHash {
		return nil, fmt.Errorf("hash mismatch for %s: declared %s, actual %s: %w", path, wantHash, got, rrdp.ErrIntegrity)
	}
	return data, nil
}

var errNonConsecutive = errors.New("delta chain is not consecutive")

func checkDeltaChainConsecutive(n rrdp.Notification) error {
	if len(n.DeltaRefs) == 0 {
		return nil
	}
	serials := make([]uint64, len(n.DeltaRefs))
	for i, d := range n.DeltaRefs {
		serials[i] = d.Serial
	}
	sort.Slice(serials, func(i, j int) bool { return serials[i] > serials[j] })
	if serials[0] != n.Serial {
		return fmt.Errorf("highest delta serial %d does not match notification serial %d: %w", serials[0], n.Serial, errNonConsecutive)
	}
	for i := 1; i < len(serials); i++ {
		if serials[i-1]-serials[i] != 1 {
			return fmt.Errorf("delta serials %d and %d are not consecutive: %w", serials[i-1], serials[i], errNonConsecutive)
		}
	}
	return nil
}
