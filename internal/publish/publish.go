// Package publish implements the Publisher: it turns a Session Planner
// decision into the atomic sequence of writes that leaves the
// notification as the last thing to change.
package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rrdpd/internal/hash"
	"rrdpd/internal/rrdp"
	"rrdpd/internal/rrdpxml"
)

// Publisher writes a Plan's artifacts under targetDir and constructs the
// HTTPS URIs recorded in the notification using httpsBase.
type Publisher struct {
	targetDir string
	httpsBase string
}

// New builds a Publisher. httpsBase is forced to end with '/' so document
// URIs join cleanly with the session/serial/filename path segments.
func New(targetDir, httpsBase string) *Publisher {
	if !strings.HasSuffix(httpsBase, "/") {
		httpsBase += "/"
	}
	return &Publisher{targetDir: targetDir, httpsBase: httpsBase}
}

var _ rrdp.Publisher = (*Publisher)(nil)

// Publish commits plan's snapshot, optional delta, and notification.
// Hashes recorded in the notification are computed over the exact bytes
// written to disk.
func (p *Publisher) Publish(plan rrdp.Plan) error {
	if plan.Kind == rrdp.PlanNoop {
		return nil
	}

	serialDir := filepath.Join(p.targetDir, plan.SessionID, strconv.FormatUint(plan.Serial, 10))
	if err := os.MkdirAll(serialDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w: %w", serialDir, err, rrdp.ErrIO)
	}

	snapshotBytes, err := rrdpxml.MarshalSnapshot(plan.Snapshot)
	if err != nil {
		return fmt.Errorf("serializing snapshot: %w", err)
	}
	snapshotPath := filepath.Join(serialDir, "snapshot.xml")
	if err := writeFileAtomic(snapshotPath, snapshotBytes); err != nil {
		return err
	}
	snapshotRef := rrdp.FileRef{
		URI:  p.documentURI(plan.SessionID, plan.Serial, "snapshot.xml"),
		Hash: hash.Hex(snapshotBytes),
		Size: int64(len(snapshotBytes)),
	}

	deltaRefs := append([]rrdp.DeltaRef(nil), plan.DeltaRefs...)
	if plan.Kind == rrdp.PlanExtend && !plan.Delta.IsEmpty() {
		deltaBytes, err := rrdpxml.MarshalDelta(plan.Delta)
		if err != nil {
			return fmt.Errorf("serializing delta: %w", err)
		}
		deltaPath := filepath.Join(serialDir, "delta.xml")
		if err := writeFileAtomic(deltaPath, deltaBytes); err != nil {
			return err
		}
		newRef := rrdp.FileRef{
			URI:  p.documentURI(plan.SessionID, plan.Serial, "delta.xml"),
			Hash: hash.Hex(deltaBytes),
			Size: int64(len(deltaBytes)),
		}
		if len(deltaRefs) == 0 || deltaRefs[0].Serial != plan.Serial {
			return fmt.Errorf("planner did not reserve a delta ref slot for serial %d: %w", plan.Serial, rrdp.ErrPlan)
		}
		deltaRefs[0].Ref = newRef
	}

	notification := rrdp.Notification{
		SessionID:   plan.SessionID,
		Serial:      plan.Serial,
		SnapshotRef: snapshotRef,
		DeltaRefs:   deltaRefs,
	}
	notificationBytes, err := rrdpxml.MarshalNotification(notification)
	if err != nil {
		return fmt.Errorf("serializing notification: %w", err)
	}
	notificationPath := filepath.Join(p.targetDir, "notification.xml")
	if err := writeFileAtomic(notificationPath, notificationBytes); err != nil {
		return err
	}

	return nil
}

func (p *Publisher) documentURI(sessionID string, serial uint64, name string) string {
	return p.httpsBase + sessionID + "/" + strconv.FormatUint(serial, 10) + "/" + name
}
