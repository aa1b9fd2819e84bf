package rrdp

import "context"

// BackupExporter writes an encrypted disaster-recovery export of the
// current session's artifacts. Disabled by default; when disabled the
// engine uses NopBackupExporter.
type BackupExporter interface {
	Export(ctx context.Context, snapshot Snapshot, deltas []Delta) error
}

// NopBackupExporter is used when the backup vault is not configured.
type NopBackupExporter struct{}

func (NopBackupExporter) Export(context.Context, Snapshot, []Delta) error { return nil }
