package publish

import (
	"fmt"
	"os"
	"path/filepath"

	"rrdpd/internal/rrdp"
)

// writeFileAtomic writes data to destPath by writing to a temp file in the
// same directory, fsyncing it, and renaming it over destPath: a reader
// can never observe a partially written file at destPath.
func writeFileAtomic(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w: %w", dir, err, rrdp.ErrIO)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w: %w", tmpPath, err, rrdp.ErrIO)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsyncing %s: %w: %w", tmpPath, err, rrdp.ErrIO)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w: %w", tmpPath, err, rrdp.ErrIO)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming %s to %s: %w: %w", tmpPath, destPath, err, rrdp.ErrIO)
	}

	success = true
	return nil
}
