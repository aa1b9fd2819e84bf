// Package backupvault implements the disaster-recovery export: an
// age-encrypted archive of the current snapshot and the deltas handed to
// Export (the Service passes only the delta published by the same run,
// none for a fresh session), written after every successful publish. Key material is a plain
// X25519 keypair generated once via `rrdpd keys init`; the private half
// is scrypt-passphrase-encrypted at rest, and each export is encrypted
// to the public half so the running process never needs the passphrase.
package backupvault

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"rrdpd/internal/rrdp"
	"rrdpd/internal/rrdpxml"
)

// Vault writes age-encrypted disaster-recovery exports.
type Vault struct {
	outputPath    string
	recipientPath string
}

// New builds a Vault that encrypts to the public key stored at
// recipientPath and writes the result to outputPath, overwriting it
// atomically on each export.
func New(outputPath, recipientPath string) *Vault {
	return &Vault{outputPath: outputPath, recipientPath: recipientPath}
}

var _ rrdp.BackupExporter = (*Vault)(nil)

// Export archives snapshot.xml and each delta.xml into a tar stream,
// age-encrypts it against the vault's recipient, and writes it to
// outputPath. Encoding never touches the network or shells out; a
// corrupt or missing key is a configuration error the operator must fix
// before backups can resume, so it is surfaced rather than swallowed —
// the caller (the Service) logs a failed export and folds it into the
// run's returned error, leaving the committed target tree untouched.
func (v *Vault) Export(ctx context.Context, snapshot rrdp.Snapshot, deltas []rrdp.Delta) error {
	recipient, err := v.loadRecipient()
	if err != nil {
		return fmt.Errorf("%w: loading backup recipient: %v", rrdp.ErrConfig, err)
	}

	var archive bytes.Buffer
	if err := writeArchive(&archive, snapshot, deltas); err != nil {
		return err
	}

	tmpPath := v.outputPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("%w: creating backup file: %v", rrdp.ErrIO, err)
	}

	encWriter, err := age.Encrypt(f, recipient)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: creating encrypted writer: %v", rrdp.ErrIO, err)
	}
	if _, err := io.Copy(encWriter, &archive); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: encrypting backup: %v", rrdp.ErrIO, err)
	}
	if err := encWriter.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: finalizing encryption: %v", rrdp.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: syncing backup file: %v", rrdp.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing backup file: %v", rrdp.ErrIO, err)
	}
	if err := os.Rename(tmpPath, v.outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming backup file: %v", rrdp.ErrIO, err)
	}
	return nil
}

func writeArchive(w io.Writer, snapshot rrdp.Snapshot, deltas []rrdp.Delta) error {
	tw := tar.NewWriter(w)

	snapBytes, err := rrdpxml.MarshalSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshaling snapshot for backup: %v", rrdp.ErrParse, err)
	}
	if err := addTarEntry(tw, "snapshot.xml", snapBytes); err != nil {
		return err
	}

	for _, d := range deltas {
		deltaBytes, err := rrdpxml.MarshalDelta(d)
		if err != nil {
			return fmt.Errorf("%w: marshaling delta %d for backup: %v", rrdp.ErrParse, d.Serial, err)
		}
		name := fmt.Sprintf("delta-%d.xml", d.Serial)
		if err := addTarEntry(tw, name, deltaBytes); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("%w: finalizing backup archive: %v", rrdp.ErrIO, err)
	}
	return nil
}

func addTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0644}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%w: writing backup archive header for %s: %v", rrdp.ErrIO, name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("%w: writing backup archive entry %s: %v", rrdp.ErrIO, name, err)
	}
	return nil
}

func (v *Vault) loadRecipient() (age.Recipient, error) {
	data, err := os.ReadFile(v.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in public key file")
	}
	return recipients[0], nil
}

// GenerateKeyPair creates a new X25519 identity, writing the public key
// in plaintext to publicKeyPath and the scrypt-passphrase-encrypted
// private key to privateKeyPath. Used by the `rrdpd keys init` command.
func GenerateKeyPair(publicKeyPath, privateKeyPath, passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("%w: generating key pair: %v", rrdp.ErrConfig, err)
	}

	if err := os.MkdirAll(filepath.Dir(publicKeyPath), 0700); err != nil {
		return fmt.Errorf("%w: creating public key directory: %v", rrdp.ErrIO, err)
	}
	if err := os.MkdirAll(filepath.Dir(privateKeyPath), 0700); err != nil {
		return fmt.Errorf("%w: creating private key directory: %v", rrdp.ErrIO, err)
	}

	if err := os.WriteFile(publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("%w: writing public key: %v", rrdp.ErrIO, err)
	}

	privFile, err := os.OpenFile(privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("%w: creating private key file: %v", rrdp.ErrIO, err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("%w: creating scrypt recipient: %v", rrdp.ErrConfig, err)
	}

	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("%w: creating encrypted writer: %v", rrdp.ErrIO, err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("%w: writing encrypted private key: %v", rrdp.ErrIO, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: finalizing encrypted private key: %v", rrdp.ErrIO, err)
	}
	return nil
}
