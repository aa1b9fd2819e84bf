// Package config loads and persists rrdpd's configuration, layering an
// optional TOML file under environment variables and CLI flags.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config carries the flag-equivalent core settings plus the optional
// domain-feature blocks for run history, remote mirroring, and backup.
type Config struct {
	Source    string `toml:"source"`
	Target    string `toml:"target"`
	RsyncBase string `toml:"rsync"`
	HTTPSBase string `toml:"https"`
	MaxDeltas int    `toml:"max_deltas"`
	LogDir    string `toml:"log_dir,omitempty"`

	History    HistoryConfig    `toml:"history"`
	Mirror     MirrorConfig     `toml:"mirror"`
	Backup     BackupConfig     `toml:"backup"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// HistoryConfig configures the run-history audit log.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path,omitempty"`
}

// MirrorConfig configures the optional S3 remote mirror.
type MirrorConfig struct {
	Enabled bool   `toml:"enabled"`
	Bucket  string `toml:"bucket,omitempty"`
	Region  string `toml:"region,omitempty"`
	Prefix  string `toml:"prefix,omitempty"`
}

// BackupConfig configures the optional age-encrypted disaster-recovery
// export.
type BackupConfig struct {
	Enabled       bool   `toml:"enabled"`
	OutputPath    string `toml:"output_path,omitempty"`
	RecipientPath string `toml:"recipient_path,omitempty"`
}

// FilesystemConfig holds Source Scanner filesystem-layer settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// DefaultMaxDeltas is the delta-history cap when neither config, env, nor
// flag override it.
const DefaultMaxDeltas = 25

// New returns a Config populated with built-in defaults.
func New() *Config {
	return &Config{MaxDeltas: DefaultMaxDeltas}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := New()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the file at path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a starter config file at path. It refuses to overwrite an
// existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
