package app

import (
	"path/filepath"
	"testing"
)

func TestGetDefaultsUsesEnvVars(t *testing.T) {
	t.Setenv("RRDPD_CONFIG", "/etc/rrdpd.toml")
	t.Setenv("DATA", "/var/lib/rrdpd")
	t.Setenv("SOURCE_DIR", "/srv/rsync/repo")
	t.Setenv("TARGET_DIR", "/srv/rrdp")
	t.Setenv("RSYNC_URI", "rsync://example.com/repo/")
	t.Setenv("HTTPS_URI", "https://rrdp.example.com/repo/")

	d := GetDefaults()

	if d.ConfigPath != "/etc/rrdpd.toml" {
		t.Errorf("ConfigPath = %q", d.ConfigPath)
	}
	if d.LogDir != filepath.Join("/var/lib/rrdpd", "log") {
		t.Errorf("LogDir = %q", d.LogDir)
	}
	if d.Source != "/srv/rsync/repo" || d.Target != "/srv/rrdp" {
		t.Errorf("Source/Target = %q/%q", d.Source, d.Target)
	}
	if d.RsyncBase != "rsync://example.com/repo/" || d.HTTPSBase != "https://rrdp.example.com/repo/" {
		t.Errorf("RsyncBase/HTTPSBase = %q/%q", d.RsyncBase, d.HTTPSBase)
	}
}

func TestGetDefaultsEmptyWhenUnset(t *testing.T) {
	t.Setenv("RRDPD_CONFIG", "")
	t.Setenv("DATA", "")
	t.Setenv("SOURCE_DIR", "")
	t.Setenv("TARGET_DIR", "")
	t.Setenv("RSYNC_URI", "")
	t.Setenv("HTTPS_URI", "")

	d := GetDefaults()
	if d.ConfigPath != "" || d.LogDir != "" || d.Source != "" {
		t.Errorf("expected empty defaults, got %+v", d)
	}
}
