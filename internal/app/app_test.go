package app

import (
	"errors"
	"testing"

	"rrdpd/internal/config"
	"rrdpd/internal/rrdp"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Source = t.TempDir()
	cfg.Target = t.TempDir()
	cfg.RsyncBase = "rsync://example.com/repo/"
	cfg.HTTPSBase = "https://rrdp.example.com/repo/"
	cfg.LogDir = t.TempDir()
	return cfg
}

func TestNewAcceptsWellFormedConfig(t *testing.T) {
	a, err := New(validConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()
}

func TestNewRejectsMissingRsyncBase(t *testing.T) {
	cfg := validConfig(t)
	cfg.RsyncBase = ""
	if _, err := New(cfg); !errors.Is(err, rrdp.ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
}

func TestNewRejectsWrongSchemeRsyncBase(t *testing.T) {
	cfg := validConfig(t)
	cfg.RsyncBase = "https://example.com/repo/"
	if _, err := New(cfg); !errors.Is(err, rrdp.ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
}

func TestNewRejectsRsyncBaseWithoutTrailingSlash(t *testing.T) {
	cfg := validConfig(t)
	cfg.RsyncBase = "rsync://example.com/repo"
	if _, err := New(cfg); !errors.Is(err, rrdp.ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
}

func TestNewRejectsMissingHTTPSBase(t *testing.T) {
	cfg := validConfig(t)
	cfg.HTTPSBase = ""
	if _, err := New(cfg); !errors.Is(err, rrdp.ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
}

func TestNewRejectsWrongSchemeHTTPSBase(t *testing.T) {
	cfg := validConfig(t)
	cfg.HTTPSBase = "rsync://example.com/repo/"
	if _, err := New(cfg); !errors.Is(err, rrdp.ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
}

func TestNewRejectsHTTPSBaseWithoutTrailingSlash(t *testing.T) {
	cfg := validConfig(t)
	cfg.HTTPSBase = "https://rrdp.example.com/repo"
	if _, err := New(cfg); !errors.Is(err, rrdp.ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
}
