package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rrdpd/internal/backupvault"
	"rrdpd/internal/clean"
	"rrdpd/internal/config"
	"rrdpd/internal/history"
	"rrdpd/internal/mirror"
	"rrdpd/internal/publish"
	"rrdpd/internal/rrdp"
	"rrdpd/internal/scan"
	"rrdpd/internal/store"
)

// App is the application layer between the CLI and the rrdp.Service. It
// constructs every component from config, wires the optional history/
// mirror/backup side-packages when enabled, and manages their lifecycle,
// so the CLI never has to assemble the domain packages itself.
type App struct {
	cfg     *config.Config
	svc     *rrdp.Service
	sess    *store.Store
	hist    *history.Recorder
	logFile *os.File
}

// New builds a fully wired App from cfg. The caller must call Close when
// done.
func New(cfg *config.Config) (*App, error) {
	if cfg.Source == "" || cfg.Target == "" {
		return nil, fmt.Errorf("%w: source and target directories are required", rrdp.ErrConfig)
	}
	if err := validateBaseURI("rsync", cfg.RsyncBase, "rsync://"); err != nil {
		return nil, err
	}
	if err := validateBaseURI("https", cfg.HTTPSBase, "https://"); err != nil {
		return nil, err
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = "."
	}
	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(logDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	slogAdapt := &slogAdapter{l: logger}

	ignore := scan.NewIgnoreMatcher(cfg.Filesystem.Ignore)
	scanner := scan.New(cfg.Source, cfg.RsyncBase, ignore)
	sess := store.New(cfg.Target, slogAdapt)
	pub := publish.New(cfg.Target, cfg.HTTPSBase)

	var hist *history.Recorder
	var recorder rrdp.HistoryRecorder
	if cfg.History.Enabled {
		dbPath := cfg.History.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(filepath.Dir(filepath.Clean(cfg.Target)), "rrdpd-history.db")
		}
		hist, err = history.Open(dbPath)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("opening run history database: %w", err)
		}
		recorder = hist
	}

	var mir rrdp.Mirror
	if cfg.Mirror.Enabled {
		m, err := mirror.New(context.Background(), mirror.Config{
			Bucket: cfg.Mirror.Bucket,
			Region: cfg.Mirror.Region,
			Prefix: cfg.Mirror.Prefix,
		})
		if err != nil {
			if hist != nil {
				hist.Close()
			}
			logFile.Close()
			return nil, fmt.Errorf("configuring S3 mirror: %w", err)
		}
		mir = m
	}

	var backup rrdp.BackupExporter
	if cfg.Backup.Enabled {
		backup = backupvault.New(cfg.Backup.OutputPath, cfg.Backup.RecipientPath)
	}

	svc, err := rrdp.NewService(rrdp.Deps{
		Scanner:   scanner,
		Store:     sess,
		Pub:       pub,
		Clock:     rrdp.RealClock{},
		IDGen:     rrdp.UUIDGenerator{},
		Logger:    slogAdapt,
		History:   recorder,
		Mirror:    mir,
		Backup:    backup,
		MaxDeltas: cfg.MaxDeltas,
		TargetDir: cfg.Target,
	})
	if err != nil {
		if hist != nil {
			hist.Close()
		}
		logFile.Close()
		return nil, fmt.Errorf("constructing service: %w", err)
	}

	return &App{cfg: cfg, svc: svc, sess: sess, hist: hist, logFile: logFile}, nil
}

// validateBaseURI requires the rsync and HTTPS base URIs the Publisher
// and Source Scanner both need to build valid document URIs: non-empty,
// the right scheme, and a trailing slash. All three are rejected outright
// rather than silently coerced, since a malformed base URI would only
// surface later as broken links in published RRDP documents.
func validateBaseURI(flag, value, scheme string) error {
	if value == "" {
		return fmt.Errorf("%w: --%s is required", rrdp.ErrConfig, flag)
	}
	if !strings.HasPrefix(value, scheme) {
		return fmt.Errorf("%w: --%s must start with %q, got %q", rrdp.ErrConfig, flag, scheme, value)
	}
	if !strings.HasSuffix(value, "/") {
		return fmt.Errorf("%w: --%s must end with a trailing slash, got %q", rrdp.ErrConfig, flag, value)
	}
	return nil
}

// Run performs one full scan-plan-publish cycle.
func (a *App) Run(ctx context.Context) (rrdp.RunResult, error) {
	tracker := NewRunTracker(time.Now().UTC().Format("20060102T150405Z"))
	result, err := a.svc.Run(ctx)
	if err != nil {
		tracker.Fail(err.Error())
		a.svc.Logger().Error("run failed", "run_id", tracker.RunID, "detail", tracker.Detail)
	}
	return result, err
}

// Clean removes artifacts no longer referenced by the current notification.
func (a *App) Clean() (int, error) {
	c := clean.New(a.cfg.Target, a.sess, a.svc.Logger())
	return a.svc.RunClean(c)
}

// History returns the recent run-history rows, or an error if run history
// is not enabled for this configuration.
func (a *App) History(ctx context.Context, limit int) ([]history.Run, error) {
	if a.hist == nil {
		return nil, fmt.Errorf("%w: run history is not enabled in this configuration", rrdp.ErrConfig)
	}
	return a.hist.List(ctx, limit)
}

// Close releases all resources held by the App.
func (a *App) Close() error {
	var firstErr error
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			firstErr = fmt.Errorf("closing run history database: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
