package rrdp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service is the orchestration layer that coordinates the Scanner, Session
// Store, Diff Engine, Session Planner, Publisher, Cleaner, and the optional
// history/mirror/backup components into a single run.
type Service struct {
	scanner Scanner
	store   SessionStore
	pub     Publisher
	clock   Clock
	idgen   IDGenerator
	logger  Logger

	history HistoryRecorder
	mirror  Mirror
	backup  BackupExporter

	maxDeltas int
	targetDir string
}

// Deps groups Service's dependencies. History, Mirror, and Backup default
// to no-ops when left nil, matching their disabled-by-default posture.
type Deps struct {
	Scanner Scanner
	Store   SessionStore
	Pub     Publisher
	Clock   Clock
	IDGen   IDGenerator
	Logger  Logger

	History HistoryRecorder
	Mirror  Mirror
	Backup  BackupExporter

	MaxDeltas int
	// TargetDir is the local RRDP publication root, passed to Mirror.Push
	// so the mirror knows what tree to upload.
	TargetDir string
}

func NewService(d Deps) (*Service, error) {
	if d.MaxDeltas < 1 {
		return nil, fmt.Errorf("constructing service: max_deltas must be >= 1, got %d: %w", d.MaxDeltas, ErrConfig)
	}
	if d.History == nil {
		d.History = NopHistoryRecorder{}
	}
	if d.Mirror == nil {
		d.Mirror = NopMirror{}
	}
	if d.Backup == nil {
		d.Backup = NopBackupExporter{}
	}
	if d.Logger == nil {
		d.Logger = NewNopLogger()
	}
	return &Service{
		scanner:   d.Scanner,
		store:     d.Store,
		pub:       d.Pub,
		clock:     d.Clock,
		idgen:     d.IDGen,
		logger:    d.Logger,
		history:   d.History,
		mirror:    d.Mirror,
		backup:    d.Backup,
		maxDeltas: d.MaxDeltas,
		targetDir: d.TargetDir,
	}, nil
}

// Logger exposes the Service's configured logger so the application layer
// can share it with components constructed outside Deps (e.g. the Cleaner,
// which the CLI builds lazily only for the `clean` subcommand).
func (s *Service) Logger() Logger { return s.logger }

// RunResult summarizes one Run() for the CLI layer and for the audit log.
type RunResult struct {
	Plan Plan
}

// Run performs one full synchronization cycle: scan the source, load the
// previous state, plan, publish (unless the plan is a no-op), mirror, and
// export a backup. It never performs cleanup; that is a separate,
// explicit operation gated by the `clean` positional argument.
//
// Every invocation is recorded to the run history, including ones that
// fail before a Plan is ever produced. Failures in the Run History,
// Remote Mirror, and Backup Vault steps are logged and folded into the
// returned error: the target tree these steps read from is already
// committed at that point, but the process must still exit non-zero so
// an operator running this from cron notices.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	runID := s.idgen.New()
	startedAt := s.clock.Now()

	objects, err := s.scanner.Scan()
	if err != nil {
		scanErr := fmt.Errorf("scanning source: %w", err)
		return RunResult{}, errors.Join(scanErr, s.recordRun(ctx, runID, startedAt, Plan{Kind: PlanUnknown}, scanErr))
	}
	scanned := Snapshot{Objects: objects}

	previous, ok, err := s.store.Load()
	if err != nil {
		loadErr := fmt.Errorf("loading previous state: %w", err)
		return RunResult{}, errors.Join(loadErr, s.recordRun(ctx, runID, startedAt, Plan{Kind: PlanUnknown}, loadErr))
	}
	if !ok {
		previous = nil
	}

	plan, err := PlanSession(previous, scanned, s.maxDeltas, s.idgen)
	if err != nil {
		planErr := fmt.Errorf("planning session: %w", err)
		return RunResult{}, errors.Join(planErr, s.recordRun(ctx, runID, startedAt, Plan{Kind: PlanUnknown}, planErr))
	}

	if plan.Kind == PlanNoop {
		s.logger.Info("no changes detected", "run_id", runID, "session_id", plan.SessionID, "serial", plan.Serial)
		return RunResult{Plan: plan}, s.recordRun(ctx, runID, startedAt, plan, nil)
	}

	if err := s.pub.Publish(plan); err != nil {
		pubErr := fmt.Errorf("publishing: %w", err)
		return RunResult{}, errors.Join(pubErr, s.recordRun(ctx, runID, startedAt, plan, pubErr))
	}
	s.logger.Info("published", "run_id", runID, "kind", plan.Kind.String(), "session_id", plan.SessionID, "serial", plan.Serial,
		"publishes", len(plan.Delta.Publishes), "updates", len(plan.Delta.Updates), "withdraws", len(plan.Delta.Withdraws))

	var stepErrs []error
	if err := s.mirror.Push(ctx, s.targetDir); err != nil {
		s.logger.Warn("mirror push failed", "run_id", runID, "err", err.Error())
		stepErrs = append(stepErrs, fmt.Errorf("mirror push: %w", err))
	}
	var deltas []Delta
	if plan.Kind == PlanExtend {
		deltas = []Delta{plan.Delta}
	}
	if err := s.backup.Export(ctx, plan.Snapshot, deltas); err != nil {
		s.logger.Warn("backup export failed", "run_id", runID, "err", err.Error())
		stepErrs = append(stepErrs, fmt.Errorf("backup export: %w", err))
	}

	runErr := errors.Join(stepErrs...)
	histErr := s.recordRun(ctx, runID, startedAt, plan, runErr)
	if err := errors.Join(runErr, histErr); err != nil {
		return RunResult{Plan: plan}, err
	}
	return RunResult{Plan: plan}, nil
}

// RunClean performs the separate cleanup operation triggered by the
// `clean` positional argument.
func (s *Service) RunClean(cleaner Cleaner) (int, error) {
	ok, err := s.store.HasEverPublished()
	if err != nil {
		return 0, fmt.Errorf("checking publication history: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("refusing to clean: target has never produced a notification: %w", ErrConfig)
	}
	removed, err := cleaner.Clean()
	if err != nil {
		return removed, fmt.Errorf("cleaning: %w", err)
	}
	s.logger.Info("clean complete", "removed", removed)
	return removed, nil
}

// recordRun writes one row to the run history, regardless of how far the
// run got. A failure to write it is logged and also returned, since the
// run history is one of the steps whose errors are fatal to the process
// exit code; the caller folds it into the run's overall error via
// errors.Join.
func (s *Service) recordRun(ctx context.Context, runID string, startedAt time.Time, plan Plan, runErr error) error {
	run := PublicationRun{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: s.clock.Now(),
		Kind:       plan.Kind,
		SessionID:  plan.SessionID,
		Serial:     plan.Serial,
		PublishedN: len(plan.Delta.Publishes),
		UpdatedN:   len(plan.Delta.Updates),
		WithdrawnN: len(plan.Delta.Withdraws),
	}
	if runErr != nil {
		run.Err = runErr.Error()
	}
	if err := s.history.Record(ctx, run); err != nil {
		s.logger.Warn("recording run history failed", "run_id", runID, "err", err.Error())
		return fmt.Errorf("recording run history: %w", err)
	}
	return nil
}
