package rrdp

import "context"

// Mirror pushes the committed target tree to a secondary location after a
// successful publish. A Mirror failure is logged and does not touch the
// already-committed target directory, but it is still fatal to the run's
// exit code so an operator notices the secondary copy fell behind.
type Mirror interface {
	// Push uploads the given root directory's contents, keyed by their
	// path relative to root.
	Push(ctx context.Context, root string) error
}

// NopMirror is used when no remote mirror is configured.
type NopMirror struct{}

func (NopMirror) Push(context.Context, string) error { return nil }
