package rrdp

import "errors"

// Sentinel errors identifying the closed error taxonomy of the engine.
// Concrete errors returned by any package in this module wrap one of these
// with fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrConfig marks a configuration problem: a missing flag, an invalid
	// URI, max_deltas < 1, or an unusable source/target path.
	ErrConfig = errors.New("config error")

	// ErrIO marks a filesystem read/write/rename failure.
	ErrIO = errors.New("io error")

	// ErrParse marks malformed XML, an unexpected element, or a malformed
	// hash/base64 value. The Session Store downgrades this locally to a
	// fresh-session decision instead of propagating it; the Codec's public
	// API treats it as fatal.
	ErrParse = errors.New("parse error")

	// ErrIntegrity marks a hash mismatch between a notification's declared
	// hash and the referenced body's actual content. Downgraded the same
	// way as ErrParse inside the Session Store.
	ErrIntegrity = errors.New("integrity error")

	// ErrPlan marks an internal inconsistency in the Session Planner that
	// should never occur; its presence indicates a bug, not an operator
	// mistake.
	ErrPlan = errors.New("plan error")
)
