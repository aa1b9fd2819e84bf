package rrdp

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so run bookkeeping is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts session-id generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUID v4 session ids.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
