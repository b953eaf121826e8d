package backup

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the service's notion of wall-clock time. The engine reads
// it for copy throttling and progress cadence, the supervisor for
// registration timestamps, and workers for run start/finish times, so
// tests can drive pacing deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RunIDs issues identifiers for recorded backup runs.
type RunIDs interface {
	NewID() string
}

// UUIDRunIDs issues random UUIDs as run identifiers.
type UUIDRunIDs struct{}

func (UUIDRunIDs) NewID() string { return uuid.NewString() }
