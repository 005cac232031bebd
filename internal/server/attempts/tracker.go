// Package attempts counts consecutive failed logins per username. Entries
// expire a fixed time after their last write; a counter that reaches
// MaxAttempts marks the name as exceeded.
package attempts

import (
	"context"
	"time"
)

const (
	// MaxAttempts is the failure count at which Exceeded reports true.
	MaxAttempts = 5
	// TTL is how long a counter survives without being written.
	TTL = 15 * time.Minute
	// Capacity bounds the number of live entries in the in-memory tracker.
	Capacity = 100
)

// Tracker is the failed-login counter consulted by the login flow.
// Implementations must make RecordFailure atomic per name.
type Tracker interface {
	// RecordFailure adds one failure for name, starting at 1 when no live
	// entry exists, and refreshes the entry's TTL.
	RecordFailure(ctx context.Context, name string) error
	// Evict drops the counter for name.
	Evict(ctx context.Context, name string) error
	// Exceeded reports whether name has at least MaxAttempts live failures.
	Exceeded(ctx context.Context, name string) (bool, error)
	// Count returns the live failure count for name, 0 when none.
	Count(ctx context.Context, name string) (int, error)
}
