package stage

import (
	"context"
	"time"
)

// Bound applies the per-stage timeout. A non-positive timeout leaves the
// context unbounded.
func Bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// TimeoutFromSeconds converts a configured stage timeout.
func TimeoutFromSeconds(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
