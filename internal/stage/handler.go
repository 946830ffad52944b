package stage

import (
	"context"

	"visionrecall/internal/services"
)

// Stopper reports whether the user asked the queue to stop. Stages consult it
// after every blocking call.
type Stopper interface {
	IsStopped() bool
}

// StopperFunc adapts a function to Stopper.
type StopperFunc func() bool

// IsStopped implements Stopper.
func (f StopperFunc) IsStopped() bool {
	if f == nil {
		return false
	}
	return f()
}

// Checkpoint returns services.ErrStopped when the stopper is set or the
// context has been cancelled. A nil stopper only consults the context.
func Checkpoint(ctx context.Context, stopper Stopper, stageName string) error {
	if stopper != nil && stopper.IsStopped() {
		return services.Wrap(services.ErrStopped, stageName, "checkpoint", "", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return services.WrapContext(services.ErrStopped, stageName, "checkpoint", err)
		}
	}
	return nil
}
