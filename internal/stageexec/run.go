package stageexec

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"visionrecall/internal/logging"
	"visionrecall/internal/services"
	"visionrecall/internal/stage"
)

// Options controls how a single stage call is bounded and observed.
type Options struct {
	Logger    *slog.Logger
	Stopper   stage.Stopper
	StageName string
	Timeout   time.Duration
}

// Run executes fn between two stop checkpoints. The outcome of a call that
// finished after a stop request, result or error, is discarded and
// services.ErrStopped is returned instead. Context failures are classified as stop or timeout.
func Run[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	stageCtx := services.WithStage(ctx, opts.StageName)
	logger := logging.WithContext(stageCtx, opts.Logger)

	if err := stage.Checkpoint(stageCtx, opts.Stopper, opts.StageName); err != nil {
		return zero, err
	}

	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()

	callCtx, cancel := stage.Bound(stageCtx, opts.Timeout)
	result, err := fn(callCtx)
	cancel()

	if err != nil {
		// A stop that arrived during the call wins over the call's own error.
		if stopErr := stage.Checkpoint(stageCtx, opts.Stopper, opts.StageName); services.IsStopped(stopErr) {
			logger.Info("stage interrupted",
				logging.String(logging.FieldEventType, "stage_stopped"),
				logging.Duration("elapsed", time.Since(started)),
				logging.Error(err),
			)
			return zero, stopErr
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = services.WrapContext(services.ErrExternalTool, opts.StageName, "execute", err)
		}
		if services.IsStopped(err) {
			logger.Info("stage interrupted",
				logging.String(logging.FieldEventType, "stage_stopped"),
				logging.Duration("elapsed", time.Since(started)),
			)
			return zero, err
		}
		logger.Warn("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return zero, err
	}

	if err := stage.Checkpoint(stageCtx, opts.Stopper, opts.StageName); err != nil {
		logger.Info("stage result discarded after stop",
			logging.String(logging.FieldEventType, "stage_stopped"),
		)
		return zero, err
	}

	logger.Debug("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}
