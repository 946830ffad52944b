package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	// ErrStopped marks user-initiated cancellation. Items failing with it stay pending.
	ErrStopped = errors.New("stopped by user")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WrapContext classifies context failures: deadlines become ErrTimeout and
// cancellation becomes ErrStopped. Other errors are tagged with marker.
func WrapContext(marker error, stage, operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStopped), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrTimeout, stage, operation, "deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return Wrap(ErrStopped, stage, operation, "", err)
	default:
		return Wrap(marker, stage, operation, "", err)
	}
}

// IsStopped reports whether err represents user cancellation rather than failure.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}

// Cause strips marker prefixes and returns a short message suitable for a
// queue item's error column.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrExternalTool, ErrValidation, ErrConfiguration, ErrNotFound, ErrTimeout, ErrTransient, ErrStopped} {
		msg = strings.TrimPrefix(msg, marker.Error()+": ")
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
