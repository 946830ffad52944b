package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"visionrecall/internal/logging"
	"visionrecall/internal/notifications"
	"visionrecall/internal/queue"
	"visionrecall/internal/results"
)

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send notification", logging.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (m *Manager) notifyItemCompleted(ctx context.Context, entry *results.Entry) {
	if entry == nil {
		return
	}
	m.publish(ctx, notifications.EventItemCompleted, notifications.Payload{
		"title": entry.Title,
		"tags":  entry.FormattedTags,
	})
}

func (m *Manager) notifyItemError(ctx context.Context, item queue.Item, err error) {
	m.publish(ctx, notifications.EventError, notifications.Payload{
		"error":   err,
		"context": filepath.Base(item.SourcePath),
	})
}

func (m *Manager) onQueueStarted(ctx context.Context) {
	snap := m.state.Snapshot()
	pending := snap.Counts().Pending
	if pending == 0 {
		return
	}
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.session = sessionCounts{}
	m.mu.Unlock()

	m.logger.Info("queue started",
		logging.String(logging.FieldEventType, "queue_started"),
		logging.Int("pending", pending),
	)
	m.publish(ctx, notifications.EventQueueStarted, notifications.Payload{"count": pending})
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.state.Snapshot().HasPending() {
		return
	}
	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	counts := m.session
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	m.logger.Info("queue drained",
		logging.String(logging.FieldEventType, "queue_completed"),
		logging.Int("processed", counts.processed),
		logging.Int("failed", counts.failed),
		logging.Int("skipped", counts.skipped),
		logging.Duration("duration", duration),
	)
	m.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": counts.processed,
		"failed":    counts.failed,
		"skipped":   counts.skipped,
		"duration":  duration,
	})
}
