package workflow

import (
	"context"

	"visionrecall/internal/logging"
	"visionrecall/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool                   `json:"running"`
	Status     queue.ProcessingStatus `json:"status"`
	LastError  string                 `json:"last_error,omitempty"`
	LastItem   *queue.Item            `json:"last_item,omitempty"`
	QueueStats map[queue.Status]int   `json:"queue_stats"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	running := m.running
	lastErr := m.lastErr
	lastItem := m.lastItem
	m.mu.Unlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{Running: running, Status: m.state.Snapshot(), QueueStats: stats}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastItem != nil {
		item := *lastItem
		summary.LastItem = &item
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	if item != nil {
		snapshot := *item
		m.lastItem = &snapshot
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}
