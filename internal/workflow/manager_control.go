package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"visionrecall/internal/logging"
	"visionrecall/internal/queue"
)

// Toggle actions reported by Toggle.
const (
	ActionPaused  = "paused"
	ActionResumed = "resumed"
	ActionStarted = "started"
	ActionIdle    = "idle"
)

// Enqueue appends a pending item for path and starts the loop when idle.
// A path that is already pending or processing is not queued twice.
func (m *Manager) Enqueue(ctx context.Context, path string) (*queue.Item, error) {
	item, err := m.add(ctx, path)
	if err != nil {
		return nil, err
	}
	m.runLoop()
	return item, nil
}

// EnqueueMany appends every path and starts the loop once.
func (m *Manager) EnqueueMany(ctx context.Context, paths []string) ([]*queue.Item, error) {
	items := make([]*queue.Item, 0, len(paths))
	var errs []error
	for _, path := range paths {
		item, err := m.add(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}
	m.runLoop()
	return items, errors.Join(errs...)
}

func (m *Manager) add(ctx context.Context, path string) (*queue.Item, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if existing, err := m.store.FindActiveByPath(ctx, abs); err != nil {
		return nil, err
	} else if existing != nil {
		if _, inState := m.state.Item(existing.ID); inState {
			return existing, nil
		}
		m.state.Mutate(func(p *queue.ProcessingStatus) {
			p.Queue = append(p.Queue, *existing)
			p.Total = len(p.Queue)
		})
		return existing, nil
	}

	item, err := m.store.Enqueue(ctx, abs)
	if err != nil {
		return nil, err
	}
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		p.Queue = append(p.Queue, *item)
		p.Total = len(p.Queue)
	})
	m.logger.Debug("screenshot enqueued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldSource, abs),
	)
	return item, nil
}

// Pause suspends the loop after the current item. The queue is untouched.
func (m *Manager) Pause() {
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		p.IsPaused = true
	})
	m.logger.Info("pause requested", logging.String(logging.FieldEventType, "queue_pause_requested"))
}

// Resume clears the pause and stop flags and continues with pending items.
// Only an item still inside a stage call makes the queue report processing
// again; otherwise the loop sets the flag when it takes the next item.
func (m *Manager) Resume() {
	m.mu.Lock()
	inFlight := m.inFlight
	m.mu.Unlock()
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		p.IsPaused = false
		p.IsStopped = false
		p.IsProcessing = inFlight
		if p.Message == MessagePaused {
			p.Message = ""
		}
	})
	m.logger.Info("resume requested", logging.String(logging.FieldEventType, "queue_resumed"))
	m.runLoop()
}

// Stop asks the loop to exit at its next checkpoint. The in-flight item, if
// any, returns to pending once its current stage call finishes.
func (m *Manager) Stop() {
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		p.IsStopped = true
		p.IsProcessing = false
		p.IsPaused = false
		p.Progress = 0
		p.Message = ""
	})
	m.logger.Info("stop requested", logging.String(logging.FieldEventType, "queue_stop_requested"))
}

// Clear drops every item from the state and the journal and restores the
// default flags. It returns the number of journal rows removed.
func (m *Manager) Clear(ctx context.Context) (int64, error) {
	m.state.Reset()
	removed, err := m.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_cleared"),
		logging.Int64("removed", removed),
	)
	return removed, nil
}

// ClearTerminal drops completed, failed and skipped items, leaving pending
// and in-flight work alone.
func (m *Manager) ClearTerminal(ctx context.Context) (int64, error) {
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		kept := p.Queue[:0]
		for _, item := range p.Queue {
			if !item.Status.IsTerminal() {
				kept = append(kept, item)
			}
		}
		p.Queue = kept
		p.Total = len(p.Queue)
	})
	return m.store.ClearTerminal(ctx)
}

// Remove drops a single item regardless of its status. ref is either an item
// id or a source path.
func (m *Manager) Remove(ctx context.Context, ref string) (bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false, errors.New("item id or path required")
	}
	var id int64 = -1
	if parsed, err := strconv.ParseInt(ref, 10, 64); err == nil {
		id = parsed
	} else {
		abs, _ := filepath.Abs(ref)
		for _, item := range m.state.Snapshot().Queue {
			if item.SourcePath == ref || item.SourcePath == abs {
				id = item.ID
				break
			}
		}
		if id < 0 {
			existing, err := m.store.FindActiveByPath(ctx, abs)
			if err != nil {
				return false, err
			}
			if existing == nil {
				return false, nil
			}
			id = existing.ID
		}
	}

	inState := false
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		for i := range p.Queue {
			if p.Queue[i].ID == id {
				p.Queue = append(p.Queue[:i], p.Queue[i+1:]...)
				inState = true
				break
			}
		}
		p.Total = len(p.Queue)
	})
	removed, err := m.store.Remove(ctx, id)
	if err != nil {
		return inState, err
	}
	return inState || removed, nil
}

// Toggle maps a single status-bar action onto the queue: a processing queue
// pauses, a paused or stopped queue resumes, and an idle queue with pending
// items starts.
func (m *Manager) Toggle() string {
	snap := m.state.Snapshot()
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	switch {
	case snap.IsPaused || snap.IsStopped:
		m.Resume()
		return ActionResumed
	case snap.IsProcessing || running:
		m.Pause()
		return ActionPaused
	case snap.HasPending():
		if m.runLoop() {
			return ActionStarted
		}
		return ActionIdle
	default:
		return ActionIdle
	}
}
