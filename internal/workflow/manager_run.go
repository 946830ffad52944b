package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"visionrecall/internal/logging"
	"visionrecall/internal/queue"
	"visionrecall/internal/services"
)

// MessagePaused is the status message while the loop is suspended.
const MessagePaused = "Paused"

type passResult int

const (
	passExhausted passResult = iota
	passStopped
	passPaused
	passShutdown
)

// Start restores pending items from the journal and begins processing them.
// Cancelling ctx shuts the loop down; in-flight items return to pending.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.processor == nil || m.store == nil {
		m.mu.Unlock()
		return errors.New("workflow processor not configured")
	}
	m.baseCtx, m.cancel = context.WithCancel(ctx)
	m.started = true
	m.mu.Unlock()

	items, err := m.store.List(ctx, queue.StatusPending)
	if err != nil {
		return fmt.Errorf("load queue journal: %w", err)
	}
	if len(items) > 0 {
		m.state.Mutate(func(p *queue.ProcessingStatus) {
			known := make(map[int64]struct{}, len(p.Queue))
			for _, it := range p.Queue {
				known[it.ID] = struct{}{}
			}
			for _, it := range items {
				if _, ok := known[it.ID]; ok {
					continue
				}
				p.Queue = append(p.Queue, *it)
			}
			p.Total = len(p.Queue)
		})
		m.logger.Info("restored pending screenshots",
			logging.String(logging.FieldEventType, "queue_restored"),
			logging.Int("count", len(items)),
		)
	}
	m.runLoop()
	return nil
}

// Close cancels the loop and waits for it to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.started = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wait blocks until no processing loop is running.
func (m *Manager) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		if !m.running {
			m.mu.Unlock()
			return nil
		}
		idle := m.idle
		m.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runLoop starts the processing loop unless one is already running, the
// queue is paused, or nothing is pending.
func (m *Manager) runLoop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.running {
		return false
	}
	snap := m.state.Snapshot()
	if snap.IsPaused || !snap.HasPending() {
		return false
	}
	m.running = true
	m.idle = make(chan struct{})
	m.wg.Add(1)
	go m.loop(m.baseCtx)
	return true
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		result := m.pass(ctx)
		if result != passExhausted {
			m.state.Mutate(func(p *queue.ProcessingStatus) {
				p.IsProcessing = false
				if result == passShutdown {
					p.CurrentItem = ""
				}
			})
		}

		// Resume or Enqueue may have run while this pass was winding down; their
		// runLoop saw a live loop and returned, so this loop must pick the work up.
		m.mu.Lock()
		snap := m.state.Snapshot()
		if ctx.Err() == nil && !snap.IsStopped && !snap.IsPaused && snap.HasPending() {
			m.mu.Unlock()
			continue
		}
		m.running = false
		close(m.idle)
		m.mu.Unlock()

		if result == passExhausted {
			m.checkQueueCompletion(ctx)
		}
		return
	}
}

func (m *Manager) pass(ctx context.Context) passResult {
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		if !p.IsStopped {
			p.IsProcessing = true
		}
	})
	m.onQueueStarted(ctx)

	for {
		snap := m.state.Snapshot()
		item, ok := firstPending(snap.Queue)
		if !ok {
			break
		}
		if snap.IsStopped {
			m.logger.Info("queue stopped", logging.String(logging.FieldEventType, "queue_stopped"))
			return passStopped
		}
		if snap.IsPaused {
			m.suspend()
			return passPaused
		}
		if ctx.Err() != nil {
			return passShutdown
		}

		m.processOne(ctx, item)

		if ctx.Err() != nil {
			return passShutdown
		}
		if m.state.IsPaused() {
			m.suspend()
			return passPaused
		}
		if m.state.IsStopped() {
			continue
		}
		if !m.sleep(ctx) {
			return passShutdown
		}
	}

	m.state.Mutate(func(p *queue.ProcessingStatus) {
		if p.IsStopped || p.IsPaused {
			return
		}
		p.IsProcessing = false
		p.CurrentItem = ""
	})
	return passExhausted
}

func (m *Manager) suspend() {
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		p.IsProcessing = false
		p.Message = MessagePaused
	})
	m.logger.Info("queue paused", logging.String(logging.FieldEventType, "queue_paused"))
}

func (m *Manager) sleep(ctx context.Context) bool {
	if m.delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) setInFlight(v bool) {
	m.mu.Lock()
	m.inFlight = v
	m.mu.Unlock()
}

func firstPending(items []queue.Item) (queue.Item, bool) {
	for _, item := range items {
		if item.Status == queue.StatusPending {
			return item, true
		}
	}
	return queue.Item{}, false
}

func (m *Manager) processOne(ctx context.Context, item queue.Item) {
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithSource(ctx, item.SourcePath)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)

	admitted, err := m.processor.Admit(&item)
	if err != nil {
		m.fail(ctx, item, err)
		return
	}
	if !admitted {
		m.setStatus(ctx, item.ID, queue.StatusSkipped, "duplicate content")
		m.mu.Lock()
		m.session.skipped++
		m.mu.Unlock()
		logger.Info("duplicate screenshot skipped",
			logging.String(logging.FieldEventType, "item_skipped"),
		)
		return
	}

	if !m.state.SetItemStatus(item.ID, queue.StatusProcessing, "") {
		logger.Debug("item removed before processing")
		return
	}
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		p.CurrentItem = item.SourcePath
		if !p.IsStopped {
			p.IsProcessing = true
		}
	})
	m.journal(ctx, item.ID, queue.StatusProcessing, "")
	logger.Info("processing screenshot", logging.String(logging.FieldEventType, "item_start"))
	started := time.Now()

	m.setInFlight(true)
	entry, err := m.processor.Process(ctx, &item)
	m.setInFlight(false)
	switch {
	case err == nil:
		m.setStatus(ctx, item.ID, queue.StatusCompleted, "")
		m.mu.Lock()
		m.session.processed++
		m.mu.Unlock()
		item.Status = queue.StatusCompleted
		m.setLastItem(&item)
		logger.Info("screenshot completed",
			logging.String(logging.FieldEventType, "item_complete"),
			logging.Duration("elapsed", time.Since(started)),
		)
		m.notifyItemCompleted(ctx, entry)
	case services.IsStopped(err):
		m.setStatus(ctx, item.ID, queue.StatusPending, "")
		logger.Info("screenshot returned to pending",
			logging.String(logging.FieldEventType, "item_stopped"),
		)
	default:
		m.fail(ctx, item, err)
	}
}

func (m *Manager) fail(ctx context.Context, item queue.Item, err error) {
	message := services.Cause(err)
	if message == "" {
		message = "processing failed"
	}
	m.setStatus(ctx, item.ID, queue.StatusFailed, message)
	m.state.Mutate(func(p *queue.ProcessingStatus) {
		p.LastError = message
	})
	m.mu.Lock()
	m.session.failed++
	m.mu.Unlock()
	item.Status = queue.StatusFailed
	item.ErrorMessage = message
	m.setLastItem(&item)
	m.setLastError(err)

	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "screenshot failed", "item_failure",
		logging.String(logging.FieldErrorHint, "run 'visionrecall queue list' and retry once the cause is fixed"),
		logging.String(logging.FieldImpact, "screenshot left in intake"),
		logging.Alert("item_failure"),
		logging.Error(err),
	)
	m.notifyItemError(ctx, item, err)
}

// setStatus updates the item in state and journal.
func (m *Manager) setStatus(ctx context.Context, id int64, status queue.Status, message string) {
	if !m.state.SetItemStatus(id, status, message) {
		return
	}
	m.journal(ctx, id, status, message)
}

func (m *Manager) journal(ctx context.Context, id int64, status queue.Status, message string) {
	if err := m.store.UpdateStatus(context.WithoutCancel(ctx), id, status, message); err != nil {
		m.logger.Warn("failed to journal item status; restart may revisit it",
			logging.String(logging.FieldEventType, "journal_update_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.Int64(logging.FieldItemID, id),
			logging.String("status", string(status)),
			logging.Error(err),
		)
	}
}
