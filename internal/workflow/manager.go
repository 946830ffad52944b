package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"visionrecall/internal/config"
	"visionrecall/internal/logging"
	"visionrecall/internal/notifications"
	"visionrecall/internal/queue"
	"visionrecall/internal/results"
)

// Processor runs the per-item pipeline.
type Processor interface {
	// Admit reports whether the item carries new content.
	Admit(item *queue.Item) (bool, error)
	Process(ctx context.Context, item *queue.Item) (*results.Entry, error)
}

// Manager coordinates queue processing.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	state     *queue.State
	processor Processor
	notifier  notifications.Service
	logger    *slog.Logger
	delay     time.Duration

	mu      sync.Mutex
	started bool
	running bool
	// inFlight is set while processor.Process runs.
	inFlight bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	idle    chan struct{}

	lastErr  error
	lastItem *queue.Item

	queueActive bool
	queueStart  time.Time
	session     sessionCounts
}

type sessionCounts struct {
	processed int
	failed    int
	skipped   int
}

// NewManager constructs a workflow manager with the ntfy notifier from cfg.
func NewManager(cfg *config.Config, store *queue.Store, state *queue.State, processor Processor, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, state, processor, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, state *queue.State, processor Processor, logger *slog.Logger, notifier notifications.Service) *Manager {
	if state == nil {
		state = queue.NewState()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	idle := make(chan struct{})
	close(idle)
	return &Manager{
		cfg:       cfg,
		store:     store,
		state:     state,
		processor: processor,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "workflow-manager"),
		delay:     time.Duration(cfg.Queue.InterItemDelayMS) * time.Millisecond,
		idle:      idle,
	}
}

// State returns the observable queue state.
func (m *Manager) State() *queue.State {
	return m.state
}
