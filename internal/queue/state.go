package queue

import (
	"sync"
)

// ProcessingStatus is a snapshot of what the queue is doing now.
type ProcessingStatus struct {
	IsProcessing bool   `json:"is_processing"`
	IsPaused     bool   `json:"is_paused"`
	IsStopped    bool   `json:"is_stopped"`
	CurrentItem  string `json:"current_item,omitempty"`
	Progress     int    `json:"progress"`
	Message      string `json:"message,omitempty"`
	Queue        []Item `json:"queue"`
	Total        int    `json:"total"`
	LastError    string `json:"last_error,omitempty"`
}

// Counts aggregates queue items by status.
func (p ProcessingStatus) Counts() HealthSummary {
	var h HealthSummary
	for _, item := range p.Queue {
		h.Add(item.Status, 1)
	}
	return h
}

// HasPending reports whether any item is still waiting.
func (p ProcessingStatus) HasPending() bool {
	for _, item := range p.Queue {
		if item.Status == StatusPending {
			return true
		}
	}
	return false
}

func (p ProcessingStatus) clone() ProcessingStatus {
	out := p
	out.Queue = make([]Item, len(p.Queue))
	copy(out.Queue, p.Queue)
	return out
}

// State is the shared processing status. Writers go through Mutate; readers
// take snapshots or subscribe to change notifications.
type State struct {
	mu     sync.Mutex
	status ProcessingStatus

	subMu  sync.Mutex
	subs   map[uint64]func(ProcessingStatus)
	nextID uint64
}

// NewState returns an idle state with an empty queue.
func NewState() *State {
	return &State{
		status: ProcessingStatus{Queue: []Item{}},
		subs:   make(map[uint64]func(ProcessingStatus)),
	}
}

// Snapshot returns a deep copy of the current status.
func (s *State) Snapshot() ProcessingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.clone()
}

// Mutate applies fn under the state lock and notifies subscribers with the
// resulting snapshot. A paused queue never reports processing.
func (s *State) Mutate(fn func(*ProcessingStatus)) ProcessingStatus {
	s.mu.Lock()
	fn(&s.status)
	if s.status.IsPaused {
		s.status.IsProcessing = false
	}
	if s.status.Progress < 0 {
		s.status.Progress = 0
	} else if s.status.Progress > 100 {
		s.status.Progress = 100
	}
	snapshot := s.status.clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

// Reset restores the idle defaults and drops every item.
func (s *State) Reset() ProcessingStatus {
	return s.Mutate(func(p *ProcessingStatus) {
		*p = ProcessingStatus{Queue: []Item{}}
	})
}

// Subscribe registers fn for change notifications. Callbacks run
// synchronously on the writer's goroutine after the state lock is released,
// and must not block.
// The returned function cancels the subscription.
func (s *State) Subscribe(fn func(ProcessingStatus)) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *State) notify(snapshot ProcessingStatus) {
	s.subMu.Lock()
	fns := make([]func(ProcessingStatus), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// IsStopped reports the stop flag.
func (s *State) IsStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.IsStopped
}

// IsPaused reports the pause flag.
func (s *State) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.IsPaused
}

// SetItemStatus updates the item with id and returns false if it is gone.
func (s *State) SetItemStatus(id int64, status Status, errMsg string) bool {
	found := false
	s.Mutate(func(p *ProcessingStatus) {
		for i := range p.Queue {
			if p.Queue[i].ID == id {
				p.Queue[i].Status = status
				p.Queue[i].ErrorMessage = errMsg
				found = true
				return
			}
		}
	})
	return found
}

// Item returns a copy of the item with id.
func (s *State) Item(id int64) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.status.Queue {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}
