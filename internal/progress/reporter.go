// Package progress reports per-item pipeline progress into the shared queue
// state.
package progress

import (
	"sync"

	"visionrecall/internal/queue"
)

// Increments applied as each pipeline step starts.
const (
	StepOCR    = 10
	StepVision = 30
	StepNotes  = 20
	StepTags   = 20
	StepSave   = 20
)

// Reporter tracks the progress of the item currently being processed.
type Reporter struct {
	state *queue.State

	mu       sync.Mutex
	progress int
}

// NewReporter binds a reporter to state.
func NewReporter(state *queue.State) *Reporter {
	return &Reporter{state: state}
}

// Start resets progress and publishes the initial message. It leaves the
// stop and pause flags alone.
func (r *Reporter) Start(message string) {
	r.mu.Lock()
	r.progress = 0
	r.mu.Unlock()
	r.state.Mutate(func(p *queue.ProcessingStatus) {
		p.Progress = 0
		p.Message = message
	})
}

// Advance adds increment to the cumulative progress, capped at 100. It is a
// no-op once the queue has been stopped.
func (r *Reporter) Advance(message string, increment int) {
	if r.state.IsStopped() {
		return
	}
	r.mu.Lock()
	r.progress += increment
	if r.progress > 100 {
		r.progress = 100
	}
	if r.progress < 0 {
		r.progress = 0
	}
	current := r.progress
	r.mu.Unlock()

	r.state.Mutate(func(p *queue.ProcessingStatus) {
		if p.IsStopped {
			return
		}
		p.IsProcessing = !p.IsPaused
		p.Message = message
		p.Progress = current
	})
}

// End clears the message and progress unless the queue was stopped, in which
// case the stop path owns the final state. A successful item also clears the
// last recorded error.
func (r *Reporter) End(success bool) {
	r.mu.Lock()
	r.progress = 0
	r.mu.Unlock()
	r.state.Mutate(func(p *queue.ProcessingStatus) {
		if p.IsStopped {
			return
		}
		p.Message = ""
		p.Progress = 0
		if success {
			p.LastError = ""
		}
	})
}

// Progress returns the cumulative progress of the current item.
func (r *Reporter) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// IsStopped reports the shared stop flag.
func (r *Reporter) IsStopped() bool {
	return r.state.IsStopped()
}

// SetStopped sets or clears the stop flag. Clearing it also clears pause.
func (r *Reporter) SetStopped(stopped bool) {
	r.state.Mutate(func(p *queue.ProcessingStatus) {
		if stopped {
			p.IsStopped = true
			p.IsProcessing = false
			p.IsPaused = false
			return
		}
		p.IsStopped = false
		p.IsPaused = false
	})
}
