package pipeline

import (
	"sync"

	"rtm-pose-go/pkg/capture"
)

// Mailbox is a single-slot frame handoff between the capture goroutine and
// the inference loop. New frames overwrite unconsumed ones, so the
// inference loop always sees the latest frame and never a backlog.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *capture.Frame
	closed bool
	drops  uint64
	onDrop func(capture.Frame)
}

// NewMailbox creates a mailbox. onDrop is invoked for every frame that is
// overwritten before consumption (typically to release its Mat); it may be
// nil.
func NewMailbox(onDrop func(capture.Frame)) *Mailbox {
	m := &Mailbox{onDrop: onDrop}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores a frame, overwriting any unconsumed one. Never blocks.
// Returns true when a frame was dropped. Putting into a closed mailbox
// drops the frame.
func (m *Mailbox) Put(frame capture.Frame) bool {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		if m.onDrop != nil {
			m.onDrop(frame)
		}
		return true
	}

	dropped := m.frame != nil
	var old capture.Frame
	if dropped {
		old = *m.frame
		m.drops++
	}
	m.frame = &frame
	m.cond.Signal()
	m.mu.Unlock()

	if dropped && m.onDrop != nil {
		m.onDrop(old)
	}
	return dropped
}

// Take blocks until a frame is available or the mailbox closes. The second
// result is false after Close.
func (m *Mailbox) Take() (capture.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.frame == nil {
		return capture.Frame{}, false
	}

	frame := *m.frame
	m.frame = nil
	return frame, true
}

// Close wakes any blocked Take and drops a pending unconsumed frame.
// Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending := m.frame
	m.frame = nil
	m.cond.Broadcast()
	m.mu.Unlock()

	if pending != nil && m.onDrop != nil {
		m.onDrop(*pending)
	}
}

// Drops returns the number of frames overwritten before consumption.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
