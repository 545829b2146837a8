// Package progress is the event and halt channel between a running build
// and whoever drives it.
package progress

import (
	"sync"
	"time"
)

// DefaultBuffer is the event capacity used when none is given.
const DefaultBuffer = 256

// Stream identifies where an event's message came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	StreamStatus Stream = "status"
)

// Event is one progress notification.
type Event struct {
	// Module is the module label, empty for events about the whole build.
	Module string
	// Phase names the build phase or pipeline stage.
	Phase   string
	Stream  Stream
	Message string
	Time    time.Time
}

// Channel delivers events in emission order until it is halted or closed.
// Once Halt returns, no further event is delivered.
type Channel struct {
	events chan Event

	haltCh   chan struct{}
	haltOnce sync.Once

	// mu guards halted and closed, and serializes delivery against Halt.
	mu     sync.Mutex
	halted bool
	closed bool
}

// NewChannel returns a channel holding up to buffer undelivered events.
func NewChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Channel{
		events: make(chan Event, buffer),
		haltCh: make(chan struct{}),
	}
}

// Events returns the receive side. It is closed by Close.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Emit delivers e, blocking while the buffer is full. Events emitted after
// Halt or Close are dropped.
func (c *Channel) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted || c.closed {
		return
	}
	select {
	case c.events <- e:
	case <-c.haltCh:
	}
}

// Halt stops delivery. It reports whether this call performed the halt.
func (c *Channel) Halt() bool {
	first := false
	c.haltOnce.Do(func() {
		first = true
		close(c.haltCh)
		c.mu.Lock()
		c.halted = true
		c.mu.Unlock()
	})
	return first
}

// Halted is closed once Halt has been called.
func (c *Channel) Halted() <-chan struct{} {
	return c.haltCh
}

// IsHalted reports whether Halt has been called.
func (c *Channel) IsHalted() bool {
	select {
	case <-c.haltCh:
		return true
	default:
		return false
	}
}

// Close ends the event stream. Calling it more than once is harmless.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
