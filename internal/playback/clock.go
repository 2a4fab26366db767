// Package playback schedules decoded speech fragments onto a shared output
// clock and tracks the in-flight handles so they can be cut off.
package playback

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sink receives rendered output, typically a speaker or a remote client.
type Sink interface {
	Write(samples []float32) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(samples []float32) error

func (f SinkFunc) Write(samples []float32) error { return f(samples) }

type nullSink struct{}

func (nullSink) Write([]float32) error { return nil }

// NullSink discards output. Rendering still advances handles and feeds taps.
var NullSink Sink = nullSink{}

// Tap observes every rendered block, post-decode and pre-sink.
type Tap interface {
	Observe(samples []float32)
}

const defaultRenderPeriod = 20 * time.Millisecond

// OutputClock plays handles one after another in the order they were
// started. Nothing is scheduled against absolute times: queue order is
// playback order.
type OutputClock struct {
	rate   int
	period time.Duration

	mu       sync.Mutex
	queue    []*Handle
	taps     []Tap
	sink     Sink
	rendered int64
	nextID   uint64

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewOutputClock(rate int, sink Sink) *OutputClock {
	if sink == nil {
		sink = NullSink
	}
	return &OutputClock{rate: rate, period: defaultRenderPeriod, sink: sink}
}

func (c *OutputClock) Rate() int { return c.rate }

// Attach adds a tap that sees every rendered block.
func (c *OutputClock) Attach(t Tap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taps = append(c.taps, t)
}

// SetSink swaps the destination, e.g. when a new dashboard client connects.
func (c *OutputClock) SetSink(s Sink) {
	if s == nil {
		s = NullSink
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = s
}

// Elapsed reports how much audio has been rendered since creation.
func (c *OutputClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rendered) * time.Second / time.Duration(c.rate)
}

// Buffered reports the audio still queued across all pending handles.
func (c *OutputClock) Buffered() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, h := range c.queue {
		n += len(h.samples) - h.pos
	}
	return time.Duration(n) * time.Second / time.Duration(c.rate)
}

// Play queues samples behind everything already playing and returns the
// handle. onStart fires when the first sample is rendered and onEnd after
// the last one; neither fires for a stopped handle.
func (c *OutputClock) Play(samples []float32, onStart, onEnd func(*Handle)) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	h := &Handle{
		id:      c.nextID,
		clock:   c,
		samples: samples,
		onStart: onStart,
		onEnd:   onEnd,
	}
	c.queue = append(c.queue, h)
	return h
}

// Render produces the next n samples, padding with silence when the queue
// runs dry, and hands them to taps and the sink.
func (c *OutputClock) Render(n int) []float32 {
	out := make([]float32, n)
	var started, ended []*Handle

	c.mu.Lock()
	filled := 0
	for filled < n && len(c.queue) > 0 {
		h := c.queue[0]
		if h.state == stateQueued {
			h.state = statePlaying
			started = append(started, h)
		}
		k := copy(out[filled:], h.samples[h.pos:])
		h.pos += k
		filled += k
		if h.pos >= len(h.samples) {
			h.state = stateDone
			c.queue = c.queue[1:]
			ended = append(ended, h)
		}
	}
	c.rendered += int64(n)
	taps := append([]Tap(nil), c.taps...)
	sink := c.sink
	c.mu.Unlock()

	for _, h := range started {
		if h.onStart != nil {
			h.onStart(h)
		}
	}
	for _, t := range taps {
		t.Observe(out)
	}
	if err := sink.Write(out); err != nil {
		log.Printf("playback sink write failed: %v", err)
	}
	for _, h := range ended {
		if h.onEnd != nil {
			h.onEnd(h)
		}
	}
	return out
}

// Start renders in real time until Stop or ctx is done. Calling Start on a
// running clock is a no-op.
func (c *OutputClock) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stopped = make(chan struct{})
	go c.run(ctx, c.stopped)
}

func (c *OutputClock) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	block := int(int64(c.rate) * int64(c.period) / int64(time.Second))
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Render(block)
		}
	}
}

// Stop halts the real-time loop and waits for it to exit.
func (c *OutputClock) Stop() {
	c.runMu.Lock()
	cancel, stopped := c.cancel, c.stopped
	c.cancel, c.stopped = nil, nil
	c.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Flush drops every queued handle without firing callbacks and returns how
// many were dropped.
func (c *OutputClock) Flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.queue)
	for _, h := range c.queue {
		h.state = stateStopped
	}
	c.queue = nil
	return n
}

func (c *OutputClock) Running() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.cancel != nil
}

type handleState int

const (
	stateQueued handleState = iota
	statePlaying
	stateDone
	stateStopped
)

// Handle is one fragment bound to the clock.
type Handle struct {
	id      uint64
	clock   *OutputClock
	samples []float32
	pos     int
	state   handleState
	onStart func(*Handle)
	onEnd   func(*Handle)
}

func (h *Handle) ID() uint64 { return h.id }

func (h *Handle) Len() int { return len(h.samples) }

// Stop removes the handle from the clock. Stopping a handle that already
// finished or was stopped is not an error.
func (h *Handle) Stop() {
	c := h.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.state == stateDone || h.state == stateStopped {
		return
	}
	h.state = stateStopped
	for i, q := range c.queue {
		if q == h {
			c.queue = append(c.queue[:i:i], c.queue[i+1:]...)
			break
		}
	}
}

// Finished reports whether the handle played out or was stopped.
func (h *Handle) Finished() bool {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	return h.state == stateDone || h.state == stateStopped
}
