package visualizer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultFPS = 60

// Visualizer renders frames at a fixed rate, independent of audio arrival.
// While disconnected it decays the last frame to zero, publishes that final
// flat frame and then stays silent until connected again.
type Visualizer struct {
	analyser    *Analyser
	fps         int
	canvasWidth float64
	publish     func(Frame)

	connected atomic.Bool

	mu     sync.Mutex
	last   Frame
	idle   bool
	data   []byte
	cancel context.CancelFunc
	done   chan struct{}
}

func New(analyser *Analyser, fps int, canvasWidth float64, publish func(Frame)) *Visualizer {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if canvasWidth <= 0 {
		canvasWidth = 300
	}
	return &Visualizer{
		analyser:    analyser,
		fps:         fps,
		canvasWidth: canvasWidth,
		publish:     publish,
		idle:        true,
		data:        make([]byte, analyser.BinCount()),
	}
}

func (v *Visualizer) SetConnected(connected bool) {
	v.connected.Store(connected)
}

// Tick renders one frame. It reports false when nothing was published.
func (v *Visualizer) Tick() (Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.connected.Load() {
		v.data = v.analyser.ByteFrequencyData(v.data)
		v.last = Compute(v.data, v.canvasWidth)
		v.idle = false
		return v.last, true
	}
	if v.idle {
		return Frame{}, false
	}
	next, done := Decay(v.last)
	v.last = next
	v.idle = done
	return next, true
}

// Start launches the render loop; calling it while running is a no-op.
func (v *Visualizer) Start(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	go v.run(ctx, v.done)
}

func (v *Visualizer) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(time.Second / time.Duration(v.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f, ok := v.Tick(); ok && v.publish != nil {
				v.publish(f)
			}
		}
	}
}

// Stop cancels the loop and waits for it to exit, so no frame is published
// afterwards.
func (v *Visualizer) Stop() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	v.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
