package capture

import (
	"context"
	"fmt"
	"sync"
)

const remoteQueue = 64

// RemoteDevice is a microphone that lives in the dashboard. The browser
// reports its permission decision and then streams sample blocks over the
// session websocket.
type RemoteDevice struct {
	mu      sync.Mutex
	rate    int
	granted bool
	denied  error
	changed chan struct{}
	input   *remoteInput
	opened  int
}

func NewRemoteDevice() *RemoteDevice {
	return &RemoteDevice{changed: make(chan struct{})}
}

func (d *RemoteDevice) notify() {
	close(d.changed)
	d.changed = make(chan struct{})
}

// Grant records that the browser obtained the microphone at rate.
func (d *RemoteDevice) Grant(rate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rate = rate
	d.granted = true
	d.denied = nil
	d.notify()
}

// GrantedRate is the sample rate of the current grant, or 0 without one.
func (d *RemoteDevice) GrantedRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.granted {
		return 0
	}
	return d.rate
}

// Deny records a refused permission prompt.
func (d *RemoteDevice) Deny(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.granted = false
	d.denied = fmt.Errorf("%w: %s", ErrPermissionDenied, reason)
	d.notify()
}

// Detach is called when the browser goes away; an open input fails with
// ErrDeviceLost.
func (d *RemoteDevice) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.granted = false
	if d.input != nil {
		d.input.lose()
	}
	d.notify()
}

// Push forwards a block of samples from the browser. Blocks arriving with no
// open input, or faster than they are consumed, are dropped.
func (d *RemoteDevice) Push(samples []float32) bool {
	d.mu.Lock()
	in := d.input
	d.mu.Unlock()
	if in == nil {
		return false
	}
	return in.push(samples)
}

// Opened counts inputs handed out over the device's lifetime.
func (d *RemoteDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Acquire waits for the browser's permission decision.
func (d *RemoteDevice) Acquire(ctx context.Context) (Input, error) {
	for {
		d.mu.Lock()
		switch {
		case d.input != nil:
			d.mu.Unlock()
			return nil, ErrBusy
		case d.granted:
			in := &remoteInput{
				device: d,
				rate:   d.rate,
				blocks: make(chan []float32, remoteQueue),
				lost:   make(chan struct{}),
			}
			d.input = in
			d.opened++
			d.mu.Unlock()
			return in, nil
		case d.denied != nil:
			err := d.denied
			d.mu.Unlock()
			return nil, err
		}
		changed := d.changed
		d.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: no decision: %w", ErrPermissionDenied, ctx.Err())
		}
	}
}

func (d *RemoteDevice) release(in *remoteInput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.input == in {
		d.input = nil
	}
}

type remoteInput struct {
	device *RemoteDevice
	rate   int
	blocks chan []float32

	once     sync.Once
	lost     chan struct{}
	closeMu  sync.Mutex
	isClosed bool
}

func (in *remoteInput) SampleRate() int { return in.rate }

func (in *remoteInput) push(samples []float32) bool {
	in.closeMu.Lock()
	defer in.closeMu.Unlock()
	if in.isClosed {
		return false
	}
	select {
	case in.blocks <- samples:
		return true
	default:
		return false
	}
}

func (in *remoteInput) lose() {
	in.once.Do(func() { close(in.lost) })
}

func (in *remoteInput) Read(ctx context.Context) ([]float32, error) {
	select {
	case b := <-in.blocks:
		return b, nil
	case <-in.lost:
		return nil, ErrDeviceLost
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (in *remoteInput) Close() error {
	in.closeMu.Lock()
	in.isClosed = true
	in.closeMu.Unlock()
	in.device.release(in)
	return nil
}
