package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/agenthub/internal/audio"
)

type chunkSink struct {
	mu     sync.Mutex
	chunks []string
	accept bool
}

func (c *chunkSink) send(chunk string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accept {
		return false
	}
	c.chunks = append(c.chunks, chunk)
	return true
}

func (c *chunkSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

type outcomes struct {
	mu sync.Mutex
	m  map[string]int
}

func (o *outcomes) ChunkOutcome(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.m == nil {
		o.m = map[string]int{}
	}
	o.m[result]++
}

func (o *outcomes) get(k string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.m[k]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func grantedInput(t *testing.T, rate int) (*RemoteDevice, Input) {
	t.Helper()
	dev := NewRemoteDevice()
	dev.Grant(rate)
	in, err := dev.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	return dev, in
}

func TestStageFramesAndEncodes(t *testing.T) {
	dev, in := grantedInput(t, audio.InputSampleRate)
	sink := &chunkSink{accept: true}
	stage := NewStage(in, sink.send)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stage.Run(ctx) }()

	block := make([]float32, 1000)
	for i := range block {
		block[i] = 0.25
	}
	for i := 0; i < 9; i++ {
		for !dev.Push(block) {
			time.Sleep(time.Millisecond)
		}
	}
	waitFor(t, func() bool { return sink.count() == 2 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	samples, err := audio.DecodeBase64PCM(sink.chunks[0])
	if err != nil {
		t.Fatalf("decode chunk: %v", err)
	}
	if len(samples) != audio.CaptureFrameSize {
		t.Fatalf("chunk has %d samples, want %d", len(samples), audio.CaptureFrameSize)
	}
	if samples[0] != 0.25 {
		t.Fatalf("sample = %v, want 0.25", samples[0])
	}
}

func TestStageMuteSuppressesTransmission(t *testing.T) {
	dev, in := grantedInput(t, audio.InputSampleRate)
	sink := &chunkSink{accept: true}
	obs := &outcomes{}
	stage := NewStage(in, sink.send, WithFrameSize(4), WithObserver(obs))
	stage.SetMuted(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	dev.Push(make([]float32, 8))
	waitFor(t, func() bool { return obs.get("muted") == 2 })
	if sink.count() != 0 {
		t.Fatalf("muted stage sent %d chunks", sink.count())
	}

	stage.SetMuted(false)
	dev.Push(make([]float32, 4))
	waitFor(t, func() bool { return sink.count() == 1 })
	if stage.Chunks() != 3 {
		t.Fatalf("Chunks() = %d, want 3", stage.Chunks())
	}
}

func TestStageDropsWhenTransportBusy(t *testing.T) {
	dev, in := grantedInput(t, audio.InputSampleRate)
	sink := &chunkSink{accept: false}
	obs := &outcomes{}
	stage := NewStage(in, sink.send, WithFrameSize(4), WithObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	dev.Push(make([]float32, 12))
	waitFor(t, func() bool { return obs.get("dropped") == 3 })
}

func TestStageReportsDeviceLoss(t *testing.T) {
	dev, in := grantedInput(t, audio.InputSampleRate)
	stage := NewStage(in, func(string) bool { return true })
	done := make(chan error, 1)
	go func() { done <- stage.Run(context.Background()) }()

	dev.Detach()
	select {
	case err := <-done:
		if !errors.Is(err, ErrDeviceLost) {
			t.Fatalf("Run() error = %v, want ErrDeviceLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after device loss")
	}
}

func TestRemoteDevicePermission(t *testing.T) {
	dev := NewRemoteDevice()
	go func() {
		time.Sleep(10 * time.Millisecond)
		dev.Deny("NotAllowedError")
	}()
	if _, err := dev.Acquire(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Acquire() error = %v, want ErrPermissionDenied", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := NewRemoteDevice().Acquire(ctx); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Acquire() without decision error = %v, want ErrPermissionDenied", err)
	}
}

func TestRemoteDeviceSingleHandle(t *testing.T) {
	dev, in := grantedInput(t, 48000)
	if in.SampleRate() != 48000 {
		t.Fatalf("SampleRate() = %d", in.SampleRate())
	}
	if _, err := dev.Acquire(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire() error = %v, want ErrBusy", err)
	}
	in.Close()
	if dev.Push([]float32{1}) {
		t.Fatalf("Push() accepted after Close")
	}
	again, err := dev.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after Close error = %v", err)
	}
	again.Close()
	if dev.Opened() != 2 {
		t.Fatalf("Opened() = %d, want 2", dev.Opened())
	}
}
