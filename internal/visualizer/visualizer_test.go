package visualizer

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"
)

func TestNewAnalyserValidatesSize(t *testing.T) {
	for _, n := range []int{0, 16, 100, 65536} {
		if _, err := NewAnalyser(n); err == nil {
			t.Fatalf("NewAnalyser(%d) succeeded", n)
		}
	}
	a, err := NewAnalyser(256)
	if err != nil {
		t.Fatalf("NewAnalyser(256) error = %v", err)
	}
	if a.BinCount() != 128 {
		t.Fatalf("BinCount() = %d", a.BinCount())
	}
}

func TestAnalyserPeaksAtToneBin(t *testing.T) {
	a, _ := NewAnalyser(256)
	const rate = 24000.0
	// Bin 16 of a 256-point FFT at 24 kHz is 1500 Hz.
	samples := make([]float32, 256)
	for i := range samples {
		samples[i] = float32(0.05 * math.Sin(2*math.Pi*1500*float64(i)/rate))
	}
	var data []byte
	for i := 0; i < 20; i++ {
		a.Observe(samples)
		data = a.ByteFrequencyData(data)
	}
	peak := 0
	for i, v := range data {
		if v > data[peak] {
			peak = i
		}
	}
	if peak != 16 {
		t.Fatalf("peak bin = %d, want 16", peak)
	}
	if data[100] >= data[16] {
		t.Fatalf("far bin %d not quieter than tone bin %d", data[100], data[16])
	}
}

func TestSilenceIsZero(t *testing.T) {
	a, _ := NewAnalyser(64)
	a.Observe(make([]float32, 64))
	for i, v := range a.ByteFrequencyData(nil) {
		if v != 0 {
			t.Fatalf("bin %d = %d on silence", i, v)
		}
	}
}

func TestColorIsMonotonic(t *testing.T) {
	if got := Color(0); got != "hsl(240, 90%, 40%)" {
		t.Fatalf("Color(0) = %q", got)
	}
	if got := Color(255); got != "hsl(300, 90%, 70%)" {
		t.Fatalf("Color(255) = %q", got)
	}
}

func TestComputeBars(t *testing.T) {
	f := Compute([]byte{0, 100, 255, 45}, 400)
	if f.Mean != 100 {
		t.Fatalf("Mean = %v", f.Mean)
	}
	if f.BarWidth != 250 {
		t.Fatalf("BarWidth = %v, want 250", f.BarWidth)
	}
	want := []float64{0, 50, 127.5, 22.5}
	for i := range want {
		if f.Heights[i] != want[i] {
			t.Fatalf("Heights = %v, want %v", f.Heights, want)
		}
	}
}

func TestDisconnectedDecaysThenGoesIdle(t *testing.T) {
	a, _ := NewAnalyser(32)
	v := New(a, 60, 300, nil)

	if _, ok := v.Tick(); ok {
		t.Fatalf("idle visualizer published a frame before connecting")
	}

	v.mu.Lock()
	v.last = Frame{Connected: true, Heights: []float64{8, 2}}
	v.idle = false
	v.mu.Unlock()

	var seen []Frame
	for i := 0; i < 10; i++ {
		f, ok := v.Tick()
		if !ok {
			break
		}
		seen = append(seen, f)
	}
	// 8 -> 4 -> 2 -> 1 -> 0
	if len(seen) != 4 {
		t.Fatalf("published %d decay frames, want 4: %+v", len(seen), seen)
	}
	for _, f := range seen {
		if f.Color != MutedColor || f.Connected {
			t.Fatalf("decay frame not muted: %+v", f)
		}
	}
	last := seen[len(seen)-1]
	if last.Heights[0] != 0 || last.Heights[1] != 0 {
		t.Fatalf("final frame not flat: %v", last.Heights)
	}
}

func TestLoopStopsPublishing(t *testing.T) {
	a, _ := NewAnalyser(32)
	var mu sync.Mutex
	count := 0
	v := New(a, 200, 300, func(Frame) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	v.SetConnected(true)
	v.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	v.Stop()

	mu.Lock()
	after := count
	mu.Unlock()
	if after == 0 {
		t.Fatalf("loop never published")
	}
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != after {
		t.Fatalf("frames published after Stop: %d -> %d", after, count)
	}
}
