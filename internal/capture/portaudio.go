//go:build portaudio

package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/ent0n29/agenthub/internal/audio"
)

const micFramesPerBuffer = 1024

// PortAudioDevice captures from the host's default input device.
type PortAudioDevice struct {
	rate int

	mu   sync.Mutex
	open bool
}

// NewPortAudioDevice opens the default input at rate; the stage resamples
// to 16 kHz when they differ.
func NewPortAudioDevice(rate int) (Device, error) {
	if rate <= 0 {
		rate = audio.InputSampleRate
	}
	return &PortAudioDevice{rate: rate}, nil
}

func (d *PortAudioDevice) Acquire(context.Context) (Input, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil, ErrBusy
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", ErrPermissionDenied, err)
	}
	buf := make([]float32, micFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(d.rate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open input stream: %v", ErrPermissionDenied, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: start input stream: %v", ErrPermissionDenied, err)
	}
	d.open = true
	return &portAudioInput{device: d, stream: stream, buf: buf}, nil
}

type portAudioInput struct {
	device *PortAudioDevice
	stream *portaudio.Stream
	buf    []float32
	once   sync.Once
}

func (in *portAudioInput) SampleRate() int { return in.device.rate }

func (in *portAudioInput) Read(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.stream.Read(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	out := make([]float32, len(in.buf))
	copy(out, in.buf)
	return out, nil
}

func (in *portAudioInput) Close() error {
	var err error
	in.once.Do(func() {
		_ = in.stream.Stop()
		err = in.stream.Close()
		_ = portaudio.Terminate()
		in.device.mu.Lock()
		in.device.open = false
		in.device.mu.Unlock()
	})
	return err
}
