// Package capture frames microphone input into fixed-size PCM16 chunks and
// forwards them to the transport without ever blocking on it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/ent0n29/agenthub/internal/audio"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrDeviceLost       = errors.New("microphone disconnected")
	ErrBusy             = errors.New("microphone already in use")
)

// Device grants access to a microphone.
type Device interface {
	Acquire(ctx context.Context) (Input, error)
}

// Input is an acquired microphone. Read blocks for the next block of mono
// samples and fails with ErrDeviceLost when the device goes away.
type Input interface {
	SampleRate() int
	Read(ctx context.Context) ([]float32, error)
	Close() error
}

// Observer counts chunk outcomes: sent, muted, dropped.
type Observer interface {
	ChunkOutcome(result string)
}

type Option func(*Stage)

func WithObserver(o Observer) Option {
	return func(s *Stage) { s.observer = o }
}

func WithFrameSize(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.frameSize = n
		}
	}
}

// Stage reads an Input, resamples to the capture rate when needed and emits
// one base64 chunk per full frame.
type Stage struct {
	input     Input
	send      func(chunk string) bool
	frameSize int
	observer  Observer

	muted atomic.Bool
	index atomic.Int64
}

func NewStage(input Input, send func(chunk string) bool, opts ...Option) *Stage {
	s := &Stage{input: input, send: send, frameSize: audio.CaptureFrameSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMuted suppresses transmission without stopping the device.
func (s *Stage) SetMuted(muted bool) { s.muted.Store(muted) }

func (s *Stage) Muted() bool { return s.muted.Load() }

// Chunks returns how many frames have been produced, muted ones included.
func (s *Stage) Chunks() int64 { return s.index.Load() }

// Run captures until ctx is done (returning nil) or the input fails
// (returning an error wrapping ErrDeviceLost).
func (s *Stage) Run(ctx context.Context) error {
	resampler, err := audio.NewResampler(s.input.SampleRate(), audio.InputSampleRate)
	if err != nil {
		return fmt.Errorf("capture resampler: %w", err)
	}
	framer := audio.NewFramer(s.frameSize)
	for {
		block, err := s.input.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrDeviceLost) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrDeviceLost, err)
		}
		block, err = resampler.Process(block)
		if err != nil {
			log.Printf("capture: resample failed, dropping block: %v", err)
			continue
		}
		framer.Push(block, s.emit)
	}
}

func (s *Stage) emit(frame []float32) {
	s.index.Add(1)
	if s.muted.Load() {
		s.outcome("muted")
		return
	}
	if s.send(audio.EncodeBase64PCM(frame)) {
		s.outcome("sent")
		return
	}
	s.outcome("dropped")
}

func (s *Stage) outcome(result string) {
	if s.observer != nil {
		s.observer.ChunkOutcome(result)
	}
}
