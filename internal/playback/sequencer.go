package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ent0n29/agenthub/internal/audio"
)

var ErrDecode = errors.New("fragment decode failed")

// Observer counts fragment outcomes: scheduled, decode_error, interrupted,
// completed.
type Observer interface {
	FragmentOutcome(result string)
}

type Option func(*Sequencer)

func WithObserver(o Observer) Option {
	return func(s *Sequencer) { s.observer = o }
}

// WithStartHook is called with the handle id when a fragment starts playing.
func WithStartHook(fn func(id uint64)) Option {
	return func(s *Sequencer) { s.onStart = fn }
}

// Sequencer decodes inbound fragments and starts each one on the clock
// immediately; the clock's queue keeps them in arrival order.
type Sequencer struct {
	clock    *OutputClock
	observer Observer
	onStart  func(id uint64)

	mu       sync.Mutex
	inflight map[uint64]*Handle
}

func NewSequencer(clock *OutputClock, opts ...Option) *Sequencer {
	s := &Sequencer{clock: clock, inflight: make(map[uint64]*Handle)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue decodes a base64 PCM16 fragment and schedules it. A fragment that
// fails to decode is dropped and reported with ErrDecode.
func (s *Sequencer) Enqueue(payload string) (*Handle, error) {
	samples, err := audio.DecodeBase64PCM(payload)
	if err != nil {
		s.outcome("decode_error")
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(samples) == 0 {
		s.outcome("decode_error")
		return nil, fmt.Errorf("%w: empty fragment", ErrDecode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.clock.Play(samples, s.started, s.completed)
	s.inflight[h.ID()] = h
	s.outcome("scheduled")
	return h, nil
}

func (s *Sequencer) started(h *Handle) {
	if s.onStart != nil {
		s.onStart(h.ID())
	}
}

func (s *Sequencer) completed(h *Handle) {
	s.mu.Lock()
	_, ok := s.inflight[h.ID()]
	delete(s.inflight, h.ID())
	s.mu.Unlock()
	if ok {
		s.outcome("completed")
	}
}

// InterruptAll stops every in-flight handle and returns how many were cut.
// Handles that finish concurrently are tolerated.
func (s *Sequencer) InterruptAll() int {
	s.mu.Lock()
	snapshot := make([]*Handle, 0, len(s.inflight))
	for _, h := range s.inflight {
		snapshot = append(snapshot, h)
	}
	clear(s.inflight)
	s.mu.Unlock()

	for _, h := range snapshot {
		h.Stop()
		s.outcome("interrupted")
	}
	return len(snapshot)
}

// InFlight returns the number of handles scheduled but not yet finished.
func (s *Sequencer) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Sequencer) outcome(result string) {
	if s.observer != nil {
		s.observer.FragmentOutcome(result)
	}
}
