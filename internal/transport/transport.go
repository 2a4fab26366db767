// Package transport abstracts the bidirectional stream to the realtime
// endpoint. Outbound sends are fire-and-forget; everything the endpoint
// emits, including failures, arrives on a single ordered event channel.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/ent0n29/agenthub/internal/tools"
)

type EventType string

const (
	EventAudio        EventType = "audio"
	EventTranscript   EventType = "transcript"
	EventToolCall     EventType = "tool_call"
	EventInterrupted  EventType = "interrupted"
	EventTurnComplete EventType = "turn_complete"
	EventError        EventType = "error"
	EventClosed       EventType = "closed"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Event is one inbound item. Only the fields relevant to Type are set.
type Event struct {
	Type     EventType
	Audio    string // base64 PCM16 at the output rate
	MIMEType string
	Role     Role
	Text     string
	ToolCall tools.Call
	Err      error
}

// Config is the per-session setup sent during the handshake.
type Config struct {
	Voice       string
	Instruction string
	Tools       []tools.Tool
}

// Transport is an open stream. Events is closed after the Closed event.
type Transport interface {
	// SendAudio queues a base64 PCM16 chunk and reports whether it was
	// accepted. A full queue drops the chunk.
	SendAudio(chunk string) bool
	SendToolResponse(resp tools.Response)
	Events() <-chan Event
	Close() error
}

// Dialer opens a Transport and returns once the endpoint has accepted the
// configuration. Failures wrap ErrHandshake.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Transport, error)
}

var (
	ErrHandshake = errors.New("realtime handshake failed")
	ErrClosed    = errors.New("transport closed")
)

const (
	defaultAudioQueue = 32
	defaultToolQueue  = 16
	eventBuffer       = 256
)

// stream holds the channel plumbing shared by transports. One reader
// goroutine owns emit and finish so events keep arrival order.
type stream struct {
	events chan Event
	audio  chan string
	tools  chan tools.Response
	done   chan struct{}

	closeOnce  sync.Once
	finishOnce sync.Once

	mu      sync.Mutex
	sendErr error
}

func newStream(audioQueue int) *stream {
	if audioQueue <= 0 {
		audioQueue = defaultAudioQueue
	}
	return &stream{
		events: make(chan Event, eventBuffer),
		audio:  make(chan string, audioQueue),
		tools:  make(chan tools.Response, defaultToolQueue),
		done:   make(chan struct{}),
	}
}

func (s *stream) SendAudio(chunk string) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.audio <- chunk:
		return true
	default:
		return false
	}
}

func (s *stream) SendToolResponse(resp tools.Response) {
	select {
	case s.tools <- resp:
	case <-s.done:
	}
}

func (s *stream) Events() <-chan Event { return s.events }

func (s *stream) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// shutdown marks the stream as closed by the local side.
func (s *stream) shutdown() bool {
	first := false
	s.closeOnce.Do(func() {
		close(s.done)
		first = true
	})
	return first
}

func (s *stream) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
		select {
		case s.events <- ev:
		default:
		}
	}
}

func (s *stream) setSendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr == nil {
		s.sendErr = err
	}
}

func (s *stream) takeSendErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendErr
}

// finish emits a single Error (when err is non-nil and the stream was not
// closed locally) followed by Closed, then closes the event channel.
func (s *stream) finish(err error) {
	s.finishOnce.Do(func() {
		if sendErr := s.takeSendErr(); sendErr != nil {
			err = sendErr
		}
		if err != nil && !s.closing() {
			s.emit(Event{Type: EventError, Err: err})
		}
		s.emit(Event{Type: EventClosed})
		s.shutdown()
		close(s.events)
	})
}
