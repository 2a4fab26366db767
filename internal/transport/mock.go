package transport

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/tools"
)

// MockDialer opens in-process transports. With Echo set, every EchoEvery
// accepted chunks produce a short tone and a transcript so the dashboard can
// be exercised without credentials.
type MockDialer struct {
	Echo      bool
	EchoEvery int
	// Fail, when set, makes Dial return a handshake error.
	Fail error

	mu     sync.Mutex
	opened []*MockTransport
	last   Config
}

func NewMockDialer() *MockDialer { return &MockDialer{Echo: true, EchoEvery: 8} }

func (d *MockDialer) Dial(ctx context.Context, cfg Config) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if d.Fail != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, d.Fail)
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		return nil, fmt.Errorf("%w: voice is required", ErrHandshake)
	}
	t := NewMockTransport()
	if d.Echo {
		t.echoEvery = d.EchoEvery
		if t.echoEvery <= 0 {
			t.echoEvery = 8
		}
	}
	d.mu.Lock()
	d.opened = append(d.opened, t)
	d.last = cfg
	d.mu.Unlock()
	return t, nil
}

// Opened returns every transport dialed so far.
func (d *MockDialer) Opened() []*MockTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockTransport(nil), d.opened...)
}

func (d *MockDialer) LastConfig() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// MockTransport records outbound traffic and lets callers inject inbound
// events.
type MockTransport struct {
	*stream

	injectMu sync.Mutex
	finished bool

	mu        sync.Mutex
	chunks    []string
	responses []tools.Response
	echoEvery int
	closed    bool
}

func NewMockTransport() *MockTransport {
	return &MockTransport{stream: newStream(defaultAudioQueue)}
}

// SendAudio records the chunk. The mock never applies back-pressure.
func (t *MockTransport) SendAudio(chunk string) bool {
	if t.closing() {
		return false
	}
	t.mu.Lock()
	t.chunks = append(t.chunks, chunk)
	n := len(t.chunks)
	every := t.echoEvery
	t.mu.Unlock()
	if every > 0 && n%every == 0 {
		go t.echo(n / every)
	}
	return true
}

func (t *MockTransport) echo(turn int) {
	t.Inject(Event{Type: EventTranscript, Role: RoleUser, Text: "simulated voice input"})
	t.Inject(Event{Type: EventAudio, Audio: tone(240), MIMEType: audio.MIMEOutputPCM})
	t.Inject(Event{Type: EventTranscript, Role: RoleModel, Text: fmt.Sprintf("Dale, te escucho (%d).", turn)})
	t.Inject(Event{Type: EventTurnComplete})
}

// tone returns ms milliseconds of a 440 Hz sine at the output rate, base64
// encoded.
func tone(ms int) string {
	n := audio.OutputSampleRate * ms / 1000
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/audio.OutputSampleRate))
	}
	return audio.EncodeBase64PCM(samples)
}

func (t *MockTransport) SendToolResponse(resp tools.Response) {
	if t.closing() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, resp)
}

// Inject delivers an inbound event as if the endpoint had sent it. Error
// events end the stream with Closed, matching the real transport.
func (t *MockTransport) Inject(ev Event) {
	t.injectMu.Lock()
	defer t.injectMu.Unlock()
	if t.finished {
		return
	}
	switch ev.Type {
	case EventError:
		t.finished = true
		t.finish(ev.Err)
	case EventClosed:
		t.finished = true
		t.finish(nil)
	default:
		t.emit(ev)
	}
}

func (t *MockTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.shutdown()
	t.injectMu.Lock()
	defer t.injectMu.Unlock()
	if !t.finished {
		t.finished = true
		t.finish(nil)
	}
	return nil
}

func (t *MockTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *MockTransport) Chunks() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.chunks...)
}

func (t *MockTransport) Responses() []tools.Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]tools.Response(nil), t.responses...)
}
