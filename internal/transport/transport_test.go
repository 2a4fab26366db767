package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/ent0n29/agenthub/internal/tools"
)

type fakeSession struct {
	mu        sync.Mutex
	inbound   chan *genai.LiveServerMessage
	closed    chan struct{}
	closeOnce sync.Once
	audio     []genai.LiveRealtimeInput
	responses []genai.LiveToolResponseInput
	sendErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		inbound: make(chan *genai.LiveServerMessage, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSession) SendRealtimeInput(in genai.LiveRealtimeInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.audio = append(s.audio, in)
	return nil
}

func (s *fakeSession) SendToolResponse(in genai.LiveToolResponseInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, in)
	return nil
}

func (s *fakeSession) Receive() (*genai.LiveServerMessage, error) {
	select {
	case msg := <-s.inbound:
		return msg, nil
	case <-s.closed:
		return nil, io.EOF
	}
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func dialerWith(sess *fakeSession) *GeminiDialer {
	d := NewGeminiDialer(GeminiConfig{HandshakeTimeout: time.Second})
	d.connect = func(context.Context, string, *genai.LiveConnectConfig) (liveSession, error) {
		return sess, nil
	}
	return d
}

func collect(t *testing.T, tr Transport) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-tr.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("event stream did not close; got %d events", len(out))
		}
	}
}

func TestGeminiDialWaitsForSetup(t *testing.T) {
	sess := newFakeSession()
	sess.inbound <- &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}
	tr, err := dialerWith(sess).Dial(context.Background(), Config{Voice: "Kore", Instruction: "hola"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()
}

func TestGeminiDialHandshakeFailures(t *testing.T) {
	t.Run("receive error", func(t *testing.T) {
		sess := newFakeSession()
		sess.Close()
		if _, err := dialerWith(sess).Dial(context.Background(), Config{Voice: "Kore"}); !errors.Is(err, ErrHandshake) {
			t.Fatalf("Dial() error = %v, want ErrHandshake", err)
		}
	})
	t.Run("timeout", func(t *testing.T) {
		sess := newFakeSession()
		d := dialerWith(sess)
		d.cfg.HandshakeTimeout = 20 * time.Millisecond
		if _, err := d.Dial(context.Background(), Config{Voice: "Kore"}); !errors.Is(err, ErrHandshake) {
			t.Fatalf("Dial() error = %v, want ErrHandshake", err)
		}
		select {
		case <-sess.closed:
		default:
			t.Fatalf("session left open after handshake timeout")
		}
	})
	t.Run("connect error", func(t *testing.T) {
		d := NewGeminiDialer(GeminiConfig{})
		d.connect = func(context.Context, string, *genai.LiveConnectConfig) (liveSession, error) {
			return nil, errors.New("invalid voice")
		}
		if _, err := d.Dial(context.Background(), Config{Voice: "Nope"}); !errors.Is(err, ErrHandshake) {
			t.Fatalf("Dial() error = %v, want ErrHandshake", err)
		}
	})
}

func TestGeminiEventsKeepArrivalOrder(t *testing.T) {
	sess := newFakeSession()
	sess.inbound <- &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}
	tr, err := dialerWith(sess).Dial(context.Background(), Config{Voice: "Kore"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	sess.inbound <- &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		InputTranscription: &genai.Transcription{Text: "hola"},
		ModelTurn: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: []byte{1, 0}}},
			{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: []byte{2, 0}}},
		}},
		OutputTranscription: &genai.Transcription{Text: "qué tal"},
	}}
	sess.inbound <- &genai.LiveServerMessage{ToolCall: &genai.LiveServerToolCall{
		FunctionCalls: []*genai.FunctionCall{{ID: "abc", Name: "send_email", Args: map[string]any{"to": "a@b.c"}}},
	}}
	sess.inbound <- &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{Interrupted: true}}
	time.Sleep(50 * time.Millisecond)
	tr.Close()

	events := collect(t, tr)
	want := []EventType{EventTranscript, EventAudio, EventAudio, EventTranscript, EventToolCall, EventInterrupted, EventClosed}
	if len(events) != len(want) {
		t.Fatalf("got %d events %+v, want %d", len(events), events, len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Fatalf("event %d = %s, want %s", i, ev.Type, want[i])
		}
	}
	if events[1].Audio != "AQA=" || events[2].Audio != "AgA=" {
		t.Fatalf("audio payloads out of order: %q %q", events[1].Audio, events[2].Audio)
	}
	if events[4].ToolCall.ID != "abc" {
		t.Fatalf("tool call id = %q", events[4].ToolCall.ID)
	}
}

func TestGeminiRemoteCloseYieldsErrorThenClosed(t *testing.T) {
	sess := newFakeSession()
	sess.inbound <- &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}
	tr, err := dialerWith(sess).Dial(context.Background(), Config{Voice: "Kore"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	sess.Close()

	events := collect(t, tr)
	if len(events) != 2 || events[0].Type != EventError || events[1].Type != EventClosed {
		t.Fatalf("events = %+v, want [error closed]", events)
	}
}

func TestGeminiSendFailureSurfacesAsError(t *testing.T) {
	sess := newFakeSession()
	sess.inbound <- &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}
	sess.sendErr = errors.New("broken pipe")
	tr, err := dialerWith(sess).Dial(context.Background(), Config{Voice: "Kore"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	tr.SendAudio("AAA=")

	events := collect(t, tr)
	if len(events) != 2 || events[0].Type != EventError {
		t.Fatalf("events = %+v, want error then closed", events)
	}
	if events[0].Err == nil || !errors.Is(events[0].Err, sess.sendErr) {
		t.Fatalf("error = %v, want wrapped send error", events[0].Err)
	}
}

func TestGeminiForwardsToolResponses(t *testing.T) {
	sess := newFakeSession()
	sess.inbound <- &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}
	tr, err := dialerWith(sess).Dial(context.Background(), Config{Voice: "Kore"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()
	tr.SendToolResponse(tools.Response{ID: "abc", Name: "send_email", Payload: map[string]any{"result": "ok"}})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sess.mu.Lock()
		n := len(sess.responses)
		sess.mu.Unlock()
		if n == 1 {
			sess.mu.Lock()
			got := sess.responses[0].FunctionResponses[0]
			sess.mu.Unlock()
			if got.ID != "abc" || got.Name != "send_email" {
				t.Fatalf("function response = %+v", got)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("tool response not forwarded")
}

func TestLiveConfigCarriesPersona(t *testing.T) {
	d := NewGeminiDialer(GeminiConfig{GoogleSearch: true, Transcription: true})
	lc := d.liveConfig(Config{Voice: "Fenrir", Instruction: "Sos Martín", Tools: tools.Simulated()})
	if got := lc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Fenrir" {
		t.Fatalf("voice = %q", got)
	}
	if lc.SystemInstruction.Parts[0].Text != "Sos Martín" {
		t.Fatalf("instruction not set")
	}
	if len(lc.Tools) != 2 || len(lc.Tools[0].FunctionDeclarations) != 4 || lc.Tools[1].GoogleSearch == nil {
		t.Fatalf("tools = %+v", lc.Tools)
	}
	params := lc.Tools[0].FunctionDeclarations[0].Parameters
	if params.Type != genai.TypeObject || params.Properties["score"].Type != genai.TypeNumber {
		t.Fatalf("converted schema = %+v", params)
	}
	if got := params.Properties["status"].Enum; len(got) != 3 || got[2] != "Caliente" {
		t.Fatalf("status enum = %v", got)
	}
	if lc.InputAudioTranscription == nil || lc.OutputAudioTranscription == nil {
		t.Fatalf("transcription not enabled")
	}
}

func TestMockTransportInjectAndClose(t *testing.T) {
	tr := NewMockTransport()
	if !tr.SendAudio("AAA=") {
		t.Fatalf("SendAudio() rejected on open transport")
	}
	tr.Inject(Event{Type: EventAudio, Audio: "AAA="})
	tr.Inject(Event{Type: EventError, Err: errors.New("socket reset")})
	tr.Inject(Event{Type: EventAudio, Audio: "ignored"})

	events := collect(t, tr)
	if len(events) != 3 || events[1].Type != EventError || events[2].Type != EventClosed {
		t.Fatalf("events = %+v", events)
	}
	if tr.SendAudio("AAA=") {
		t.Fatalf("SendAudio() accepted after close")
	}
}
