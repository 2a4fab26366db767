package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/tools"
)

const defaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// liveSession is the subset of *genai.Session the transport uses.
type liveSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type GeminiConfig struct {
	APIKey           string
	Model            string
	HandshakeTimeout time.Duration
	GoogleSearch     bool
	Transcription    bool
	AudioQueue       int
}

// GeminiDialer connects to the Gemini Live API.
type GeminiDialer struct {
	cfg     GeminiConfig
	connect func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (liveSession, error)
}

func NewGeminiDialer(cfg GeminiConfig) *GeminiDialer {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultLiveModel
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	d := &GeminiDialer{cfg: cfg}
	d.connect = d.connectGenAI
	return d
}

func (d *GeminiDialer) connectGenAI(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (liveSession, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	session, err := client.Live.Connect(ctx, model, cfg)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (d *GeminiDialer) liveConfig(cfg Config) *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
	}
	if strings.TrimSpace(cfg.Instruction) != "" {
		lc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.Instruction}}}
	}
	if len(cfg.Tools) > 0 {
		lc.Tools = append(lc.Tools, &genai.Tool{FunctionDeclarations: functionDeclarations(cfg.Tools)})
	}
	if d.cfg.GoogleSearch {
		lc.Tools = append(lc.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if d.cfg.Transcription {
		lc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
		lc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return lc
}

// Dial sends the setup message and waits for the endpoint to acknowledge it.
func (d *GeminiDialer) Dial(ctx context.Context, cfg Config) (Transport, error) {
	if strings.TrimSpace(cfg.Voice) == "" {
		return nil, fmt.Errorf("%w: voice is required", ErrHandshake)
	}
	session, err := d.connect(ctx, d.cfg.Model, d.liveConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	type result struct {
		msg *genai.LiveServerMessage
		err error
	}
	setup := make(chan result, 1)
	go func() {
		msg, err := session.Receive()
		setup <- result{msg: msg, err: err}
	}()

	timer := time.NewTimer(d.cfg.HandshakeTimeout)
	defer timer.Stop()

	select {
	case r := <-setup:
		if r.err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("%w: %v", ErrHandshake, r.err)
		}
		if r.msg == nil || r.msg.SetupComplete == nil {
			_ = session.Close()
			return nil, fmt.Errorf("%w: setup not acknowledged", ErrHandshake)
		}
	case <-timer.C:
		_ = session.Close()
		return nil, fmt.Errorf("%w: timed out after %s", ErrHandshake, d.cfg.HandshakeTimeout)
	case <-ctx.Done():
		_ = session.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshake, ctx.Err())
	}

	t := newGeminiTransport(session, d.cfg.AudioQueue)
	go t.writeLoop()
	go t.readLoop()
	return t, nil
}

type geminiTransport struct {
	*stream
	session liveSession
}

func newGeminiTransport(session liveSession, audioQueue int) *geminiTransport {
	return &geminiTransport{stream: newStream(audioQueue), session: session}
}

func (t *geminiTransport) Close() error {
	if !t.shutdown() {
		return nil
	}
	return t.session.Close()
}

func (t *geminiTransport) writeLoop() {
	for {
		select {
		case <-t.done:
			return
		case chunk := <-t.audio:
			raw, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				log.Printf("gemini transport: drop malformed chunk: %v", err)
				continue
			}
			err = t.session.SendRealtimeInput(genai.LiveRealtimeInput{
				Audio: &genai.Blob{MIMEType: audio.MIMEInputPCM, Data: raw},
			})
			if err != nil {
				t.abort(fmt.Errorf("send audio: %w", err))
				return
			}
		case resp := <-t.tools:
			err := t.session.SendToolResponse(genai.LiveToolResponseInput{
				FunctionResponses: []*genai.FunctionResponse{{
					ID:       resp.ID,
					Name:     resp.Name,
					Response: resp.Payload,
				}},
			})
			if err != nil {
				t.abort(fmt.Errorf("send tool response: %w", err))
				return
			}
		}
	}
}

// abort records a send failure and closes the session so the reader
// surfaces it.
func (t *geminiTransport) abort(err error) {
	t.setSendErr(err)
	_ = t.session.Close()
}

func (t *geminiTransport) readLoop() {
	for {
		msg, err := t.session.Receive()
		if err != nil {
			t.finish(fmt.Errorf("receive: %w", err))
			return
		}
		for _, ev := range convMessage(msg) {
			t.emit(ev)
		}
	}
}

// convMessage flattens one server message into events in the order its parts
// appear: user transcript, model audio, model transcript, turn signals,
// tool calls.
func convMessage(msg *genai.LiveServerMessage) []Event {
	if msg == nil {
		return nil
	}
	var out []Event
	if sc := msg.ServerContent; sc != nil {
		if tr := sc.InputTranscription; tr != nil && tr.Text != "" {
			out = append(out, Event{Type: EventTranscript, Role: RoleUser, Text: tr.Text})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil || part.InlineData == nil {
					continue
				}
				if !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					continue
				}
				out = append(out, Event{
					Type:     EventAudio,
					Audio:    base64.StdEncoding.EncodeToString(part.InlineData.Data),
					MIMEType: part.InlineData.MIMEType,
				})
			}
		}
		if tr := sc.OutputTranscription; tr != nil && tr.Text != "" {
			out = append(out, Event{Type: EventTranscript, Role: RoleModel, Text: tr.Text})
		}
		if sc.Interrupted {
			out = append(out, Event{Type: EventInterrupted})
		}
		if sc.TurnComplete {
			out = append(out, Event{Type: EventTurnComplete})
		}
	}
	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			out = append(out, Event{
				Type:     EventToolCall,
				ToolCall: toolCall(fc),
			})
		}
	}
	if msg.GoAway != nil {
		log.Printf("gemini transport: server going away")
	}
	return out
}

func toolCall(fc *genai.FunctionCall) tools.Call {
	return tools.Call{ID: fc.ID, Name: fc.Name, Args: fc.Args}
}
