package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ent0n29/agenthub/internal/reliability"
	"github.com/gorilla/websocket"
)

const defaultElevenVoice = "21m00Tcm4TlvDq8ikWAM"

type ElevenLabsConfig struct {
	APIKey       string
	WSBaseURL    string
	ModelID      string
	OutputFormat string
	Dialer       *websocket.Dialer
}

// ElevenLabs synthesizes through the stream-input websocket: the text is
// sent in one message, then audio chunks are collected until the final
// marker.
type ElevenLabs struct {
	cfg ElevenLabsConfig
}

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &ElevenLabs{cfg: cfg}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenFrame struct {
	Audio       string `json:"audio"`
	IsFinal     bool   `json:"isFinal"`
	Error       string `json:"error"`
	MessageType string `json:"message_type"`
}

func (e *ElevenLabs) streamURL(voiceID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(e.cfg.WSBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model_id", e.cfg.ModelID)
	q.Set("output_format", e.cfg.OutputFormat)
	q.Set("auto_mode", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func clampSpeed(v float64) float64 {
	switch {
	case v <= 0:
		return 1.0
	case v < 0.7:
		return 0.7
	case v > 1.2:
		return 1.2
	}
	return v
}

func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (Result, error) {
	req, err := prepare(req)
	if err != nil {
		return Result{}, err
	}
	voiceID := strings.TrimSpace(req.Voice)
	if voiceID == "" {
		voiceID = defaultElevenVoice
	}
	endpoint, err := e.streamURL(voiceID)
	if err != nil {
		return Result{}, err
	}
	headers := http.Header{}
	headers.Set("xi-api-key", e.cfg.APIKey)

	conn, resp, err := e.cfg.Dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w: %v", &reliability.StatusError{Provider: "elevenlabs", Code: resp.StatusCode}, err)
		}
		return Result{}, fmt.Errorf("dial tts websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	messages := []map[string]any{
		{"text": " ", "voice_settings": map[string]any{
			"stability":        0.42,
			"similarity_boost": 0.85,
			"speed":            clampSpeed(req.SpeakingRate),
		}},
		{"text": req.Text + " ", "try_trigger_generation": true},
		{"text": ""},
	}
	for _, m := range messages {
		if err := conn.WriteJSON(m); err != nil {
			return Result{}, fmt.Errorf("write tts websocket: %w", err)
		}
	}

	var audio []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				break
			}
			return Result{}, fmt.Errorf("read tts websocket: %w", err)
		}
		var f elevenFrame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if f.Error != "" {
			return Result{}, fmt.Errorf("elevenlabs %s: %s", f.MessageType, f.Error)
		}
		if f.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(f.Audio)
			if err != nil {
				return Result{}, fmt.Errorf("decode audio chunk: %w", err)
			}
			audio = append(audio, chunk...)
		}
		if f.IsFinal {
			break
		}
	}
	if len(audio) == 0 {
		return Result{}, ErrNoAudio
	}
	return Result{AudioBase64: base64.StdEncoding.EncodeToString(audio), Format: "audio/mpeg"}, nil
}
