// Package tts synthesizes short previews outside the live session.
package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/agenthub/internal/persona"
)

var (
	ErrEmptyText = errors.New("text is required")
	ErrNoAudio   = errors.New("provider returned no audio")
)

type Request struct {
	Text         string         `json:"text"`
	Voice        string         `json:"voice,omitempty"`
	Gender       persona.Gender `json:"gender,omitempty"`
	SpeakingRate float64        `json:"speaking_rate,omitempty"`
	Pitch        float64        `json:"pitch,omitempty"`
}

// Result carries base64 audio ready for the browser.
type Result struct {
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
}

type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (Result, error)
}

type Config struct {
	Provider string

	GoogleAPIKey  string
	GoogleBaseURL string

	ElevenLabsAPIKey    string
	ElevenLabsWSBaseURL string
	ElevenLabsModelID   string
}

// New picks a provider. "auto" prefers Google, then ElevenLabs, failing over
// between them when both keys are set, and falls back to the mock when no key
// is configured.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "auto":
		switch {
		case cfg.GoogleAPIKey != "" && cfg.ElevenLabsAPIKey != "":
			return NewFailover(NewGoogle(GoogleConfig{APIKey: cfg.GoogleAPIKey, BaseURL: cfg.GoogleBaseURL}), newElevenLabsFrom(cfg)), nil
		case cfg.GoogleAPIKey != "":
			return NewGoogle(GoogleConfig{APIKey: cfg.GoogleAPIKey, BaseURL: cfg.GoogleBaseURL}), nil
		case cfg.ElevenLabsAPIKey != "":
			return newElevenLabsFrom(cfg), nil
		default:
			return Mock{}, nil
		}
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("tts provider google requires GOOGLE_TTS_API_KEY")
		}
		return NewGoogle(GoogleConfig{APIKey: cfg.GoogleAPIKey, BaseURL: cfg.GoogleBaseURL}), nil
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("tts provider elevenlabs requires ELEVENLABS_API_KEY")
		}
		return newElevenLabsFrom(cfg), nil
	case "mock":
		return Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.Provider)
	}
}

func newElevenLabsFrom(cfg Config) *ElevenLabs {
	return NewElevenLabs(ElevenLabsConfig{
		APIKey:    cfg.ElevenLabsAPIKey,
		WSBaseURL: cfg.ElevenLabsWSBaseURL,
		ModelID:   cfg.ElevenLabsModelID,
	})
}

// RequestFor builds a preview request from a persona's voice settings.
func RequestFor(p persona.Persona, text string) Request {
	req := Request{
		Text:         text,
		Gender:       p.Gender,
		SpeakingRate: p.VoiceSettings.Speed,
	}
	if p.VoiceSettings.Provider == "elevenlabs" && p.VoiceSettings.ElevenLabsVoiceID != "" {
		req.Voice = p.VoiceSettings.ElevenLabsVoiceID
	}
	switch p.VoiceSettings.Pitch {
	case "Grave":
		req.Pitch = -4
	case "Agudo":
		req.Pitch = 4
	}
	return req
}
