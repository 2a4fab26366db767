package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/reliability"
)

const (
	defaultGoogleBaseURL = "https://texttospeech.googleapis.com"
	voiceFemale          = "es-AR-Neural2-A"
	voiceMale            = "es-AR-Neural2-B"
)

type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Retry   reliability.Policy
}

// Google calls the Cloud Text-to-Speech REST endpoint with Rioplatense
// neural voices.
type Google struct {
	cfg GoogleConfig
}

func NewGoogle(cfg GoogleConfig) *Google {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultGoogleBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = reliability.Policy{Attempts: 2, Base: 250 * time.Millisecond, Cap: 2 * time.Second}
	}
	return &Google{cfg: cfg}
}

func (g *Google) Name() string { return "google" }

type googleRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
		Pitch         float64 `json:"pitch,omitempty"`
	} `json:"audioConfig"`
}

type googleResponse struct {
	AudioContent string `json:"audioContent"`
}

type googleError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func googleVoice(req Request) string {
	if req.Voice != "" && strings.HasPrefix(req.Voice, "es-") {
		return req.Voice
	}
	if req.Gender == persona.GenderMale {
		return voiceMale
	}
	return voiceFemale
}

func (g *Google) Synthesize(ctx context.Context, req Request) (Result, error) {
	req, err := prepare(req)
	if err != nil {
		return Result{}, err
	}
	var body googleRequest
	body.Input.Text = req.Text
	body.Voice.LanguageCode = "es-AR"
	body.Voice.Name = googleVoice(req)
	body.AudioConfig.AudioEncoding = "MP3"
	body.AudioConfig.SpeakingRate = req.SpeakingRate
	body.AudioConfig.Pitch = req.Pitch
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/v1/text:synthesize?key=" + url.QueryEscape(g.cfg.APIKey)
	var out googleResponse
	err = reliability.Retry(ctx, g.cfg.Retry, func(int) (bool, error) {
		resp, perr := g.post(ctx, endpoint, payload)
		if perr != nil {
			return reliability.IsRetryable(perr), perr
		}
		out = resp
		return false, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("google tts: %w", err)
	}
	if out.AudioContent == "" {
		return Result{}, ErrNoAudio
	}
	return Result{AudioBase64: out.AudioContent, Format: "audio/mpeg"}, nil
}

func (g *Google) post(ctx context.Context, endpoint string, payload []byte) (googleResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return googleResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.cfg.Client.Do(httpReq)
	if err != nil {
		return googleResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return googleResponse{}, err
	}
	if resp.StatusCode/100 != 2 {
		var ge googleError
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &ge) == nil && ge.Error.Message != "" {
			msg = ge.Error.Message
		}
		return googleResponse{}, &reliability.StatusError{Provider: "google", Code: resp.StatusCode, Body: msg}
	}
	var out googleResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return googleResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
