package httpapi

import (
	"fmt"
	"net/http"
	"strings"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	RealtimeProvider string            `json:"realtime_provider"`
	TTSProvider      string            `json:"tts_provider"`
	StoreMode        string            `json:"store_mode"`
	Agents           int               `json:"agents"`
	Checks           []onboardingCheck `json:"checks"`
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	checks := make([]onboardingCheck, 0, 8)
	checks = append(checks, s.realtimeChecks()...)
	checks = append(checks, s.deviceChecks()...)
	checks = append(checks, s.storeCheck())

	ttsName := ""
	if s.tts != nil {
		ttsName = s.tts.Name()
	}
	if ttsName == "mock" {
		checks = append(checks, onboardingCheck{
			ID:     "tts_provider",
			Status: "warn",
			Label:  "Voice previews",
			Detail: "mock tones only",
			Fix:    "Set GOOGLE_TTS_API_KEY or ELEVENLABS_API_KEY for real previews.",
		})
	} else {
		checks = append(checks, onboardingCheck{ID: "tts_provider", Status: "ok", Label: "Voice previews", Detail: ttsName})
	}

	agents := 0
	if s.roster != nil {
		agents = len(s.roster.List())
	}
	if agents == 0 {
		checks = append(checks, onboardingCheck{
			ID:     "roster",
			Status: "error",
			Label:  "Agents",
			Detail: "no agents configured",
			Fix:    "Create an agent from the dashboard or set ROSTER_SEED_FILE.",
		})
	} else {
		checks = append(checks, onboardingCheck{ID: "roster", Status: "ok", Label: "Agents", Detail: fmt.Sprintf("%d configured", agents)})
	}

	respondJSON(w, http.StatusOK, onboardingStatusResponse{
		RealtimeProvider: s.realtimeProvider,
		TTSProvider:      ttsName,
		StoreMode:        s.storeMode,
		Agents:           agents,
		Checks:           checks,
	})
}

func (s *Server) realtimeChecks() []onboardingCheck {
	if s.realtimeProvider == "mock" {
		return []onboardingCheck{{
			ID:     "realtime_provider",
			Status: "warn",
			Label:  "Realtime backend is mock",
			Detail: s.realtimeDetail,
			Fix:    "Set GEMINI_API_KEY to talk to a live model.",
		}}
	}
	checks := []onboardingCheck{{ID: "realtime_provider", Status: "ok", Label: "Realtime backend", Detail: s.realtimeDetail}}
	if strings.TrimSpace(s.cfg.GeminiAPIKey) == "" {
		checks = append(checks, onboardingCheck{
			ID:     "gemini_key",
			Status: "error",
			Label:  "Gemini API key",
			Detail: "GEMINI_API_KEY is not set",
			Fix:    "Set GEMINI_API_KEY or switch to REALTIME_PROVIDER=mock.",
		})
	}
	return checks
}

func (s *Server) deviceChecks() []onboardingCheck {
	capture := onboardingCheck{ID: "capture_device", Status: "ok", Label: "Microphone", Detail: s.cfg.CaptureDevice}
	if s.mic != nil {
		capture.Detail = "browser microphone"
		if s.clients.count() == 0 {
			capture.Status = "warn"
			capture.Fix = "Open the dashboard so it can grant microphone access."
		}
	}
	playback := onboardingCheck{ID: "playback_sink", Status: "ok", Label: "Speaker", Detail: s.cfg.PlaybackSink}
	if s.cfg.PlaybackSink == "null" {
		playback.Status = "warn"
		playback.Fix = "Set PLAYBACK_SINK=remote or portaudio to hear the agent."
	}
	return []onboardingCheck{capture, playback}
}

func (s *Server) storeCheck() onboardingCheck {
	if s.storeMode == "in-memory" || s.storeMode == "" {
		return onboardingCheck{
			ID:     "store",
			Status: "warn",
			Label:  "Persistence",
			Detail: "in-memory only",
			Fix:    "Set DATABASE_URL or REDIS_URL to keep agents and history across restarts.",
		}
	}
	return onboardingCheck{ID: "store", Status: "ok", Label: "Persistence", Detail: s.storeMode}
}
