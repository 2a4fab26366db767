package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/reliability"
	"github.com/ent0n29/agenthub/internal/tts"
)

type voiceSummary struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

type listVoicesResponse struct {
	DefaultVoiceID   string         `json:"default_voice_id"`
	RealtimeProvider string         `json:"realtime_provider"`
	TTSProvider      string         `json:"tts_provider"`
	Voices           []voiceSummary `json:"voices"`
	PreviewVoices    []voiceSummary `json:"preview_voices"`
}

var voiceGender = map[persona.Voice]string{
	persona.VoicePuck:   "male",
	persona.VoiceCharon: "male",
	persona.VoiceKore:   "female",
	persona.VoiceFenrir: "male",
	persona.VoiceZephyr: "female",
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	voices := make([]voiceSummary, 0, len(persona.Voices))
	for _, v := range persona.Voices {
		voices = append(voices, voiceSummary{
			VoiceID:  string(v),
			Name:     string(v),
			Category: "realtime",
			Labels:   map[string]string{"gender": voiceGender[v]},
		})
	}
	resp := listVoicesResponse{
		DefaultVoiceID:   string(persona.VoiceKore),
		RealtimeProvider: s.realtimeProvider,
		Voices:           voices,
		PreviewVoices:    []voiceSummary{},
	}
	if s.tts != nil {
		resp.TTSProvider = s.tts.Name()
		if resp.TTSProvider == "google" {
			resp.PreviewVoices = []voiceSummary{
				{VoiceID: "es-AR-Neural2-A", Name: "Neural2 A (es-AR)", Category: "google", Labels: map[string]string{"gender": "female"}},
				{VoiceID: "es-AR-Neural2-B", Name: "Neural2 B (es-AR)", Category: "google", Labels: map[string]string{"gender": "male"}},
			}
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type previewRequest struct {
	AgentID      string         `json:"agent_id,omitempty"`
	Text         string         `json:"text"`
	Voice        string         `json:"voice,omitempty"`
	Gender       persona.Gender `json:"gender,omitempty"`
	SpeakingRate float64        `json:"speaking_rate,omitempty"`
	Pitch        float64        `json:"pitch,omitempty"`
}

type previewResponse struct {
	Provider    string `json:"provider"`
	Format      string `json:"format"`
	AudioBase64 string `json:"audio_base64"`
}

// handlePreviewTTS renders a short sample. When agent_id is set the agent's
// voice settings are used and explicit fields override them.
func (s *Server) handlePreviewTTS(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "tts provider not configured")
		return
	}
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	ttsReq := tts.Request{Text: req.Text}
	if id := strings.TrimSpace(req.AgentID); id != "" {
		p, err := s.roster.Get(id)
		if err != nil {
			respondRosterError(w, err)
			return
		}
		ttsReq = tts.RequestFor(p, req.Text)
	}
	if req.Voice != "" {
		ttsReq.Voice = req.Voice
	}
	if req.Gender != "" {
		ttsReq.Gender = req.Gender
	}
	if req.SpeakingRate != 0 {
		ttsReq.SpeakingRate = req.SpeakingRate
	}
	if req.Pitch != 0 {
		ttsReq.Pitch = req.Pitch
	}

	res, err := s.tts.Synthesize(r.Context(), ttsReq)
	if err != nil {
		var status *reliability.StatusError
		switch {
		case errors.Is(err, tts.ErrEmptyText):
			respondError(w, http.StatusBadRequest, "empty_text", err.Error())
		case errors.As(err, &status):
			s.metrics.ProviderError(status.Provider, strconv.Itoa(status.Code))
			respondError(w, http.StatusBadGateway, "tts_upstream", err.Error())
		default:
			respondError(w, http.StatusBadGateway, "tts_failed", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, previewResponse{
		Provider:    s.tts.Name(),
		Format:      res.Format,
		AudioBase64: res.AudioBase64,
	})
}
