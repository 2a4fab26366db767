package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/agenthub/internal/capture"
	"github.com/ent0n29/agenthub/internal/config"
	"github.com/ent0n29/agenthub/internal/history"
	"github.com/ent0n29/agenthub/internal/notify"
	"github.com/ent0n29/agenthub/internal/observability"
	"github.com/ent0n29/agenthub/internal/roster"
	"github.com/ent0n29/agenthub/internal/session"
	"github.com/ent0n29/agenthub/internal/tts"
	"github.com/ent0n29/agenthub/internal/voice"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Config     config.Config
	Controller *voice.Controller
	Sessions   *session.Manager
	Roster     *roster.Service
	History    *history.Service
	Notifier   *notify.Hub
	Metrics    *observability.Metrics
	TTS        tts.Provider
	// RemoteMic is set when the microphone lives in the dashboard.
	RemoteMic *capture.RemoteDevice

	RealtimeProvider string
	RealtimeDetail   string
	StoreMode        string
}

type Server struct {
	cfg      config.Config
	ctrl     *voice.Controller
	sessions *session.Manager
	roster   *roster.Service
	history  *history.Service
	notifier *notify.Hub
	metrics  *observability.Metrics
	tts      tts.Provider
	mic      *capture.RemoteDevice

	realtimeProvider string
	realtimeDetail   string
	storeMode        string

	clients  *clientSet
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(d Deps) *Server {
	s := &Server{
		cfg:              d.Config,
		ctrl:             d.Controller,
		sessions:         d.Sessions,
		roster:           d.Roster,
		history:          d.History,
		notifier:         d.Notifier,
		metrics:          d.Metrics,
		tts:              d.TTS,
		mic:              d.RemoteMic,
		realtimeProvider: d.RealtimeProvider,
		realtimeDetail:   d.RealtimeDetail,
		storeMode:        d.StoreMode,
		clients:          newClientSet(d.Metrics),
		static:           newStaticHandler(),
	}
	allowAny := d.Config.AllowAnyOrigin
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// Only same-origin browsers may drive the microphone unless
			// explicitly opened up.
			if allowAny {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
	if s.ctrl != nil && (d.Config.PlaybackSink == "" || d.Config.PlaybackSink == "remote") {
		s.ctrl.SetSink(&audioFeed{clients: s.clients, rate: d.Config.PlaybackSampleRate})
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)
	r.Get("/v1/ui/settings", s.handleUISettings)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Delete("/v1/perf/latency", s.handleResetPerfLatency)

	r.Route("/v1/agents", func(r chi.Router) {
		r.Get("/", s.handleListAgents)
		r.Post("/", s.handleCreateAgent)
		r.Get("/{id}", s.handleGetAgent)
		r.Put("/{id}", s.handleUpdateAgent)
		r.Delete("/{id}", s.handleDeleteAgent)
		r.Get("/{id}/widget", s.handleAgentWidget)
		r.Get("/{id}/history", s.handleAgentHistory)
	})

	r.Get("/v1/voice/session", s.handleGetSession)
	r.Post("/v1/voice/session", s.handleStartSession)
	r.Post("/v1/voice/session/stop", s.handleStopSession)
	r.Post("/v1/voice/session/mute", s.handleMuteSession)
	r.Post("/v1/voice/session/interrupt", s.handleInterruptSession)
	r.Get("/v1/voice/session/ws", s.handleSessionWS)
	r.Get("/v1/voice/voices", s.handleListVoices)
	r.Post("/v1/voice/tts/preview", s.handlePreviewTTS)
	r.Get("/v1/notifications", s.handleListNotifications)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"realtime_provider": s.realtimeProvider,
		"store_mode":        s.storeMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ctrl == nil || s.roster == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "voice pipeline not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"session_state": s.ctrl.State(),
		"clients":       s.clients.count(),
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	if s.notifier == nil {
		respondJSON(w, http.StatusOK, []notify.Notification{})
		return
	}
	respondJSON(w, http.StatusOK, s.notifier.Recent())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
