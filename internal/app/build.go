package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ent0n29/agenthub/internal/config"
	"github.com/ent0n29/agenthub/internal/history"
	"github.com/ent0n29/agenthub/internal/httpapi"
	"github.com/ent0n29/agenthub/internal/notify"
	"github.com/ent0n29/agenthub/internal/observability"
	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/roster"
	"github.com/ent0n29/agenthub/internal/session"
	"github.com/ent0n29/agenthub/internal/store"
	"github.com/ent0n29/agenthub/internal/tts"
	"github.com/ent0n29/agenthub/internal/voice"
)

const janitorInterval = 5 * time.Second

type VoiceInfo struct {
	Provider    string
	Detail      string
	TTSProvider string
	StoreMode   string
}

type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Sessions   *session.Manager
	Controller *voice.Controller
	Roster     *roster.Service
	History    *history.Service
	Notifier   *notify.Hub
	Metrics    *observability.Metrics
	TTS        tts.Provider
	Voice      VoiceInfo

	// Cleanup flushes history and releases devices and storage.
	Cleanup func() error
}

// Seed returns the roster used when nothing was persisted yet.
func Seed(cfg config.Config) ([]persona.Persona, error) {
	if strings.TrimSpace(cfg.RosterSeedFile) == "" {
		return persona.Defaults(), nil
	}
	seed, err := persona.LoadRoster(cfg.RosterSeedFile)
	if err != nil {
		return nil, fmt.Errorf("roster seed: %w", err)
	}
	return seed, nil
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	repo, err := store.NewRepository(ctx, cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	storeMode := store.Mode(cfg.DatabaseURL, cfg.RedisURL)

	seed, err := Seed(cfg)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	agents, err := roster.New(ctx, repo, seed)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	hist, err := history.New(ctx, repo, cfg.HistoryRedactPII)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	setup, err := resolveVoice(cfg)
	if err != nil {
		_ = hist.Close(ctx)
		_ = repo.Close()
		return nil, err
	}

	notifier := notify.NewHub()
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	controller := voice.NewController(voice.Config{
		Device:        setup.device,
		Dialer:        setup.dialer,
		Sessions:      sessions,
		Notifier:      notifier,
		Metrics:       metrics,
		History:       hist,
		Sink:          setup.sink,
		FrameSize:     cfg.CaptureFrameSize,
		OutputRate:    cfg.PlaybackSampleRate,
		FFTSize:       cfg.VisualizerFFTSize,
		VisualizerFPS: cfg.VisualizerFPS,
		CanvasWidth:   cfg.VisualizerCanvasWidth,
	})

	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvent("expired")
		metrics.SetActiveSessions(sessions.ActiveCount())
		if s.ID == controller.SessionID() {
			log.Printf("session %s idle for %s, stopping", s.ID, cfg.SessionInactivityTimeout)
			_ = controller.Stop()
		}
	})
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	sessions.StartJanitor(janitorCtx, janitorInterval)

	api := httpapi.New(httpapi.Deps{
		Config:           cfg,
		Controller:       controller,
		Sessions:         sessions,
		Roster:           agents,
		History:          hist,
		Notifier:         notifier,
		Metrics:          metrics,
		TTS:              setup.tts,
		RemoteMic:        setup.remoteMic,
		RealtimeProvider: setup.resolvedProvider,
		RealtimeDetail:   setup.detail,
		StoreMode:        storeMode,
	})

	cleanup := func() error {
		stopJanitor()
		var errs []string
		if err := controller.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hist.Close(flushCtx); err != nil {
			errs = append(errs, err.Error())
		}
		if setup.cleanup != nil {
			if err := setup.cleanup(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Sessions:   sessions,
		Controller: controller,
		Roster:     agents,
		History:    hist,
		Notifier:   notifier,
		Metrics:    metrics,
		TTS:        setup.tts,
		Voice: VoiceInfo{
			Provider:    setup.resolvedProvider,
			Detail:      setup.detail,
			TTSProvider: setup.tts.Name(),
			StoreMode:   storeMode,
		},
		Cleanup: cleanup,
	}, nil
}
