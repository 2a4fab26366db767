package app

import (
	"fmt"
	"strings"

	"github.com/ent0n29/agenthub/internal/capture"
	"github.com/ent0n29/agenthub/internal/config"
	"github.com/ent0n29/agenthub/internal/playback"
	"github.com/ent0n29/agenthub/internal/transport"
	"github.com/ent0n29/agenthub/internal/tts"
)

type voiceSetup struct {
	dialer           transport.Dialer
	device           capture.Device
	remoteMic        *capture.RemoteDevice
	sink             playback.Sink
	tts              tts.Provider
	resolvedProvider string
	detail           string
	cleanup          func() error
}

func resolveVoice(cfg config.Config) (voiceSetup, error) {
	var setup voiceSetup

	switch cfg.RealtimeProvider {
	case "", "auto":
		if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
			setup.dialer = newGeminiDialer(cfg)
			setup.resolvedProvider = "gemini"
			setup.detail = "gemini live (" + cfg.GeminiLiveModel + ")"
		} else {
			setup.dialer = transport.NewMockDialer()
			setup.resolvedProvider = "mock"
			setup.detail = "mock (no GEMINI_API_KEY)"
		}
	case "gemini":
		setup.dialer = newGeminiDialer(cfg)
		setup.resolvedProvider = "gemini"
		setup.detail = "gemini live (" + cfg.GeminiLiveModel + ")"
	case "mock":
		setup.dialer = transport.NewMockDialer()
		setup.resolvedProvider = "mock"
		setup.detail = "mock"
	default:
		return voiceSetup{}, fmt.Errorf("invalid REALTIME_PROVIDER: %q (expected auto|gemini|mock)", cfg.RealtimeProvider)
	}

	var closers []func() error
	switch cfg.CaptureDevice {
	case "", "remote":
		setup.remoteMic = capture.NewRemoteDevice()
		setup.device = setup.remoteMic
	case "portaudio":
		dev, err := capture.NewPortAudioDevice(cfg.CaptureSampleRate)
		if err != nil {
			return voiceSetup{}, fmt.Errorf("capture device init failed: %w", err)
		}
		setup.device = dev
	default:
		return voiceSetup{}, fmt.Errorf("invalid CAPTURE_DEVICE: %q", cfg.CaptureDevice)
	}

	switch cfg.PlaybackSink {
	case "", "remote", "null":
		// The dashboard sink is attached by the HTTP layer when a client connects.
		setup.sink = playback.NullSink
	case "portaudio":
		sink, err := playback.NewPortAudioSink(cfg.PlaybackSampleRate)
		if err != nil {
			return voiceSetup{}, fmt.Errorf("playback sink init failed: %w", err)
		}
		setup.sink = sink
		closers = append(closers, sink.Close)
	default:
		return voiceSetup{}, fmt.Errorf("invalid PLAYBACK_SINK: %q", cfg.PlaybackSink)
	}

	provider, err := tts.New(tts.Config{
		Provider:            cfg.TTSProvider,
		GoogleAPIKey:        cfg.GoogleTTSAPIKey,
		GoogleBaseURL:       cfg.GoogleTTSBaseURL,
		ElevenLabsAPIKey:    cfg.ElevenLabsAPIKey,
		ElevenLabsWSBaseURL: cfg.ElevenLabsWSBaseURL,
		ElevenLabsModelID:   cfg.ElevenLabsTTSModelID,
	})
	if err != nil {
		return voiceSetup{}, err
	}
	setup.tts = provider

	setup.cleanup = func() error {
		var errs []string
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}
	return setup, nil
}

func newGeminiDialer(cfg config.Config) *transport.GeminiDialer {
	return transport.NewGeminiDialer(transport.GeminiConfig{
		APIKey:           cfg.GeminiAPIKey,
		Model:            cfg.GeminiLiveModel,
		HandshakeTimeout: cfg.GeminiHandshakeTimeout,
		GoogleSearch:     true,
		Transcription:    true,
	})
}
