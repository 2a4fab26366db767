package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" || cfg.MetricsNamespace != "agenthub" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RealtimeProvider != "auto" || cfg.CaptureDevice != "remote" || cfg.PlaybackSink != "remote" {
		t.Fatalf("unexpected provider defaults: %+v", cfg)
	}
	if cfg.CaptureSampleRate != 16000 || cfg.CaptureFrameSize != 4096 || cfg.PlaybackSampleRate != 24000 {
		t.Fatalf("unexpected audio defaults: %+v", cfg)
	}
	if cfg.VisualizerFPS != 60 || cfg.VisualizerFFTSize != 256 {
		t.Fatalf("unexpected visualizer defaults: %+v", cfg)
	}
	if cfg.GeminiHandshakeTimeout != 10*time.Second {
		t.Fatalf("GeminiHandshakeTimeout = %s", cfg.GeminiHandshakeTimeout)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("REALTIME_PROVIDER", "Mock")
	t.Setenv("VISUALIZER_FFT_SIZE", "512")
	t.Setenv("HISTORY_REDACT_PII", "yes")
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "45s")
	t.Setenv("REDIS_URL", " redis://localhost:6379/0 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" || cfg.RealtimeProvider != "mock" || cfg.VisualizerFFTSize != 512 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.HistoryRedactPII || cfg.SessionInactivityTimeout != 45*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"VISUALIZER_FFT_SIZE", "300", "VISUALIZER_FFT_SIZE"},
		{"VISUALIZER_FFT_SIZE", "16", "VISUALIZER_FFT_SIZE"},
		{"VISUALIZER_FPS", "0", "VISUALIZER_FPS"},
		{"VISUALIZER_FPS", "500", "VISUALIZER_FPS"},
		{"APP_SESSION_INACTIVITY_TIMEOUT", "2s", "APP_SESSION_INACTIVITY_TIMEOUT"},
		{"CAPTURE_SAMPLE_RATE", "abc", "CAPTURE_SAMPLE_RATE"},
		{"CAPTURE_DEVICE", "bluetooth", "CAPTURE_DEVICE"},
		{"TTS_PROVIDER", "polly", "TTS_PROVIDER"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe", "APP_ALLOW_ANY_ORIGIN"},
		{"REALTIME_PROVIDER", "gemini", "GEMINI_API_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"REALTIME_PROVIDER",
		"GEMINI_API_KEY",
		"GEMINI_LIVE_MODEL",
		"GEMINI_HANDSHAKE_TIMEOUT",
		"CAPTURE_DEVICE",
		"CAPTURE_SAMPLE_RATE",
		"CAPTURE_FRAME_SIZE",
		"PLAYBACK_SAMPLE_RATE",
		"PLAYBACK_SINK",
		"VISUALIZER_FPS",
		"VISUALIZER_FFT_SIZE",
		"VISUALIZER_CANVAS_WIDTH",
		"TTS_PROVIDER",
		"GOOGLE_TTS_API_KEY",
		"GOOGLE_TTS_BASE_URL",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_WS_BASE_URL",
		"ELEVENLABS_TTS_MODEL_ID",
		"DATABASE_URL",
		"REDIS_URL",
		"ROSTER_SEED_FILE",
		"HISTORY_REDACT_PII",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
