package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the agent hub service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	RealtimeProvider       string
	GeminiAPIKey           string
	GeminiLiveModel        string
	GeminiHandshakeTimeout time.Duration

	CaptureDevice     string
	CaptureSampleRate int
	CaptureFrameSize  int

	PlaybackSampleRate int
	PlaybackSink       string

	VisualizerFPS         int
	VisualizerFFTSize     int
	VisualizerCanvasWidth float64

	TTSProvider          string
	GoogleTTSAPIKey      string
	GoogleTTSBaseURL     string
	ElevenLabsAPIKey     string
	ElevenLabsWSBaseURL  string
	ElevenLabsTTSModelID string

	DatabaseURL      string
	RedisURL         string
	RosterSeedFile   string
	HistoryRedactPII bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "agenthub"),
		RealtimeProvider: strings.ToLower(envOrDefault("REALTIME_PROVIDER", "auto")),
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiLiveModel:  envOrDefault("GEMINI_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		CaptureDevice:    strings.ToLower(envOrDefault("CAPTURE_DEVICE", "remote")),
		PlaybackSink:     strings.ToLower(envOrDefault("PLAYBACK_SINK", "remote")),
		TTSProvider:      strings.ToLower(envOrDefault("TTS_PROVIDER", "auto")),
		GoogleTTSAPIKey:  stringsTrimSpace("GOOGLE_TTS_API_KEY"),
		GoogleTTSBaseURL: envOrDefault("GOOGLE_TTS_BASE_URL", "https://texttospeech.googleapis.com"),
		ElevenLabsAPIKey: stringsTrimSpace("ELEVENLABS_API_KEY"),
		// Same host the stream-input websocket lives on.
		ElevenLabsWSBaseURL:  envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsTTSModelID: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		RedisURL:             stringsTrimSpace("REDIS_URL"),
		RosterSeedFile:       stringsTrimSpace("ROSTER_SEED_FILE"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 5 * time.Minute,
		GeminiHandshakeTimeout:   10 * time.Second,
		CaptureSampleRate:        16000,
		CaptureFrameSize:         4096,
		PlaybackSampleRate:       24000,
		VisualizerFPS:            60,
		VisualizerFFTSize:        256,
		VisualizerCanvasWidth:    300,
	}
	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout); err != nil {
		return Config{}, err
	}
	if cfg.GeminiHandshakeTimeout, err = durationFromEnv("GEMINI_HANDSHAKE_TIMEOUT", cfg.GeminiHandshakeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", false); err != nil {
		return Config{}, err
	}
	if cfg.HistoryRedactPII, err = boolFromEnv("HISTORY_REDACT_PII", false); err != nil {
		return Config{}, err
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"CAPTURE_SAMPLE_RATE", &cfg.CaptureSampleRate},
		{"CAPTURE_FRAME_SIZE", &cfg.CaptureFrameSize},
		{"PLAYBACK_SAMPLE_RATE", &cfg.PlaybackSampleRate},
		{"VISUALIZER_FPS", &cfg.VisualizerFPS},
		{"VISUALIZER_FFT_SIZE", &cfg.VisualizerFFTSize},
	}
	for _, f := range ints {
		if *f.dst, err = intFromEnv(f.key, *f.dst); err != nil {
			return Config{}, err
		}
	}
	if cfg.VisualizerCanvasWidth, err = floatFromEnv("VISUALIZER_CANVAS_WIDTH", cfg.VisualizerCanvasWidth); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.GeminiHandshakeTimeout <= 0 {
		return fmt.Errorf("GEMINI_HANDSHAKE_TIMEOUT must be positive")
	}
	if cfg.CaptureSampleRate <= 0 {
		return fmt.Errorf("CAPTURE_SAMPLE_RATE must be positive")
	}
	if cfg.CaptureFrameSize <= 0 {
		return fmt.Errorf("CAPTURE_FRAME_SIZE must be positive")
	}
	if cfg.PlaybackSampleRate <= 0 {
		return fmt.Errorf("PLAYBACK_SAMPLE_RATE must be positive")
	}
	if cfg.VisualizerFPS <= 0 || cfg.VisualizerFPS > 240 {
		return fmt.Errorf("VISUALIZER_FPS must be in (0, 240]")
	}
	if n := cfg.VisualizerFFTSize; n < 32 || n > 32768 || n&(n-1) != 0 {
		return fmt.Errorf("VISUALIZER_FFT_SIZE must be a power of two in [32, 32768]")
	}
	if cfg.VisualizerCanvasWidth <= 0 {
		return fmt.Errorf("VISUALIZER_CANVAS_WIDTH must be positive")
	}
	if err := oneOf("REALTIME_PROVIDER", cfg.RealtimeProvider, "auto", "gemini", "mock"); err != nil {
		return err
	}
	if cfg.RealtimeProvider == "gemini" && cfg.GeminiAPIKey == "" {
		return fmt.Errorf("REALTIME_PROVIDER=gemini requires GEMINI_API_KEY")
	}
	if err := oneOf("CAPTURE_DEVICE", cfg.CaptureDevice, "remote", "portaudio"); err != nil {
		return err
	}
	if err := oneOf("PLAYBACK_SINK", cfg.PlaybackSink, "remote", "portaudio", "null"); err != nil {
		return err
	}
	return oneOf("TTS_PROVIDER", cfg.TTSProvider, "auto", "google", "elevenlabs", "mock")
}

func oneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), v)
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
