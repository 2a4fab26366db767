package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/agenthub/internal/app"
	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/config"
	"github.com/ent0n29/agenthub/internal/persona"
)

func TestSessionWSURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8080":      "ws://127.0.0.1:8080/v1/voice/session/ws",
		"https://hub.example/prefix/": "wss://hub.example/prefix/v1/voice/session/ws",
	}
	for in, want := range cases {
		got, err := sessionWSURL(strings.TrimRight(in, "/"))
		if err != nil || got != want {
			t.Fatalf("sessionWSURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := sessionWSURL("ftp://x"); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}

func TestProbeOptionsValidate(t *testing.T) {
	opts := probeOptions{baseURL: " http://x/ ", agentID: "pato", chunkMS: 100, realtime: 1, duration: time.Second}
	if err := opts.validate(); err != nil {
		t.Fatalf("validate() error = %v", err)
	}
	if opts.baseURL != "http://x" || opts.timeout != time.Second {
		t.Fatalf("normalized options = %+v", opts)
	}
	opts.agentID = ""
	if err := opts.validate(); err == nil {
		t.Fatalf("validate() accepted empty agent")
	}
}

func TestProbeAgainstMockPipeline(t *testing.T) {
	cfg := config.Config{
		BindAddr:                 ":0",
		ShutdownTimeout:          time.Second,
		SessionInactivityTimeout: time.Minute,
		MetricsNamespace:         "probe_test",
		RealtimeProvider:         "mock",
		CaptureDevice:            "remote",
		CaptureSampleRate:        audio.InputSampleRate,
		CaptureFrameSize:         1024,
		PlaybackSampleRate:       audio.OutputSampleRate,
		PlaybackSink:             "remote",
		VisualizerFPS:            30,
		VisualizerFFTSize:        256,
		VisualizerCanvasWidth:    300,
		TTSProvider:              "mock",
	}
	built, err := app.Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = built.Cleanup() })
	if built.Voice.Provider != "mock" || built.Voice.StoreMode != "in-memory" {
		t.Fatalf("voice info = %+v", built.Voice)
	}

	ts := httptest.NewServer(built.API.Router())
	defer ts.Close()

	var out bytes.Buffer
	report, err := runProbe(context.Background(), probeOptions{
		baseURL:  ts.URL,
		agentID:  persona.Defaults()[0].ID,
		chunkMS:  100,
		realtime: 20,
		duration: 1500 * time.Millisecond,
		timeout:  5 * time.Second,
	}, &out)
	if err != nil {
		t.Fatalf("runProbe() error = %v (log: %s)", err, out.String())
	}
	if report.SessionID == "" || report.Chunks != 15 || report.PlaybackMessages == 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.Transcripts == 0 {
		t.Fatalf("no transcripts in report %+v", report)
	}
	if !strings.Contains(out.String(), "connected session=") {
		t.Fatalf("probe log = %q", out.String())
	}
}
