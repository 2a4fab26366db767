package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/capture"
	"github.com/ent0n29/agenthub/internal/config"
	"github.com/ent0n29/agenthub/internal/history"
	"github.com/ent0n29/agenthub/internal/notify"
	"github.com/ent0n29/agenthub/internal/observability"
	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/protocol"
	"github.com/ent0n29/agenthub/internal/roster"
	"github.com/ent0n29/agenthub/internal/session"
	"github.com/ent0n29/agenthub/internal/store"
	"github.com/ent0n29/agenthub/internal/transport"
	"github.com/ent0n29/agenthub/internal/tts"
	"github.com/ent0n29/agenthub/internal/voice"
)

type testEnv struct {
	ts     *httptest.Server
	dialer *transport.MockDialer
	ctrl   *voice.Controller
	roster *roster.Service
	hist   *history.Service
}

func newTestEnv(t *testing.T, metrics *observability.Metrics) *testEnv {
	t.Helper()
	ctx := context.Background()
	repo := store.NewInMemoryRepository()
	rs, err := roster.New(ctx, repo, persona.Defaults())
	if err != nil {
		t.Fatalf("roster.New() error = %v", err)
	}
	hist, err := history.New(ctx, repo, false)
	if err != nil {
		t.Fatalf("history.New() error = %v", err)
	}
	cfg := config.Config{
		PlaybackSink:       "remote",
		PlaybackSampleRate: audio.OutputSampleRate,
		CaptureDevice:      "remote",
		CaptureSampleRate:  audio.InputSampleRate,
		VisualizerFPS:      10,
		VisualizerFFTSize:  256,
	}
	mic := capture.NewRemoteDevice()
	dialer := &transport.MockDialer{}
	hub := notify.NewHub()
	sessions := session.NewManager(time.Minute)
	ctrl := voice.NewController(voice.Config{
		Device:        mic,
		Dialer:        dialer,
		Sessions:      sessions,
		Notifier:      hub,
		Metrics:       metrics,
		History:       hist,
		FrameSize:     256,
		VisualizerFPS: cfg.VisualizerFPS,
	})
	srv := New(Deps{
		Config:           cfg,
		Controller:       ctrl,
		Sessions:         sessions,
		Roster:           rs,
		History:          hist,
		Notifier:         hub,
		Metrics:          metrics,
		TTS:              tts.Mock{},
		RemoteMic:        mic,
		RealtimeProvider: "mock",
		RealtimeDetail:   "mock",
		StoreMode:        "in-memory",
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = ctrl.Close()
		_ = hist.Close(context.Background())
	})
	return &testEnv{ts: ts, dialer: dialer, ctrl: ctrl, roster: rs, hist: hist}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res, data
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	res, body := doJSON(t, http.MethodGet, env.ts.URL+"/healthz", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"realtime_provider":"mock"`) {
		t.Fatalf("healthz = %d %s", res.StatusCode, body)
	}
	res, body = doJSON(t, http.MethodGet, env.ts.URL+"/readyz", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"session_state":"disconnected"`) {
		t.Fatalf("readyz = %d %s", res.StatusCode, body)
	}
}

func TestAgentCRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	base := env.ts.URL + "/v1/agents"

	res, body := doJSON(t, http.MethodGet, base, nil)
	var listed struct {
		Agents []persona.Persona `json:"agents"`
	}
	if err := json.Unmarshal(body, &listed); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("list = %d %s (%v)", res.StatusCode, body, err)
	}
	if len(listed.Agents) != len(persona.Defaults()) {
		t.Fatalf("listed %d agents, want %d", len(listed.Agents), len(persona.Defaults()))
	}

	agent := persona.Persona{ID: "test-agent", Name: "Lucía", Voice: persona.VoiceZephyr, Behavior: "Tranquila."}
	res, body = doJSON(t, http.MethodPost, base, agent)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d %s", res.StatusCode, body)
	}
	var created persona.Persona
	_ = json.Unmarshal(body, &created)
	if created.Instruction == "" {
		t.Fatalf("created agent has no instruction: %+v", created)
	}

	if res, body = doJSON(t, http.MethodPost, base, agent); res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create = %d %s", res.StatusCode, body)
	}
	bad := persona.Persona{ID: "bad", Name: "Bad", Voice: "Robot", Instruction: "x"}
	if res, body = doJSON(t, http.MethodPost, base, bad); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid create = %d %s", res.StatusCode, body)
	}

	created.Occupation = "Guía"
	res, body = doJSON(t, http.MethodPut, base+"/test-agent", created)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "Guía") {
		t.Fatalf("update = %d %s", res.StatusCode, body)
	}

	res, body = doJSON(t, http.MethodGet, base+"/test-agent/widget", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "test-agent") {
		t.Fatalf("widget = %d %s", res.StatusCode, body)
	}

	if res, _ = doJSON(t, http.MethodDelete, base+"/test-agent", nil); res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d", res.StatusCode)
	}
	if res, _ = doJSON(t, http.MethodGet, base+"/test-agent", nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", res.StatusCode)
	}
}

func TestAgentHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	id := persona.Defaults()[0].ID
	env.hist.AppendTranscript(id, transport.RoleUser, "hola")
	env.hist.AppendTranscript(id, transport.RoleModel, "¿qué hacés?")

	res, body := doJSON(t, http.MethodGet, env.ts.URL+"/v1/agents/"+id+"/history", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history = %d %s", res.StatusCode, body)
	}
	var out struct {
		Entries []history.Entry `json:"entries"`
	}
	_ = json.Unmarshal(body, &out)
	if len(out.Entries) != 2 || out.Entries[0].Text != "hola" {
		t.Fatalf("entries = %+v", out.Entries)
	}

	if res, _ = doJSON(t, http.MethodGet, env.ts.URL+"/v1/agents/nobody/history", nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown agent history = %d", res.StatusCode)
	}
}

func TestStartSessionUnknownAgent(t *testing.T) {
	env := newTestEnv(t, nil)
	res, body := doJSON(t, http.MethodPost, env.ts.URL+"/v1/voice/session", map[string]string{"agent_id": "nobody"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("start = %d %s", res.StatusCode, body)
	}
	res, _ = doJSON(t, http.MethodPost, env.ts.URL+"/v1/voice/session", map[string]string{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("start without agent = %d", res.StatusCode)
	}
}

func TestPreviewTTS(t *testing.T) {
	env := newTestEnv(t, nil)
	url := env.ts.URL + "/v1/voice/tts/preview"

	res, body := doJSON(t, http.MethodPost, url, map[string]string{"agent_id": persona.Defaults()[0].ID, "text": "Hola, ¿cómo andás?"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("preview = %d %s", res.StatusCode, body)
	}
	var out previewResponse
	_ = json.Unmarshal(body, &out)
	if out.Provider != "mock" || out.Format != "audio/wav" || out.AudioBase64 == "" {
		t.Fatalf("preview = %+v", out)
	}

	if res, _ = doJSON(t, http.MethodPost, url, map[string]string{"text": "  "}); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty preview = %d", res.StatusCode)
	}
}

func TestListVoices(t *testing.T) {
	env := newTestEnv(t, nil)
	res, body := doJSON(t, http.MethodGet, env.ts.URL+"/v1/voice/voices", nil)
	var out listVoicesResponse
	if err := json.Unmarshal(body, &out); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("voices = %d %s", res.StatusCode, body)
	}
	if len(out.Voices) != len(persona.Voices) || out.DefaultVoiceID != "Kore" || out.TTSProvider != "mock" {
		t.Fatalf("voices = %+v", out)
	}
}

func TestOnboardingWarnsAboutMockAndMemory(t *testing.T) {
	env := newTestEnv(t, nil)
	res, body := doJSON(t, http.MethodGet, env.ts.URL+"/v1/onboarding/status", nil)
	var out onboardingStatusResponse
	if err := json.Unmarshal(body, &out); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("onboarding = %d %s", res.StatusCode, body)
	}
	warn := map[string]bool{}
	for _, c := range out.Checks {
		if c.Status == "warn" {
			warn[c.ID] = true
		}
	}
	for _, id := range []string{"realtime_provider", "store", "tts_provider", "capture_device"} {
		if !warn[id] {
			t.Fatalf("expected warning for %s, checks = %+v", id, out.Checks)
		}
	}
}

func TestPerfLatencyAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics("httpapi_test")
	env := newTestEnv(t, metrics)
	metrics.ObserveStage("interrupt", 3*time.Millisecond)

	res, body := doJSON(t, http.MethodGet, env.ts.URL+"/v1/perf/latency", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "interrupt") {
		t.Fatalf("perf = %d %s", res.StatusCode, body)
	}
	if res, _ = doJSON(t, http.MethodDelete, env.ts.URL+"/v1/perf/latency", nil); res.StatusCode != http.StatusNoContent {
		t.Fatalf("reset = %d", res.StatusCode)
	}
	res, body = doJSON(t, http.MethodGet, env.ts.URL+"/metrics", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "httpapi_test_active_sessions") {
		t.Fatalf("metrics = %d", res.StatusCode)
	}
}

func dialWS(t *testing.T, env *testEnv, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/voice/session/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(protocol.ServerMessage, map[string]any) bool) protocol.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		payload, _ := msg.Payload.(map[string]any)
		if match(msg, payload) {
			return msg
		}
	}
}

func stateIs(state session.State) func(protocol.ServerMessage, map[string]any) bool {
	return func(m protocol.ServerMessage, p map[string]any) bool {
		return m.Type == protocol.TypeSessionState && p["state"] == string(state)
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env, nil)
	agentID := persona.Defaults()[0].ID

	readUntil(t, conn, stateIs(session.StateDisconnected))

	send(t, conn, protocol.ClientMic{Type: protocol.TypeClientMic, Granted: true, SampleRate: audio.InputSampleRate})
	send(t, conn, protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionStart, AgentID: agentID})
	var sessionID string
	var tuned bool
	readUntil(t, conn, func(m protocol.ServerMessage, p map[string]any) bool {
		if stateIs(session.StateConnected)(m, p) {
			sessionID = m.SessionID
		}
		if text, _ := p["message"].(string); m.Type == protocol.TypeNotification && strings.Contains(text, "Sintonizado") {
			tuned = true
		}
		return sessionID != "" && tuned
	})

	samples := make([]float32, 512)
	for i := range samples {
		samples[i] = 0.1
	}
	send(t, conn, protocol.ClientAudioChunk{
		Type:        protocol.TypeClientAudioChunk,
		PCM16Base64: audio.EncodeBase64PCM(samples),
		SampleRate:  audio.InputSampleRate,
	})

	opened := env.dialer.Opened()
	if len(opened) != 1 {
		t.Fatalf("dialed %d transports, want 1", len(opened))
	}
	mt := opened[0]
	tone := make([]float32, 2400)
	for i := range tone {
		tone[i] = 0.5
	}
	mt.Inject(transport.Event{Type: transport.EventTranscript, Role: transport.RoleModel, Text: "Buenas"})
	mt.Inject(transport.Event{Type: transport.EventAudio, Audio: audio.EncodeBase64PCM(tone), MIMEType: audio.MIMEOutputPCM})

	var transcript bool
	var audioMsg protocol.ServerMessage
	readUntil(t, conn, func(m protocol.ServerMessage, _ map[string]any) bool {
		switch {
		case m.Type == protocol.TypeTranscript && m.Text == "Buenas":
			transcript = true
		case m.Type == protocol.TypePlaybackAudio && audioMsg.Type == "":
			audioMsg = m
		}
		return transcript && audioMsg.Type != ""
	})
	if audioMsg.Format != "pcm16;rate=24000" || audioMsg.AudioBase64 == "" {
		t.Fatalf("playback message = %+v", audioMsg)
	}

	send(t, conn, protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionMute})
	readUntil(t, conn, func(m protocol.ServerMessage, p map[string]any) bool {
		return m.Type == protocol.TypeSessionState && p["muted"] == true
	})

	res, _ := doJSON(t, http.MethodPost, env.ts.URL+"/v1/voice/session/stop", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stop = %d", res.StatusCode)
	}
	readUntil(t, conn, stateIs(session.StateDisconnected))
}

func TestWebSocketPermissionDenied(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env, nil)
	readUntil(t, conn, stateIs(session.StateDisconnected))

	send(t, conn, protocol.ClientMic{Type: protocol.TypeClientMic, Granted: false, Reason: "NotAllowedError"})
	send(t, conn, protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionStart, AgentID: persona.Defaults()[0].ID})

	msg := readUntil(t, conn, func(m protocol.ServerMessage, _ map[string]any) bool {
		return m.Type == protocol.TypeErrorEvent
	})
	if msg.Code != string(voice.KindPermissionDenied) {
		t.Fatalf("error code = %q, want %q", msg.Code, voice.KindPermissionDenied)
	}
	if len(env.dialer.Opened()) != 0 {
		if !env.dialer.Opened()[0].Closed() {
			t.Fatalf("transport left open after permission denial")
		}
	}
}

func TestWebSocketRejectsInvalidMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env, nil)

	send(t, conn, map[string]string{"type": "client_warp"})
	msg := readUntil(t, conn, func(m protocol.ServerMessage, _ map[string]any) bool {
		return m.Type == protocol.TypeErrorEvent
	})
	if msg.Code != "invalid_client_message" {
		t.Fatalf("code = %q", msg.Code)
	}
}

func TestWebSocketRejectsChunkAtWrongRate(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env, nil)

	send(t, conn, map[string]any{"type": "client_mic", "granted": true, "sample_rate": 16000})
	send(t, conn, map[string]any{
		"type":         "client_audio_chunk",
		"seq":          1,
		"pcm16_base64": audio.EncodeBase64PCM(make([]float32, 160)),
		"sample_rate":  48000,
	})
	msg := readUntil(t, conn, func(m protocol.ServerMessage, _ map[string]any) bool {
		return m.Type == protocol.TypeErrorEvent
	})
	if msg.Code != "sample_rate_mismatch" {
		t.Fatalf("code = %q, detail = %q", msg.Code, msg.Detail)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/voice/session/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, res, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatalf("cross-origin websocket accepted")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-origin response = %+v", res)
	}

	dialWS(t, env, http.Header{"Origin": []string{env.ts.URL}})
}

func TestDashboardServed(t *testing.T) {
	env := newTestEnv(t, nil)
	res, body := doJSON(t, http.MethodGet, env.ts.URL+"/ui/", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "Agent Hub") {
		t.Fatalf("dashboard = %d", res.StatusCode)
	}
	if res.Header.Get("Cache-Control") != "no-cache" {
		t.Fatalf("Cache-Control = %q", res.Header.Get("Cache-Control"))
	}
}
