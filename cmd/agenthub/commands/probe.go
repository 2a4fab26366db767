package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/protocol"
	"github.com/ent0n29/agenthub/internal/session"
)

type probeOptions struct {
	baseURL  string
	agentID  string
	chunkMS  int
	realtime float64
	duration time.Duration
	timeout  time.Duration
}

type probeReport struct {
	SessionID        string
	Connect          time.Duration
	FirstAudio       time.Duration
	Chunks           int
	PlaybackMessages int
	Transcripts      int
}

var probeOpts = probeOptions{}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Drive a session over the websocket and report latency",
	Long: `probe connects to a running agenthub like the dashboard does: it grants
a synthetic microphone, starts a session with the given agent, streams a
tone and measures the time to connect and to the first playback audio.

Example:
  agenthub probe --base-url http://127.0.0.1:8080 --agent pato --realtime 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := probeOpts.validate(); err != nil {
			return err
		}
		report, err := runProbe(cmd.Context(), probeOpts, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session=%s connect=%s first_audio=%s chunks=%d playback=%d transcripts=%d\n",
			report.SessionID, report.Connect.Round(time.Millisecond), report.FirstAudio.Round(time.Millisecond),
			report.Chunks, report.PlaybackMessages, report.Transcripts)
		return nil
	},
}

func init() {
	f := probeCmd.Flags()
	f.StringVar(&probeOpts.baseURL, "base-url", "http://127.0.0.1:8080", "agenthub base URL")
	f.StringVar(&probeOpts.agentID, "agent", "", "agent id to start")
	f.IntVar(&probeOpts.chunkMS, "chunk-ms", 100, "microphone chunk size in milliseconds")
	f.Float64Var(&probeOpts.realtime, "realtime", 1.0, "chunk pacing multiplier (1.0=realtime, 2.0=2x)")
	f.DurationVar(&probeOpts.duration, "duration", 3*time.Second, "length of audio to stream")
	f.DurationVar(&probeOpts.timeout, "timeout", 15*time.Second, "timeout for connect and first audio")
}

func (o *probeOptions) validate() error {
	o.baseURL = strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	switch {
	case o.baseURL == "":
		return fmt.Errorf("base-url is required")
	case strings.TrimSpace(o.agentID) == "":
		return fmt.Errorf("agent is required")
	case o.chunkMS < 10 || o.chunkMS > 2000:
		return fmt.Errorf("chunk-ms must be in [10,2000]")
	case o.realtime <= 0:
		return fmt.Errorf("realtime must be > 0")
	case o.duration <= 0:
		return fmt.Errorf("duration must be > 0")
	}
	if o.timeout < time.Second {
		o.timeout = time.Second
	}
	return nil
}

func sessionWSURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/voice/session/ws"
	return u.String(), nil
}

// toneChunk returns n samples of a 220 Hz sine starting at sample offset.
func toneChunk(offset, n, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.2 * math.Sin(2*math.Pi*220*float64(offset+i)/float64(rate)))
	}
	return out
}

func runProbe(ctx context.Context, opts probeOptions, out io.Writer) (probeReport, error) {
	var report probeReport
	wsURL, err := sessionWSURL(opts.baseURL)
	if err != nil {
		return report, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return report, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	msgs := make(chan protocol.ServerMessage, 1024)
	readErr := make(chan error, 1)
	go func() {
		defer close(msgs)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var msg protocol.ServerMessage
			if json.Unmarshal(data, &msg) == nil {
				msgs <- msg
			}
		}
	}()

	rate := audio.InputSampleRate
	start := time.Now()
	if err := conn.WriteJSON(protocol.ClientMic{Type: protocol.TypeClientMic, Granted: true, SampleRate: rate}); err != nil {
		return report, err
	}
	if err := conn.WriteJSON(protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionStart, AgentID: opts.agentID}); err != nil {
		return report, err
	}
	defer func() {
		_ = conn.WriteJSON(protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionStop})
	}()

	var streamStart time.Time
	handle := func(msg protocol.ServerMessage) error {
		switch msg.Type {
		case protocol.TypeSessionState:
			p, _ := msg.Payload.(map[string]any)
			if p["state"] == string(session.StateConnected) && report.SessionID == "" {
				report.SessionID = msg.SessionID
				report.Connect = time.Since(start)
				fmt.Fprintf(out, "probe: connected session=%s in %s\n", msg.SessionID, report.Connect.Round(time.Millisecond))
			}
		case protocol.TypeErrorEvent:
			return fmt.Errorf("server error %s: %s", msg.Code, msg.Detail)
		case protocol.TypeTranscript:
			report.Transcripts++
		case protocol.TypePlaybackAudio:
			if report.PlaybackMessages == 0 && !streamStart.IsZero() {
				report.FirstAudio = time.Since(streamStart)
			}
			report.PlaybackMessages++
		}
		return nil
	}
	wait := func(done func() bool) error {
		timer := time.NewTimer(opts.timeout)
		defer timer.Stop()
		for !done() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return fmt.Errorf("timed out after %s", opts.timeout)
			case msg, ok := <-msgs:
				if !ok {
					return fmt.Errorf("ws read: %w", <-readErr)
				}
				if err := handle(msg); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := wait(func() bool { return report.SessionID != "" }); err != nil {
		return report, fmt.Errorf("await connect: %w", err)
	}

	samplesPerChunk := rate * opts.chunkMS / 1000
	pace := time.Duration(float64(time.Duration(opts.chunkMS)*time.Millisecond) / opts.realtime)
	total := int(opts.duration / (time.Duration(opts.chunkMS) * time.Millisecond))
	streamStart = time.Now()
	for i := 0; i < total; i++ {
		chunk := protocol.ClientAudioChunk{
			Type:        protocol.TypeClientAudioChunk,
			Seq:         i,
			PCM16Base64: audio.EncodeBase64PCM(toneChunk(i*samplesPerChunk, samplesPerChunk, rate)),
			SampleRate:  rate,
			TSMs:        time.Since(streamStart).Milliseconds(),
		}
		if err := conn.WriteJSON(chunk); err != nil {
			return report, fmt.Errorf("send chunk %d: %w", i, err)
		}
		report.Chunks++

		deadline := time.After(pace)
	drain:
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return report, fmt.Errorf("ws read: %w", <-readErr)
				}
				if err := handle(msg); err != nil {
					return report, err
				}
			case <-deadline:
				break drain
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}

	if err := wait(func() bool { return report.PlaybackMessages > 0 }); err != nil {
		return report, fmt.Errorf("await playback: %w", err)
	}
	return report, nil
}
