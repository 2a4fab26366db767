// Package voice owns the live voice session: it wires microphone capture,
// the realtime transport, playback, the visualizer and tool calls together
// and is the only place that starts or stops any of them.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/capture"
	"github.com/ent0n29/agenthub/internal/notify"
	"github.com/ent0n29/agenthub/internal/observability"
	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/playback"
	"github.com/ent0n29/agenthub/internal/session"
	"github.com/ent0n29/agenthub/internal/tools"
	"github.com/ent0n29/agenthub/internal/transport"
	"github.com/ent0n29/agenthub/internal/visualizer"
)

// TranscriptSink receives transcript fragments in arrival order.
type TranscriptSink interface {
	AppendTranscript(personaID string, role transport.Role, text string)
	EndTurn(personaID string)
}

type Config struct {
	Device   capture.Device
	Dialer   transport.Dialer
	Tools    *tools.Registry
	Sessions *session.Manager
	Notifier *notify.Hub
	Metrics  *observability.Metrics
	History  TranscriptSink

	Sink          playback.Sink
	FrameSize     int
	OutputRate    int
	FFTSize       int
	VisualizerFPS int
	CanvasWidth   float64
	ToolTimeout   time.Duration
}

// Snapshot is the externally visible session state.
type Snapshot struct {
	State     session.State `json:"state"`
	SessionID string        `json:"session_id,omitempty"`
	PersonaID string        `json:"persona_id,omitempty"`
	Voice     string        `json:"voice,omitempty"`
	Muted     bool          `json:"muted"`
	InFlight  int           `json:"in_flight"`
	BufferMS  int64         `json:"buffer_ms"`
	LastError string        `json:"last_error,omitempty"`
	ErrorKind Kind          `json:"error_kind,omitempty"`
}

// run holds the resources of one session attempt.
type run struct {
	epoch       uint64
	ctx         context.Context
	cancel      context.CancelFunc
	sessionID   string
	persona     persona.Persona
	input       capture.Input
	tr          transport.Transport
	stage       *capture.Stage
	startedAt   time.Time
	connectedAt time.Time
	released    bool

	firstAudio sync.Once
}

type Controller struct {
	cfg     Config
	bridge  *tools.Bridge
	updates fanout

	mu      sync.Mutex
	state   session.State
	epoch   uint64
	muted   bool
	cur     *run
	lastErr *Error

	// Output path, created on first start and reused afterwards.
	clock    *playback.OutputClock
	seq      *playback.Sequencer
	analyser *visualizer.Analyser
	viz      *visualizer.Visualizer
	clocks   int
}

func NewController(cfg Config) *Controller {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = audio.CaptureFrameSize
	}
	if cfg.OutputRate <= 0 {
		cfg.OutputRate = audio.OutputSampleRate
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = visualizer.DefaultFFTSize
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.DefaultRegistry()
	}
	c := &Controller{cfg: cfg, state: session.StateDisconnected}
	c.bridge = tools.NewBridge(cfg.Tools,
		tools.WithTimeout(cfg.ToolTimeout),
		tools.WithObserver(toolObserver{c}),
	)
	return c
}

// Subscribe streams session updates until cancel is called.
func (c *Controller) Subscribe() (<-chan Update, func()) { return c.updates.subscribe() }

// SetSink routes rendered output, e.g. to the connected dashboard.
func (c *Controller) SetSink(s playback.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Sink = s
	if c.clock != nil {
		c.clock.SetSink(s)
	}
}

// Start opens a session for p. A session that is already open or still
// connecting is torn down first. Start returns once the microphone and the
// handshake have both succeeded, or with the first failure; it never leaves
// one of them held without the other.
func (c *Controller) Start(ctx context.Context, p persona.Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.Clone()
	selected, toolErr := c.cfg.Tools.Select(p.Tools)

	c.mu.Lock()
	t := session.Next(c.state, session.TriggerStart)
	if t.Has(session.EffectTeardown) {
		c.teardownLocked("restart")
	}
	c.epoch++
	r := &run{
		epoch:     c.epoch,
		persona:   p,
		startedAt: time.Now(),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	if c.cfg.Sessions != nil {
		r.sessionID = c.cfg.Sessions.Create(p.ID, p.PrebuiltVoice()).ID
	}
	c.cur = r
	c.state = t.To
	c.lastErr = nil
	c.ensureOutputLocked()
	c.mu.Unlock()

	c.cfg.Metrics.SessionEvent("start")
	c.publishState()
	log.Printf("session %s: starting persona %s (voice %s)", r.sessionID, p.ID, p.PrebuiltVoice())

	if toolErr != nil {
		return c.failStart(r, nil, nil, &Error{Kind: KindHandshake, Err: toolErr})
	}

	// Stop cancels r.ctx; the caller's ctx bounds the wait too.
	startCtx, cancelStart := context.WithCancel(r.ctx)
	defer cancelStart()
	stopWatch := context.AfterFunc(ctx, cancelStart)
	defer stopWatch()

	var (
		wg     sync.WaitGroup
		input  capture.Input
		micErr error
		tr     transport.Transport
		dialEr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		input, micErr = c.cfg.Device.Acquire(startCtx)
		if micErr != nil {
			cancelStart()
		}
	}()
	go func() {
		defer wg.Done()
		tr, dialEr = c.cfg.Dialer.Dial(startCtx, transport.Config{
			Voice:       p.PrebuiltVoice(),
			Instruction: p.Instruction,
			Tools:       selected,
		})
		if dialEr != nil {
			cancelStart()
		}
	}()
	wg.Wait()

	if !c.current(r.epoch) {
		release(input, tr)
		return ErrAborted
	}
	// A failure on one side cancels the other, so the side that did not see
	// context.Canceled is the cause.
	switch {
	case micErr != nil && !errors.Is(micErr, context.Canceled):
		return c.failStart(r, input, tr, &Error{Kind: KindPermissionDenied, Err: micErr})
	case dialEr != nil && !errors.Is(dialEr, context.Canceled):
		return c.failStart(r, input, tr, &Error{Kind: KindHandshake, Err: dialEr})
	case micErr != nil:
		return c.failStart(r, input, tr, &Error{Kind: KindPermissionDenied, Err: micErr})
	case dialEr != nil:
		return c.failStart(r, input, tr, &Error{Kind: KindHandshake, Err: dialEr})
	}

	c.mu.Lock()
	if c.epoch != r.epoch {
		c.mu.Unlock()
		release(input, tr)
		return ErrAborted
	}
	t = session.Next(c.state, session.TriggerReady)
	r.input, r.tr = input, tr
	r.connectedAt = time.Now()
	r.stage = capture.NewStage(input, tr.SendAudio,
		capture.WithFrameSize(c.cfg.FrameSize),
		capture.WithObserver(c.cfg.Metrics),
	)
	r.stage.SetMuted(c.muted)
	c.state = t.To
	c.activateLocked(r)
	c.mu.Unlock()

	if c.cfg.Sessions != nil {
		_ = c.cfg.Sessions.SetState(r.sessionID, session.StateConnected)
		c.cfg.Metrics.SetActiveSessions(c.cfg.Sessions.ActiveCount())
	}
	c.cfg.Metrics.SessionEvent("connected")
	c.cfg.Metrics.ObserveStage("start_to_connected", r.connectedAt.Sub(r.startedAt))
	if t.Has(session.EffectNotifyOK) {
		c.notify(notify.LevelSuccess, fmt.Sprintf("%s Sintonizado.", p.Name))
	}
	c.publishState()
	log.Printf("session %s: connected", r.sessionID)
	return nil
}

// failStart releases whatever was acquired and moves to the error state.
// The check and transition happen under one lock so a concurrent Stop wins
// cleanly.
func (c *Controller) failStart(r *run, input capture.Input, tr transport.Transport, e *Error) error {
	release(input, tr)
	trigger := session.TriggerHandshakeFailed
	if e.Kind == KindPermissionDenied {
		trigger = session.TriggerPermissionDenied
	}
	if !c.transition(r.epoch, trigger, e) {
		return ErrAborted
	}
	return e
}

func release(input capture.Input, tr transport.Transport) {
	if input != nil {
		_ = input.Close()
	}
	if tr != nil {
		_ = tr.Close()
	}
}

// Stop tears the session down from any state. It is a no-op when nothing
// was ever started.
func (c *Controller) Stop() error {
	c.mu.Lock()
	t := session.Next(c.state, session.TriggerStop)
	if t.Has(session.EffectTeardown) {
		c.teardownLocked("stop")
	} else {
		c.epoch++
	}
	changed := c.state != t.To
	c.state = t.To
	c.mu.Unlock()

	if changed {
		c.cfg.Metrics.SessionEvent("stop")
		c.publishState()
	}
	return nil
}

// Interrupt cuts off all queued and playing speech without closing the
// session. It is idempotent.
func (c *Controller) Interrupt() int {
	start := time.Now()
	c.mu.Lock()
	seq := c.seq
	var sessionID string
	if c.cur != nil {
		sessionID = c.cur.sessionID
	}
	c.mu.Unlock()
	if seq == nil {
		return 0
	}
	n := seq.InterruptAll()
	if n > 0 {
		if c.cfg.Sessions != nil && sessionID != "" {
			_ = c.cfg.Sessions.Interrupt(sessionID)
		}
		c.cfg.Metrics.SessionEvent("interrupted")
		c.cfg.Metrics.ObserveStage("interrupt", time.Since(start))
		c.updates.publish(Update{Type: UpdateInterrupted})
	}
	return n
}

// Mute suppresses outbound capture. Inbound audio keeps playing.
func (c *Controller) Mute(muted bool) {
	c.mu.Lock()
	c.muted = muted
	if c.cur != nil && c.cur.stage != nil {
		c.cur.stage.SetMuted(muted)
	}
	c.mu.Unlock()
	c.publishState()
}

func (c *Controller) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{State: c.state, Muted: c.muted}
	if c.cur != nil {
		s.SessionID = c.cur.sessionID
		s.PersonaID = c.cur.persona.ID
		s.Voice = c.cur.persona.PrebuiltVoice()
	}
	if c.seq != nil {
		s.InFlight = c.seq.InFlight()
		s.BufferMS = c.clock.Buffered().Milliseconds()
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
		s.ErrorKind = c.lastErr.Kind
	}
	return s
}

// SessionID returns the registry id of the current session, if any.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.state == session.StateDisconnected {
		return ""
	}
	return c.cur.sessionID
}

// Close stops the session and the visualizer loop for good.
func (c *Controller) Close() error {
	_ = c.Stop()
	c.mu.Lock()
	viz, clock := c.viz, c.clock
	c.mu.Unlock()
	if viz != nil {
		viz.Stop()
	}
	if clock != nil {
		clock.Stop()
	}
	return nil
}

// OutputClocks reports how many output clocks were ever created.
func (c *Controller) OutputClocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clocks
}

func (c *Controller) ensureOutputLocked() {
	if c.clock != nil {
		return
	}
	c.clock = playback.NewOutputClock(c.cfg.OutputRate, c.cfg.Sink)
	c.clocks++
	c.seq = playback.NewSequencer(c.clock, playback.WithObserver(c.cfg.Metrics))

	analyser, err := visualizer.NewAnalyser(c.cfg.FFTSize)
	if err != nil {
		log.Printf("visualizer disabled: %v", err)
		return
	}
	c.analyser = analyser
	c.clock.Attach(analyser)
	c.viz = visualizer.New(analyser, c.cfg.VisualizerFPS, c.cfg.CanvasWidth, func(f visualizer.Frame) {
		c.updates.publish(Update{Type: UpdateFrame, Frame: &f})
	})
	c.viz.Start(context.Background())
}

func (c *Controller) activateLocked(r *run) {
	c.clock.Start(context.Background())
	if c.viz != nil {
		c.viz.SetConnected(true)
	}
	go c.captureLoop(r, r.stage)
	go c.eventLoop(r, r.tr)
}

// teardownLocked releases the current run. Goroutines of the run hold their
// own references, notice the epoch change and exit without acting.
func (c *Controller) teardownLocked(reason string) {
	c.epoch++
	r := c.cur
	if r != nil {
		r.cancel()
		if !r.released {
			r.released = true
			release(r.input, r.tr)
		}
		if c.cfg.Sessions != nil && r.sessionID != "" {
			state := session.StateDisconnected
			if reason == "error" {
				state = session.StateError
			}
			_, _ = c.cfg.Sessions.End(r.sessionID, state, reason)
			c.cfg.Metrics.SetActiveSessions(c.cfg.Sessions.ActiveCount())
		}
	}
	if c.seq != nil {
		c.seq.InterruptAll()
	}
	if c.clock != nil {
		c.clock.Stop()
		c.clock.Flush()
	}
	if c.viz != nil {
		c.viz.SetConnected(false)
	}
	if c.analyser != nil {
		c.analyser.Reset()
	}
	if r != nil && c.cfg.History != nil {
		c.cfg.History.EndTurn(r.persona.ID)
	}
}

func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

// transition applies a terminal trigger for the given run. It reports false
// when the run is stale or the trigger does not apply.
func (c *Controller) transition(epoch uint64, trigger session.Trigger, e *Error) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	t := session.Next(c.state, trigger)
	if t.Ignored {
		c.mu.Unlock()
		return false
	}
	if t.Has(session.EffectTeardown) {
		reason := string(trigger)
		if t.To == session.StateError {
			reason = "error"
		}
		c.teardownLocked(reason)
	}
	c.state = t.To
	if e != nil {
		c.lastErr = e
	}
	c.mu.Unlock()

	c.cfg.Metrics.SessionEvent(string(trigger))
	if e != nil {
		log.Printf("session: %s: %v", trigger, e)
		c.cfg.Metrics.ProviderError("session", string(e.Kind))
	}
	if t.Has(session.EffectNotifyErr) && e != nil {
		c.notify(notify.LevelError, userMessage(e.Kind, e.Err))
	}
	c.publishState()
	return true
}

func (c *Controller) captureLoop(r *run, stage *capture.Stage) {
	err := stage.Run(r.ctx)
	if err == nil || r.ctx.Err() != nil {
		return
	}
	c.transition(r.epoch, session.TriggerCaptureLost, &Error{Kind: KindCaptureLost, Err: err})
}

// eventLoop handles inbound events one at a time in arrival order.
func (c *Controller) eventLoop(r *run, tr transport.Transport) {
	for ev := range tr.Events() {
		if !c.current(r.epoch) {
			continue
		}
		c.handleEvent(r, tr, ev)
	}
}

func (c *Controller) handleEvent(r *run, tr transport.Transport, ev transport.Event) {
	switch ev.Type {
	case transport.EventAudio:
		played, err := c.playFragment(r, ev.Audio)
		if err != nil {
			log.Printf("session %s: %v", r.sessionID, &Error{Kind: KindDecode, Err: err})
		}
		if !played {
			return
		}
		r.firstAudio.Do(func() {
			c.cfg.Metrics.ObserveFirstAudioLatency(time.Since(r.connectedAt))
		})
		c.touch(r)
	case transport.EventTranscript:
		if c.cfg.History != nil {
			c.cfg.History.AppendTranscript(r.persona.ID, ev.Role, ev.Text)
		}
		c.updates.publish(Update{Type: UpdateTranscript, Role: ev.Role, Text: ev.Text})
		c.touch(r)
	case transport.EventToolCall:
		c.dispatchTool(r, tr, ev.ToolCall)
	case transport.EventInterrupted:
		c.Interrupt()
	case transport.EventTurnComplete:
		if c.cfg.History != nil {
			c.cfg.History.EndTurn(r.persona.ID)
		}
	case transport.EventError:
		c.transition(r.epoch, session.TriggerTransportError, &Error{Kind: KindTransport, Err: ev.Err})
	case transport.EventClosed:
		c.transition(r.epoch, session.TriggerRemoteClosed, nil)
	}
}

// playFragment schedules an inbound fragment only while r is still the
// current run. The epoch check and the enqueue share the lock so a concurrent
// teardown cannot leave a stale fragment on the clock.
func (c *Controller) playFragment(r *run, payload string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != r.epoch || c.seq == nil {
		return false, nil
	}
	if _, err := c.seq.Enqueue(payload); err != nil {
		return false, err
	}
	return true, nil
}

// dispatchTool runs the call in its own goroutine so slow tools do not hold
// up audio; responses may therefore complete out of order.
func (c *Controller) dispatchTool(r *run, tr transport.Transport, call tools.Call) {
	c.notify(notify.LevelInfo, "Ejecutando: "+call.Name)
	c.updates.publish(Update{Type: UpdateToolCall, ToolCall: &call})
	if c.cfg.Sessions != nil {
		_ = c.cfg.Sessions.RecordToolCall(r.sessionID)
	}
	go func() {
		start := time.Now()
		resp := c.bridge.Handle(r.ctx, call)
		c.cfg.Metrics.ObserveStage("tool_call", time.Since(start))
		if !c.current(r.epoch) {
			return
		}
		if resp.Failed {
			log.Printf("session %s: %v", r.sessionID, &Error{Kind: KindToolExecution, Err: fmt.Errorf("%s: %v", call.Name, resp.Payload["error"])})
		}
		tr.SendToolResponse(resp)
		c.updates.publish(Update{Type: UpdateToolResult, ToolResult: &resp})
	}()
}

func (c *Controller) touch(r *run) {
	if c.cfg.Sessions != nil && r.sessionID != "" {
		_ = c.cfg.Sessions.Touch(r.sessionID)
	}
}

func (c *Controller) notify(level notify.Level, msg string) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Publish(level, msg)
	}
}

func (c *Controller) publishState() {
	s := c.Snapshot()
	c.updates.publish(Update{Type: UpdateState, State: &s})
}

type toolObserver struct{ c *Controller }

func (o toolObserver) ToolStarted(name string) { o.c.cfg.Metrics.ToolStarted(name) }

func (o toolObserver) ToolFinished(name string, failed bool) {
	o.c.cfg.Metrics.ToolFinished(name, failed)
	if failed {
		o.c.cfg.Metrics.ProviderError("tool", name)
	}
}
