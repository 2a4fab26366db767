package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/notify"
	"github.com/ent0n29/agenthub/internal/protocol"
	"github.com/ent0n29/agenthub/internal/session"
	"github.com/ent0n29/agenthub/internal/voice"
)

const (
	sessionStartTimeout = 30 * time.Second
	wsReadTimeout       = 120 * time.Second
	wsWriteTimeout      = 10 * time.Second
	wsPingInterval      = 30 * time.Second
)

type startSessionRequest struct {
	AgentID string `json:"agent_id"`
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	recent := []*session.Session{}
	if s.sessions != nil {
		recent = append(recent, s.sessions.List()...)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"current": s.ctrl.Snapshot(),
		"recent":  recent,
	})
}

// handleStartSession kicks off a session and returns immediately; progress
// is reported on the session websocket since a dashboard microphone can only
// be granted over it.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.AgentID == "" {
		respondError(w, http.StatusBadRequest, "missing_agent_id", "agent_id is required")
		return
	}
	if err := s.startSession(req.AgentID, nil); err != nil {
		respondRosterError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleStopSession(w http.ResponseWriter, _ *http.Request) {
	_ = s.ctrl.Stop()
	respondJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleMuteSession(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	s.ctrl.Mute(req.Muted)
	respondJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleInterruptSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{"interrupted": s.ctrl.Interrupt()})
}

// startSession resolves the agent and starts the controller in the
// background. A failed start is reported to c when set.
func (s *Server) startSession(agentID string, c *wsClient) error {
	p, err := s.roster.Get(agentID)
	if err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sessionStartTimeout)
		defer cancel()
		err := s.ctrl.Start(ctx, p)
		if err == nil || errors.Is(err, voice.ErrAborted) {
			return
		}
		log.Printf("session start for %s failed: %v", agentID, err)
		if c != nil {
			s.clients.offer(c, protocol.ServerMessage{
				Type:   protocol.TypeErrorEvent,
				Code:   startErrorCode(err),
				Detail: err.Error(),
			})
		}
	}()
	return nil
}

func startErrorCode(err error) string {
	if k := voice.KindOf(err); k != "" {
		return string(k)
	}
	return "start_failed"
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvent("ws_connected")
	client := s.clients.add()
	defer s.clients.remove(client)

	updates, stopUpdates := s.ctrl.Subscribe()
	defer stopUpdates()
	var notes <-chan notify.Notification
	if s.notifier != nil {
		ch, stopNotes := s.notifier.Subscribe()
		defer stopNotes()
		notes = ch
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snap := s.ctrl.Snapshot()
	s.clients.offer(client, protocol.ServerMessage{
		Type:      protocol.TypeSessionState,
		SessionID: snap.SessionID,
		Payload:   snap,
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			var msg protocol.ServerMessage
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					cancel()
					return
				}
				continue
			case u, ok := <-updates:
				if !ok {
					return
				}
				msg = updateMessage(u)
			case n, ok := <-notes:
				if !ok {
					notes = nil
					continue
				}
				msg = protocol.ServerMessage{Type: protocol.TypeNotification, Payload: n}
			case msg = <-client.out:
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return
			}
			s.metrics.WSMessage("outbound", string(msg.Type))
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	ownsMic := false
	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.clients.offer(client, protocol.ServerMessage{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}
		switch m := parsed.(type) {
		case protocol.ClientAudioChunk:
			s.metrics.WSMessage("inbound", string(m.Type))
			s.pushAudio(client, m)
		case protocol.ClientMic:
			s.metrics.WSMessage("inbound", string(m.Type))
			if s.mic == nil {
				continue
			}
			if m.Granted {
				s.mic.Grant(m.SampleRate)
				ownsMic = true
			} else {
				s.mic.Deny(m.Reason)
			}
		case protocol.ClientControl:
			s.metrics.WSMessage("inbound", string(m.Type))
			s.handleControl(client, m)
		}
	}

	cancel()
	<-writerDone
	if ownsMic && s.mic != nil {
		s.mic.Detach()
	}
	s.metrics.SessionEvent("ws_disconnected")
}

func (s *Server) pushAudio(c *wsClient, m protocol.ClientAudioChunk) {
	if s.mic == nil {
		return
	}
	if rate := s.mic.GrantedRate(); rate > 0 && m.SampleRate != rate {
		s.clients.offer(c, protocol.ServerMessage{
			Type:   protocol.TypeErrorEvent,
			Code:   "sample_rate_mismatch",
			Detail: fmt.Sprintf("chunk at %d Hz, microphone granted at %d Hz", m.SampleRate, rate),
		})
		return
	}
	samples, err := audio.DecodeBase64PCM(m.PCM16Base64)
	if err != nil {
		s.clients.offer(c, protocol.ServerMessage{
			Type:   protocol.TypeErrorEvent,
			Code:   "invalid_audio_chunk",
			Detail: err.Error(),
		})
		return
	}
	s.mic.Push(samples)
}

func (s *Server) handleControl(c *wsClient, m protocol.ClientControl) {
	switch m.Action {
	case protocol.ActionStart:
		if err := s.startSession(m.AgentID, c); err != nil {
			s.clients.offer(c, protocol.ServerMessage{
				Type:   protocol.TypeErrorEvent,
				Code:   "agent_not_found",
				Detail: err.Error(),
			})
		}
	case protocol.ActionStop:
		_ = s.ctrl.Stop()
	case protocol.ActionMute:
		s.ctrl.Mute(true)
	case protocol.ActionUnmute:
		s.ctrl.Mute(false)
	case protocol.ActionInterrupt:
		s.ctrl.Interrupt()
	}
}

func updateMessage(u voice.Update) protocol.ServerMessage {
	switch u.Type {
	case voice.UpdateState:
		msg := protocol.ServerMessage{Type: protocol.TypeSessionState, Payload: u.State}
		if u.State != nil {
			msg.SessionID = u.State.SessionID
		}
		return msg
	case voice.UpdateTranscript:
		return protocol.ServerMessage{Type: protocol.TypeTranscript, Role: string(u.Role), Text: u.Text}
	case voice.UpdateToolCall:
		return protocol.ServerMessage{Type: protocol.TypeToolCall, Payload: u.ToolCall}
	case voice.UpdateToolResult:
		return protocol.ServerMessage{Type: protocol.TypeToolResult, Payload: u.ToolResult}
	case voice.UpdateInterrupted:
		return protocol.ServerMessage{Type: protocol.TypeInterrupted}
	default:
		return protocol.ServerMessage{Type: protocol.TypeVisualizer, Payload: u.Frame}
	}
}
