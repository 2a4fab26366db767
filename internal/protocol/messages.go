// Package protocol defines the websocket messages exchanged with the
// dashboard.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientMic        MessageType = "client_mic"
	TypeClientControl    MessageType = "client_control"

	TypeSessionState  MessageType = "session_state"
	TypeTranscript    MessageType = "transcript"
	TypePlaybackAudio MessageType = "playback_audio"
	TypeVisualizer    MessageType = "visualizer_frame"
	TypeToolCall      MessageType = "tool_call"
	TypeToolResult    MessageType = "tool_result"
	TypeInterrupted   MessageType = "interrupted"
	TypeNotification  MessageType = "notification"
	TypeErrorEvent    MessageType = "error_event"
)

// Control actions accepted in client_control.
const (
	ActionStart     = "start"
	ActionStop      = "stop"
	ActionMute      = "mute"
	ActionUnmute    = "unmute"
	ActionInterrupt = "interrupt"
)

var actions = []string{ActionStart, ActionStop, ActionMute, ActionUnmute, ActionInterrupt}

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrInvalidMessage  = errors.New("invalid message")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientAudioChunk is one block of browser microphone samples as PCM16LE.
type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms,omitempty"`
}

// ClientMic reports the browser's microphone permission decision.
type ClientMic struct {
	Type       MessageType `json:"type"`
	Granted    bool        `json:"granted"`
	SampleRate int         `json:"sample_rate,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

type ClientControl struct {
	Type    MessageType `json:"type"`
	Action  string      `json:"action"`
	AgentID string      `json:"agent_id,omitempty"`
}

// ServerMessage is the single outbound shape; Type selects which fields are
// set.
type ServerMessage struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id,omitempty"`
	Seq         int64       `json:"seq,omitempty"`
	Role        string      `json:"role,omitempty"`
	Text        string      `json:"text,omitempty"`
	Format      string      `json:"format,omitempty"`
	AudioBase64 string      `json:"audio_base64,omitempty"`
	Code        string      `json:"code,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	Payload     any         `json:"payload,omitempty"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, fmt.Errorf("%w: client_audio_chunk needs pcm16_base64 and sample_rate", ErrInvalidMessage)
		}
		return msg, nil
	case TypeClientMic:
		var msg ClientMic
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Granted && msg.SampleRate <= 0 {
			return nil, fmt.Errorf("%w: client_mic grant needs sample_rate", ErrInvalidMessage)
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if !slices.Contains(actions, msg.Action) {
			return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, msg.Action)
		}
		if msg.Action == ActionStart && msg.AgentID == "" {
			return nil, fmt.Errorf("%w: start needs agent_id", ErrInvalidMessage)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
