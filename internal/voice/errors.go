package voice

import (
	"errors"
	"fmt"
)

// Kind classifies session errors. Permission, handshake, capture and
// transport errors end the session; tool and decode errors stay local.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindHandshake        Kind = "handshake"
	KindCaptureLost      Kind = "capture_lost"
	KindTransport        Kind = "transport"
	KindToolExecution    Kind = "tool_execution"
	KindDecode           Kind = "decode"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Terminal reports whether the error ends the session.
func (e *Error) Terminal() bool {
	switch e.Kind {
	case KindPermissionDenied, KindHandshake, KindCaptureLost, KindTransport:
		return true
	}
	return false
}

// KindOf returns the Kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ErrAborted is returned by Start when Stop or a newer Start overtook it.
var ErrAborted = errors.New("session start aborted")

// userMessage is the text of the single notification a terminal error
// produces.
func userMessage(kind Kind, err error) string {
	switch kind {
	case KindPermissionDenied:
		return "Necesito permiso para usar el micrófono."
	case KindHandshake:
		return fmt.Sprintf("No se pudo conectar con el agente: %v", err)
	case KindCaptureLost:
		return "Se desconectó el micrófono. La sesión terminó."
	case KindTransport:
		return fmt.Sprintf("Se cortó la conexión con el agente: %v", err)
	default:
		return err.Error()
	}
}
