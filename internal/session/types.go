package session

// State is the connection state of the live voice session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Trigger is an input to the state machine.
type Trigger string

const (
	TriggerStart            Trigger = "start"
	TriggerReady            Trigger = "ready"
	TriggerPermissionDenied Trigger = "permission_denied"
	TriggerHandshakeFailed  Trigger = "handshake_failed"
	TriggerCaptureLost      Trigger = "capture_lost"
	TriggerTransportError   Trigger = "transport_error"
	TriggerRemoteClosed     Trigger = "remote_closed"
	TriggerStop             Trigger = "stop"
)

// Effect is a side effect the controller performs after a transition, in
// the order listed.
type Effect string

const (
	EffectTeardown  Effect = "teardown"
	EffectAcquire   Effect = "acquire"
	EffectActivate  Effect = "activate"
	EffectNotifyOK  Effect = "notify_started"
	EffectNotifyErr Effect = "notify_error"
)
