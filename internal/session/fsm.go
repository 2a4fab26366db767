package session

// Transition is the outcome of applying a trigger to a state.
type Transition struct {
	From    State
	Trigger Trigger
	To      State
	Effects []Effect
	// Ignored is set when the trigger does not apply to From, e.g. a late
	// handshake result after stop.
	Ignored bool
}

type key struct {
	from    State
	trigger Trigger
}

type outcome struct {
	to      State
	effects []Effect
}

var table = map[key]outcome{
	{StateDisconnected, TriggerStart}: {StateConnecting, []Effect{EffectAcquire}},
	{StateError, TriggerStart}:        {StateConnecting, []Effect{EffectAcquire}},
	{StateConnecting, TriggerStart}:   {StateConnecting, []Effect{EffectTeardown, EffectAcquire}},
	{StateConnected, TriggerStart}:    {StateConnecting, []Effect{EffectTeardown, EffectAcquire}},

	{StateConnecting, TriggerReady}:            {StateConnected, []Effect{EffectActivate, EffectNotifyOK}},
	{StateConnecting, TriggerPermissionDenied}: {StateError, []Effect{EffectTeardown, EffectNotifyErr}},
	{StateConnecting, TriggerHandshakeFailed}:  {StateError, []Effect{EffectTeardown, EffectNotifyErr}},

	{StateConnected, TriggerCaptureLost}:    {StateDisconnected, []Effect{EffectTeardown, EffectNotifyErr}},
	{StateConnected, TriggerTransportError}: {StateError, []Effect{EffectTeardown, EffectNotifyErr}},
	{StateConnected, TriggerRemoteClosed}:   {StateDisconnected, []Effect{EffectTeardown}},

	{StateConnecting, TriggerStop}:   {StateDisconnected, []Effect{EffectTeardown}},
	{StateConnected, TriggerStop}:    {StateDisconnected, []Effect{EffectTeardown}},
	{StateError, TriggerStop}:        {StateDisconnected, nil},
	{StateDisconnected, TriggerStop}: {StateDisconnected, nil},
}

// Next applies trigger to from. Triggers with no entry leave the state
// unchanged and are marked Ignored.
func Next(from State, trigger Trigger) Transition {
	if from == "" {
		from = StateDisconnected
	}
	o, ok := table[key{from, trigger}]
	if !ok {
		return Transition{From: from, Trigger: trigger, To: from, Ignored: true}
	}
	return Transition{
		From:    from,
		Trigger: trigger,
		To:      o.to,
		Effects: append([]Effect(nil), o.effects...),
	}
}

// Has reports whether e is among the transition's effects.
func (t Transition) Has(e Effect) bool {
	for _, x := range t.Effects {
		if x == e {
			return true
		}
	}
	return false
}
