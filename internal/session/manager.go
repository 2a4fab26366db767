package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

const (
	defaultInactivityTimeout = 2 * time.Minute
	defaultJanitorInterval   = 5 * time.Second
	defaultRetainEnded       = 50

	reasonInactivity = "inactivity"
)

var ErrNotFound = errors.New("session not found")

// Session is the registry record of one live session.
type Session struct {
	ID                string    `json:"session_id"`
	PersonaID         string    `json:"persona_id"`
	Voice             string    `json:"voice"`
	Status            Status    `json:"status"`
	State             State     `json:"state"`
	EndReason         string    `json:"end_reason,omitempty"`
	InterruptionCount int       `json:"interruption_count"`
	ToolCalls         int       `json:"tool_calls"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	EndedAt           time.Time `json:"ended_at,omitempty"`
}

func (s *Session) active() bool { return s.Status == StatusActive }

func (s *Session) finish(at time.Time, state State, reason string) {
	s.Status = StatusEnded
	s.State = state
	s.EndReason = reason
	s.LastActivityAt = at
	s.EndedAt = at
}

func (s *Session) idleFor(now time.Time) time.Duration { return now.Sub(s.LastActivityAt) }

func (s *Session) copy() *Session {
	c := *s
	return &c
}

// Manager is the session registry. Records stay queryable after they end;
// only the newest ended records are retained.
type Manager struct {
	idle        time.Duration
	retainEnded int
	now         func() time.Time

	mu       sync.RWMutex
	records  map[string]*Session
	onExpire func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = defaultInactivityTimeout
	}
	return &Manager{
		idle:        inactivityTimeout,
		retainEnded: defaultRetainEnded,
		now:         func() time.Time { return time.Now().UTC() },
		records:     make(map[string]*Session),
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.idle }

// SetExpireHook registers fn to run, outside the lock, for every session the
// janitor ends for inactivity.
func (m *Manager) SetExpireHook(fn func(*Session)) {
	m.mu.Lock()
	m.onExpire = fn
	m.mu.Unlock()
}

func (m *Manager) Create(personaID, voice string) *Session {
	at := m.now()
	rec := &Session{
		ID:             uuid.NewString(),
		PersonaID:      personaID,
		Voice:          voice,
		Status:         StatusActive,
		State:          StateConnecting,
		StartedAt:      at,
		LastActivityAt: at,
	}
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
	return rec.copy()
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[sessionID]; ok {
		return rec.copy(), nil
	}
	return nil, ErrNotFound
}

// List returns all retained records, newest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.copy())
	}
	m.mu.RUnlock()
	newestFirst(out)
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if rec.active() {
			n++
		}
	}
	return n
}

// mutate applies fn to the record and marks it as active now.
func (m *Manager) mutate(sessionID string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return ErrNotFound
	}
	fn(rec)
	rec.LastActivityAt = m.now()
	return nil
}

func (m *Manager) Touch(sessionID string) error {
	return m.mutate(sessionID, func(*Session) {})
}

func (m *Manager) SetState(sessionID string, state State) error {
	return m.mutate(sessionID, func(s *Session) { s.State = state })
}

func (m *Manager) Interrupt(sessionID string) error {
	return m.mutate(sessionID, func(s *Session) { s.InterruptionCount++ })
}

func (m *Manager) RecordToolCall(sessionID string) error {
	return m.mutate(sessionID, func(s *Session) { s.ToolCalls++ })
}

// End closes the session. Ending an already ended session keeps the first
// reason and returns the record unchanged.
func (m *Manager) End(sessionID string, state State, reason string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.active() {
		rec.finish(m.now(), state, reason)
		m.pruneLocked()
	}
	return rec.copy(), nil
}

// StartJanitor sweeps for idle sessions every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// sweep ends every active session idle past the timeout and reports the
// expired records to the hook.
func (m *Manager) sweep() []*Session {
	m.mu.Lock()
	at := m.now()
	var expired []*Session
	for _, rec := range m.records {
		if !rec.active() || rec.idleFor(at) < m.idle {
			continue
		}
		rec.finish(at, StateDisconnected, reasonInactivity)
		expired = append(expired, rec.copy())
	}
	if len(expired) > 0 {
		m.pruneLocked()
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
	return expired
}

// pruneLocked drops the oldest ended records beyond the retention cap.
func (m *Manager) pruneLocked() {
	var ended []*Session
	for _, rec := range m.records {
		if !rec.active() {
			ended = append(ended, rec)
		}
	}
	if len(ended) <= m.retainEnded {
		return
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].EndedAt.After(ended[j].EndedAt) })
	for _, rec := range ended[m.retainEnded:] {
		delete(m.records, rec.ID)
	}
}

func newestFirst(list []*Session) {
	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.After(list[j].StartedAt) })
}
