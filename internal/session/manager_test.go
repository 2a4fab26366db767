package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newManagerAt(idle time.Duration) (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(idle)
	m.now = clock.now
	return m, clock
}

func TestManagerLifecycle(t *testing.T) {
	m, clock := newManagerAt(time.Minute)
	s := m.Create("lucre-adm", "Kore")
	if s.ID == "" || s.Status != StatusActive || s.State != StateConnecting {
		t.Fatalf("Create() = %+v", s)
	}

	clock.advance(time.Second)
	ended, err := m.End(s.ID, StateDisconnected, "stop")
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded || ended.EndReason != "stop" || !ended.EndedAt.Equal(clock.t) {
		t.Fatalf("ended = %+v", ended)
	}

	again, _ := m.End(s.ID, StateError, "late")
	if again.EndReason != "stop" || again.State != StateDisconnected {
		t.Fatalf("second End() changed the record: %+v", again)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d", m.ActiveCount())
	}
	if _, err := m.End("missing", StateError, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("End(missing) error = %v", err)
	}
}

func TestManagerMutationsBumpActivity(t *testing.T) {
	m, clock := newManagerAt(time.Minute)
	s := m.Create("pato-pro", "Puck")
	clock.advance(10 * time.Second)

	for _, op := range []func(string) error{
		m.Interrupt,
		m.RecordToolCall,
		func(id string) error { return m.SetState(id, StateConnected) },
	} {
		if err := op(s.ID); err != nil {
			t.Fatalf("mutation error = %v", err)
		}
	}

	got, _ := m.Get(s.ID)
	if got.InterruptionCount != 1 || got.ToolCalls != 1 || got.State != StateConnected {
		t.Fatalf("counters = %+v", got)
	}
	if !got.LastActivityAt.Equal(clock.t) {
		t.Fatalf("LastActivityAt = %s, want %s", got.LastActivityAt, clock.t)
	}
	if err := m.Touch("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch(missing) error = %v", err)
	}
}

func TestManagerReturnsCopies(t *testing.T) {
	m, _ := newManagerAt(time.Minute)
	s := m.Create("a", "Kore")
	s.ToolCalls = 99
	got, _ := m.Get(s.ID)
	if got.ToolCalls != 0 {
		t.Fatalf("registry shared memory with caller")
	}
}

func TestManagerListNewestFirst(t *testing.T) {
	m, clock := newManagerAt(time.Minute)
	first := m.Create("a", "Kore")
	clock.advance(time.Second)
	second := m.Create("b", "Puck")
	list := m.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("List() order wrong: %+v", list)
	}
}

func TestManagerSweepExpiresIdle(t *testing.T) {
	m, clock := newManagerAt(time.Minute)
	idle := m.Create("a", "Kore")
	busy := m.Create("b", "Puck")
	var hooked []string
	m.SetExpireHook(func(s *Session) { hooked = append(hooked, s.ID) })

	clock.advance(45 * time.Second)
	_ = m.Touch(busy.ID)
	clock.advance(30 * time.Second)

	expired := m.sweep()
	if len(expired) != 1 || expired[0].ID != idle.ID || expired[0].EndReason != reasonInactivity {
		t.Fatalf("sweep() = %+v", expired)
	}
	if len(hooked) != 1 || hooked[0] != idle.ID {
		t.Fatalf("hook calls = %v", hooked)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}
	if again := m.sweep(); len(again) != 0 {
		t.Fatalf("ended sessions expired twice: %+v", again)
	}
}

func TestManagerRetainsNewestEnded(t *testing.T) {
	m, clock := newManagerAt(time.Minute)
	m.retainEnded = 2
	var ids []string
	for i := 0; i < 4; i++ {
		s := m.Create("a", "Kore")
		clock.advance(time.Second)
		_, _ = m.End(s.ID, StateDisconnected, "stop")
		ids = append(ids, s.ID)
	}
	live := m.Create("b", "Puck")

	if len(m.List()) != 3 {
		t.Fatalf("List() len = %d, want 3", len(m.List()))
	}
	for _, id := range ids[:2] {
		if _, err := m.Get(id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("old record %s still retained", id)
		}
	}
	if _, err := m.Get(live.ID); err != nil {
		t.Fatalf("active record pruned: %v", err)
	}
}

func TestManagerJanitorRuns(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	s := m.Create("lucre-adm", "Kore")
	var hooked atomic.Int32
	m.SetExpireHook(func(*Session) { hooked.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for hooked.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := m.Get(s.ID)
	if got.Status != StatusEnded || hooked.Load() != 1 {
		t.Fatalf("status = %s hooks = %d", got.Status, hooked.Load())
	}
}
