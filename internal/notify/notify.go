// Package notify fans toast-style notifications out to dashboard clients.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	subscriberBuffer = 32
	defaultRecent    = 50
)

// Hub broadcasts to every subscriber. Slow subscribers miss notifications
// rather than stalling the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Notification
	nextSub int
	recent  []Notification
	keep    int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Notification), keep: defaultRecent}
}

func (h *Hub) Publish(level Level, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, n)
	if len(h.recent) > h.keep {
		h.recent = h.recent[len(h.recent)-h.keep:]
	}
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
	return n
}

func (h *Hub) Info(message string) Notification    { return h.Publish(LevelInfo, message) }
func (h *Hub) Success(message string) Notification { return h.Publish(LevelSuccess, message) }
func (h *Hub) Error(message string) Notification   { return h.Publish(LevelError, message) }

// Subscribe returns a channel of future notifications and a cancel func
// that closes it.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Recent returns the last notifications, oldest first.
func (h *Hub) Recent() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Notification(nil), h.recent...)
}
