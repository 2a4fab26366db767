// Package history records session transcripts per agent.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/agenthub/internal/policy"
	"github.com/ent0n29/agenthub/internal/store"
	"github.com/ent0n29/agenthub/internal/transport"
)

const maxPerAgent = 200

// Entry is one coalesced transcript line.
type Entry struct {
	ID        string         `json:"id"`
	Role      transport.Role `json:"role"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
}

// Service keeps transcripts per agent. Fragments of the same speaker within
// one turn are merged into a single entry. Writes to the repository happen
// in the background so the session loop never waits on storage.
type Service struct {
	repo   store.Repository
	redact bool

	mu      sync.Mutex
	entries map[string][]Entry
	open    map[string]bool

	dirty chan struct{}
	done  chan struct{}
	stop  context.CancelFunc
}

func New(ctx context.Context, repo store.Repository, redact bool) (*Service, error) {
	h := &Service{
		repo:    repo,
		redact:  redact,
		entries: map[string][]Entry{},
		open:    map[string]bool{},
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	data, ok, err := repo.Load(ctx, store.NamespaceHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &h.entries); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	var flushCtx context.Context
	flushCtx, h.stop = context.WithCancel(context.Background())
	go h.flushLoop(flushCtx)
	return h, nil
}

// AppendTranscript records a fragment in arrival order.
func (h *Service) AppendTranscript(agentID string, role transport.Role, text string) {
	if text == "" {
		return
	}
	h.mu.Lock()
	list := h.entries[agentID]
	if n := len(list); n > 0 && h.open[agentID] && list[n-1].Role == role {
		list[n-1].Text += text
	} else {
		list = append(list, Entry{ID: uuid.NewString(), Role: role, Text: text, Timestamp: time.Now().UTC()})
		if len(list) > maxPerAgent {
			list = list[len(list)-maxPerAgent:]
		}
	}
	h.entries[agentID] = list
	h.open[agentID] = true
	h.mu.Unlock()
	h.markDirty()
}

// EndTurn closes the current turn; the next fragment starts a new entry.
func (h *Service) EndTurn(agentID string) {
	h.mu.Lock()
	delete(h.open, agentID)
	h.mu.Unlock()
}

func (h *Service) Entries(agentID string) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exportLocked(h.entries[agentID])
}

// Clear drops an agent's history, e.g. when the agent is deleted.
func (h *Service) Clear(agentID string) {
	h.mu.Lock()
	delete(h.entries, agentID)
	delete(h.open, agentID)
	h.mu.Unlock()
	h.markDirty()
}

func (h *Service) exportLocked(list []Entry) []Entry {
	out := make([]Entry, len(list))
	copy(out, list)
	if h.redact {
		for i := range out {
			out[i].Text, _ = policy.RedactPII(out[i].Text)
		}
	}
	return out
}

func (h *Service) markDirty() {
	select {
	case h.dirty <- struct{}{}:
	default:
	}
}

// Flush writes the current snapshot synchronously.
func (h *Service) Flush(ctx context.Context) error {
	h.mu.Lock()
	snapshot := make(map[string][]Entry, len(h.entries))
	for id, list := range h.entries {
		snapshot[id] = h.exportLocked(list)
	}
	h.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := h.repo.Save(ctx, store.NamespaceHistory, data); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (h *Service) flushLoop(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.dirty:
			saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := h.Flush(saveCtx); err != nil {
				log.Printf("history: %v", err)
			}
			cancel()
		}
	}
}

// Close stops the background writer and performs a final flush.
func (h *Service) Close(ctx context.Context) error {
	h.stop()
	<-h.done
	return h.Flush(ctx)
}
