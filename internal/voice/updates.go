package voice

import (
	"sync"

	"github.com/ent0n29/agenthub/internal/tools"
	"github.com/ent0n29/agenthub/internal/transport"
	"github.com/ent0n29/agenthub/internal/visualizer"
)

type UpdateType string

const (
	UpdateState       UpdateType = "state"
	UpdateTranscript  UpdateType = "transcript"
	UpdateToolCall    UpdateType = "tool_call"
	UpdateToolResult  UpdateType = "tool_result"
	UpdateInterrupted UpdateType = "interrupted"
	UpdateFrame       UpdateType = "frame"
)

// Update is pushed to dashboard subscribers as the session progresses.
type Update struct {
	Type       UpdateType        `json:"type"`
	State      *Snapshot         `json:"state,omitempty"`
	Role       transport.Role    `json:"role,omitempty"`
	Text       string            `json:"text,omitempty"`
	ToolCall   *tools.Call       `json:"tool_call,omitempty"`
	ToolResult *tools.Response   `json:"tool_result,omitempty"`
	Frame      *visualizer.Frame `json:"frame,omitempty"`
}

const updateBuffer = 256

type fanout struct {
	mu   sync.RWMutex
	subs map[int]chan Update
	next int
}

func (f *fanout) subscribe() (<-chan Update, func()) {
	ch := make(chan Update, updateBuffer)
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]chan Update)
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a subscriber that falls behind loses updates.
func (f *fanout) publish(u Update) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
