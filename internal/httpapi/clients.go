package httpapi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/observability"
	"github.com/ent0n29/agenthub/internal/protocol"
)

const clientQueue = 256

type wsClient struct {
	id  int
	out chan protocol.ServerMessage
}

// clientSet tracks the connected dashboards. Offers never block: a client
// whose queue is full misses the message.
type clientSet struct {
	metrics *observability.Metrics

	mu      sync.RWMutex
	clients map[int]*wsClient
	next    int
}

func newClientSet(m *observability.Metrics) *clientSet {
	return &clientSet{metrics: m, clients: map[int]*wsClient{}}
}

func (cs *clientSet) add() *wsClient {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.next++
	c := &wsClient{id: cs.next, out: make(chan protocol.ServerMessage, clientQueue)}
	cs.clients[c.id] = c
	return c
}

func (cs *clientSet) remove(c *wsClient) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.clients, c.id)
}

func (cs *clientSet) count() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.clients)
}

func (cs *clientSet) offer(c *wsClient, msg protocol.ServerMessage) {
	select {
	case c.out <- msg:
		cs.metrics.OutboundMessage(string(msg.Type), "queued")
	default:
		cs.metrics.OutboundMessage(string(msg.Type), "drop_full")
	}
}

func (cs *clientSet) broadcast(msg protocol.ServerMessage) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, c := range cs.clients {
		cs.offer(c, msg)
	}
}

// audioFeed is the playback sink used when output is rendered in the
// dashboard. Silent blocks are not sent.
type audioFeed struct {
	clients *clientSet
	rate    int
	seq     atomic.Int64
}

func (f *audioFeed) Write(samples []float32) error {
	if silent(samples) || f.clients.count() == 0 {
		return nil
	}
	rate := f.rate
	if rate <= 0 {
		rate = audio.OutputSampleRate
	}
	f.clients.broadcast(protocol.ServerMessage{
		Type:        protocol.TypePlaybackAudio,
		Seq:         f.seq.Add(1),
		Format:      fmt.Sprintf("pcm16;rate=%d", rate),
		AudioBase64: audio.EncodeBase64PCM(samples),
	})
	return nil
}

func silent(samples []float32) bool {
	for _, v := range samples {
		if v != 0 {
			return false
		}
	}
	return true
}
