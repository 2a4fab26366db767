package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const defaultStageSamples = 256

// Latency budgets per pipeline stage, in milliseconds.
var stageTargets = map[string]float64{
	"start_to_connected":       1500,
	"connected_to_first_audio": 1200,
	"tool_call":                250,
	"interrupt":                20,
	"fragment_decode":          5,
}

// StageStats summarises one pipeline stage over the rolling window.
type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// ring keeps the newest cap samples of one stage.
type ring struct {
	buf  []float64
	head int
	size int
	last float64
}

func (r *ring) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	r.last = v
}

func (r *ring) sorted() []float64 {
	out := append([]float64(nil), r.buf[:r.size]...)
	sort.Float64s(out)
	return out
}

func (r *ring) stats(stage string) StageStats {
	xs := r.sorted()
	return StageStats{
		Stage:       stage,
		Samples:     len(xs),
		LastMS:      round2(r.last),
		AvgMS:       round2(stat.Mean(xs, nil)),
		P50MS:       round2(stat.Quantile(0.50, stat.Empirical, xs, nil)),
		P95MS:       round2(stat.Quantile(0.95, stat.Empirical, xs, nil)),
		P99MS:       round2(stat.Quantile(0.99, stat.Empirical, xs, nil)),
		TargetP95MS: stageTargets[stage],
	}
}

type stageWindow struct {
	capacity int

	mu         sync.Mutex
	rings      map[string]*ring
	indicators map[string]int
}

func newStageWindow(capacity int) *stageWindow {
	if capacity <= 0 {
		capacity = defaultStageSamples
	}
	w := &stageWindow{capacity: capacity}
	w.clear()
	return w
}

func (w *stageWindow) clear() {
	w.rings = make(map[string]*ring)
	w.indicators = make(map[string]int)
}

func (w *stageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	w.mu.Lock()
	r := w.rings[stage]
	if r == nil {
		r = &ring{buf: make([]float64, w.capacity)}
		w.rings[stage] = r
	}
	r.push(ms)
	w.mu.Unlock()
}

func (w *stageWindow) ObserveIndicator(name string) {
	if w == nil {
		return
	}
	if name = strings.TrimSpace(name); name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

// Snapshot reports stages and indicators sorted by name.
func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.capacity,
		Stages:      make([]StageStats, 0, len(w.rings)),
	}
	for _, name := range sortedKeys(w.rings) {
		if r := w.rings[name]; r.size > 0 {
			snap.Stages = append(snap.Stages, r.stats(name))
		}
	}
	for _, name := range sortedKeys(w.indicators) {
		if n := w.indicators[name]; n > 0 {
			snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: n})
		}
	}
	return snap
}

func (w *stageWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.clear()
	w.mu.Unlock()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
