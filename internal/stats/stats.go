// Package stats keeps rolling-window latency figures for batch runs.
package stats

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	duration time.Duration
	items    int
}

// Snapshot is a point-in-time aggregate of the samples still in the window.
type Snapshot struct {
	Count int     `json:"count"`
	Items int     `json:"items"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Window tracks recent run durations within a rolling window.
type Window struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one run that took d and produced items results.
func (w *Window) Record(d time.Duration, items int) {
	if d < 0 {
		d = 0
	}
	if items < 0 {
		items = 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)
	w.samples = append(w.samples, sample{at: now, duration: d, items: items})
}

func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.now())
	if len(w.samples) == 0 {
		return Snapshot{}
	}

	values := make([]int64, 0, len(w.samples))
	var sum int64
	items := 0
	for _, s := range w.samples {
		ms := s.duration.Milliseconds()
		values = append(values, ms)
		sum += ms
		items += s.items
	}
	slices.Sort(values)

	return Snapshot{
		Count: len(values),
		Items: items,
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	keep := 0
	for _, s := range w.samples {
		if !s.at.Before(cutoff) {
			w.samples[keep] = s
			keep++
		}
	}
	w.samples = w.samples[:keep]
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}

// Recorder keeps one Window per batch mode. Windows are created on first use.
type Recorder struct {
	mu      sync.Mutex
	maxAge  time.Duration
	windows map[string]*Window
}

func NewRecorder(maxAge time.Duration) *Recorder {
	return &Recorder{maxAge: maxAge, windows: make(map[string]*Window)}
}

func (r *Recorder) Record(mode string, d time.Duration, items int) {
	r.window(mode).Record(d, items)
}

func (r *Recorder) window(mode string) *Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[mode]
	if !ok {
		w = NewWindow(r.maxAge)
		r.windows[mode] = w
	}
	return w
}

// Snapshot returns a snapshot per mode seen so far.
func (r *Recorder) Snapshot() map[string]Snapshot {
	r.mu.Lock()
	modes := make([]string, 0, len(r.windows))
	for m := range r.windows {
		modes = append(modes, m)
	}
	r.mu.Unlock()

	out := make(map[string]Snapshot, len(modes))
	for _, m := range modes {
		out[m] = r.window(m).Snapshot()
	}
	return out
}
