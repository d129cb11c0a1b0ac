package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// sample is one recorded operation outcome.
type sample struct {
	duration time.Duration
	failed   bool
}

// ring is a fixed-capacity sample buffer with oldest-first eviction.
type ring struct {
	samples []sample
	next    int
	full    bool
	alerted bool
}

func (r *ring) add(s sample, capacity int) {
	if len(r.samples) < capacity {
		r.samples = append(r.samples, s)
		return
	}
	r.samples[r.next] = s
	r.next = (r.next + 1) % capacity
	r.full = true
}

// OpSnapshot summarizes the retained samples for one operation.
type OpSnapshot struct {
	Count     int           `json:"count"`
	ErrorRate float64       `json:"error_rate"`
	P50       time.Duration `json:"p50"`
	P95       time.Duration `json:"p95"`
	Max       time.Duration `json:"max"`
}

// PerfTracker is the process-wide performance ring buffer, bounded per
// operation name.
type PerfTracker struct {
	mu             sync.Mutex
	ops            map[string]*ring
	maxSamples     int
	alertErrorRate float64
	logger         arbor.ILogger
}

// NewPerfTracker creates a tracker retaining maxSamples per operation and
// warning when an operation's error rate reaches alertErrorRate.
func NewPerfTracker(maxSamples int, alertErrorRate float64, logger arbor.ILogger) *PerfTracker {
	if maxSamples <= 0 {
		maxSamples = 100
	}
	if alertErrorRate <= 0 {
		alertErrorRate = 0.5
	}
	return &PerfTracker{
		ops:            make(map[string]*ring),
		maxSamples:     maxSamples,
		alertErrorRate: alertErrorRate,
		logger:         logger,
	}
}

// Record stores one outcome for an operation.
func (t *PerfTracker) Record(op string, d time.Duration, err error) {
	t.mu.Lock()
	r, ok := t.ops[op]
	if !ok {
		r = &ring{}
		t.ops[op] = r
	}
	r.add(sample{duration: d, failed: err != nil}, t.maxSamples)
	rate := errorRate(r.samples)
	crossed := rate >= t.alertErrorRate && len(r.samples) >= 10 && !r.alerted
	r.alerted = rate >= t.alertErrorRate
	t.mu.Unlock()

	if crossed && t.logger != nil {
		t.logger.Warn().
			Str("operation", op).
			Float64("error_rate", rate).
			Msg("Operation error rate above alert threshold")
	}
}

// Measure times fn and records its outcome under op.
func (t *PerfTracker) Measure(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.Record(op, time.Since(start), err)
	return err
}

// Snapshot summarizes every tracked operation.
func (t *PerfTracker) Snapshot() map[string]OpSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]OpSnapshot, len(t.ops))
	for op, r := range t.ops {
		if len(r.samples) == 0 {
			continue
		}
		durations := make([]time.Duration, len(r.samples))
		for i, s := range r.samples {
			durations[i] = s.duration
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		out[op] = OpSnapshot{
			Count:     len(r.samples),
			ErrorRate: errorRate(r.samples),
			P50:       durations[len(durations)/2],
			P95:       durations[percentileIndex(len(durations), 0.95)],
			Max:       durations[len(durations)-1],
		}
	}
	return out
}

func errorRate(samples []sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	failed := 0
	for _, s := range samples {
		if s.failed {
			failed++
		}
	}
	return float64(failed) / float64(len(samples))
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
