package resilience

import (
	"sort"
	"sync"
	"time"
)

const (
	// maxConsecutiveFailures is the streak length beyond which a provider is
	// reported unhealthy regardless of its overall success rate.
	maxConsecutiveFailures = 3

	// minAttemptsForRate is the number of recorded attempts required before
	// the success rate participates in the health verdict. Below it a poor
	// rate is treated as noise.
	minAttemptsForRate = 10

	// minHealthyRate is the success-rate floor (percent) once enough attempts
	// have accumulated.
	minHealthyRate = 70.0
)

// ProviderStatus is a point-in-time snapshot of one provider's health record.
// It is the JSON shape served by the providers health endpoint.
type ProviderStatus struct {
	Name                string    `json:"name"`
	Healthy             bool      `json:"healthy"`
	Successes           int64     `json:"successes"`
	Failures            int64     `json:"failures"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
	SuccessRate         float64   `json:"success_rate"`
	AvgLatencyMs        float64   `json:"avg_latency_ms"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
}

// providerRecord accumulates outcome statistics for one provider. Each record
// carries its own mutex so concurrent requests to different providers do not
// contend.
type providerRecord struct {
	mu sync.Mutex

	name         string
	order        int // registration order, final tie-break
	successes    int64
	failures     int64
	consecutive  int64
	avgLatencyMs float64
	lastSuccess  time.Time
	lastFailure  time.Time
}

// successRate returns the percentage of successful attempts. A record with no
// attempts reports 100 so fresh providers start at full priority.
func (r *providerRecord) successRate() float64 {
	total := r.successes + r.failures
	if total == 0 {
		return 100.0
	}
	return float64(r.successes) / float64(total) * 100.0
}

// healthy reports whether the record passes both health gates: no long failure
// streak, and an acceptable success rate once enough attempts are on record.
func (r *providerRecord) healthy() bool {
	if r.consecutive > maxConsecutiveFailures {
		return false
	}
	if r.successes+r.failures >= minAttemptsForRate && r.successRate() < minHealthyRate {
		return false
	}
	return true
}

// snapshot copies the record into a ProviderStatus under the record's lock.
func (r *providerRecord) snapshot() ProviderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ProviderStatus{
		Name:                r.name,
		Healthy:             r.healthy(),
		Successes:           r.successes,
		Failures:            r.failures,
		ConsecutiveFailures: r.consecutive,
		SuccessRate:         r.successRate(),
		AvgLatencyMs:        r.avgLatencyMs,
		LastSuccess:         r.lastSuccess,
		LastFailure:         r.lastFailure,
	}
}

// Tracker keeps per-provider health records and derives a priority order from
// them. It is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*providerRecord
	names   []string // registration order
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]*providerRecord)}
}

// Register adds a provider to the tracker. Registering the same name twice is
// a no-op; the existing record and its statistics are kept.
func (t *Tracker) Register(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[name]; ok {
		return
	}
	t.records[name] = &providerRecord{name: name, order: len(t.names)}
	t.names = append(t.names, name)
}

// record returns the named record, or nil if the provider was never registered.
func (t *Tracker) record(name string) *providerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.records[name]
}

// RecordSuccess records a successful synthesis and folds latency into the
// record's running average. The average is a two-point blend: the first sample
// is taken as-is, every later one is averaged with the previous value so
// recent behaviour dominates.
func (t *Tracker) RecordSuccess(name string, latency time.Duration) {
	r := t.record(name)
	if r == nil {
		return
	}
	ms := float64(latency) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
	r.consecutive = 0
	r.lastSuccess = time.Now()
	if r.avgLatencyMs == 0 {
		r.avgLatencyMs = ms
	} else {
		r.avgLatencyMs = (r.avgLatencyMs + ms) / 2
	}
}

// RecordFailure records a failed synthesis attempt.
func (t *Tracker) RecordFailure(name string) {
	r := t.record(name)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	r.consecutive++
	r.lastFailure = time.Now()
}

// Healthy reports whether the named provider currently passes its health
// gates. Unknown providers report false.
func (t *Tracker) Healthy(name string) bool {
	r := t.record(name)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthy()
}

// Snapshot returns the status of every registered provider in registration
// order.
func (t *Tracker) Snapshot() []ProviderStatus {
	t.mu.RLock()
	names := make([]string, len(t.names))
	copy(names, t.names)
	t.mu.RUnlock()

	statuses := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		if r := t.record(name); r != nil {
			statuses = append(statuses, r.snapshot())
		}
	}
	return statuses
}

// PriorityOrder returns provider names best-first: healthy before unhealthy,
// then higher success rate, then shorter failure streak, then the preferred
// provider, then registration order. The sort is recomputed from live
// statistics on every call.
func (t *Tracker) PriorityOrder(preferred string) []string {
	t.mu.RLock()
	recs := make([]*providerRecord, 0, len(t.names))
	for _, name := range t.names {
		recs = append(recs, t.records[name])
	}
	t.mu.RUnlock()

	type ranked struct {
		name        string
		order       int
		healthy     bool
		rate        float64
		consecutive int64
	}
	rankings := make([]ranked, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		rankings = append(rankings, ranked{
			name:        r.name,
			order:       r.order,
			healthy:     r.healthy(),
			rate:        r.successRate(),
			consecutive: r.consecutive,
		})
		r.mu.Unlock()
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if a.healthy != b.healthy {
			return a.healthy
		}
		if a.rate != b.rate {
			return a.rate > b.rate
		}
		if a.consecutive != b.consecutive {
			return a.consecutive < b.consecutive
		}
		if (a.name == preferred) != (b.name == preferred) {
			return a.name == preferred
		}
		return a.order < b.order
	})

	names := make([]string, len(rankings))
	for i, r := range rankings {
		names[i] = r.name
	}
	return names
}
