// Package perfmon implements the Performance Monitor & Admin (L,
// spec.md §4.12): transaction-event counters, a bounded latency
// reservoir, a sliding QPS window, and a capped slow-query log.
// Exported Prometheus counters/histograms back the same events for
// external scraping (metrics *transport* stays external per spec.md
// §1; the in-process instrumentation is ours), mirroring the
// counter/summary pairs erigon-lib registers per KV event
// (fenghaojiang-erigon-lib/kv/kv_interface.go's `metrics.NewCounter` /
// `GetOrCreateSummary` idiom).
package perfmon

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event is one transaction lifecycle signal (spec.md §4.12: "{created,
// committing, committed(dur), failed(dur), cancelled, closed}").
type Event int

const (
	EventCreated Event = iota
	EventCommitting
	EventCommitted
	EventFailed
	EventCancelled
	EventClosed
)

// Config bundles Monitor's tunables (SPEC_FULL.md §1 ambient stack:
// explicit configuration records).
type Config struct {
	ReservoirSize    int           // bounded latency sample size
	QPSWindow        time.Duration // sliding window for QPS (default 60s)
	SlowQueryLog     int           // capped circular buffer size
	SlowThreshold    time.Duration // slow-query classification threshold
}

// DefaultConfig matches spec.md §4.12's defaults ("QPS via a sliding
// timestamp window (default 60 s)").
func DefaultConfig() Config {
	return Config{
		ReservoirSize: 1000,
		QPSWindow:     60 * time.Second,
		SlowQueryLog:  200,
		SlowThreshold: 100 * time.Millisecond,
	}
}

// SlowQueryEntry is one record in the capped slow-query circular
// buffer (spec.md §4.12: "failed transactions labeled accordingly").
type SlowQueryEntry struct {
	Description string
	Duration    time.Duration
	Failed      bool
	At          time.Time
}

// Monitor aggregates transaction events under a single mutex (spec.md
// §5 "Perf monitor buffers: mutex-guarded circular buffers and
// counters").
type Monitor struct {
	cfg Config

	mu               sync.Mutex
	active           int64
	total            int64
	successful       int64
	failed           int64
	reservoir        []time.Duration // reservoir-sampled latencies
	reservoirSeen    int64
	qpsTimestamps    []time.Time // sliding window, oldest-first
	slowLog          []SlowQueryEntry
	slowLogNext      int
	slowLogFilled    bool

	promCreated    prometheus.Counter
	promCommitted  prometheus.Counter
	promFailed     prometheus.Counter
	promCancelled  prometheus.Counter
	promCommitDur  prometheus.Histogram
	promFailDur    prometheus.Histogram
}

// New returns a Monitor registered under reg (pass nil to skip
// Prometheus registration, e.g. in unit tests that construct many
// Monitors and would otherwise collide on metric names).
func New(cfg Config, reg prometheus.Registerer) *Monitor {
	if cfg.ReservoirSize <= 0 {
		cfg.ReservoirSize = 1000
	}
	if cfg.QPSWindow <= 0 {
		cfg.QPSWindow = 60 * time.Second
	}
	if cfg.SlowQueryLog <= 0 {
		cfg.SlowQueryLog = 200
	}
	m := &Monitor{
		cfg:       cfg,
		reservoir: make([]time.Duration, 0, cfg.ReservoirSize),
		slowLog:   make([]SlowQueryEntry, cfg.SlowQueryLog),

		promCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rg_txn_created_total", Help: "transactions created",
		}),
		promCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rg_txn_committed_total", Help: "transactions committed",
		}),
		promFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rg_txn_failed_total", Help: "transactions failed",
		}),
		promCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rg_txn_cancelled_total", Help: "transactions cancelled",
		}),
		promCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "rg_txn_commit_duration_seconds", Help: "committed transaction latency",
			Buckets: prometheus.DefBuckets,
		}),
		promFailDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "rg_txn_failed_duration_seconds", Help: "failed transaction latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.promCreated, m.promCommitted, m.promFailed, m.promCancelled, m.promCommitDur, m.promFailDur)
	}
	return m
}

// RecordCreated marks a new transaction as active.
func (m *Monitor) RecordCreated() {
	m.mu.Lock()
	m.active++
	m.total++
	m.mu.Unlock()
	m.promCreated.Inc()
}

// RecordCommitted records a successful commit of dur latency (spec.md
// §4.12: counters, latency reservoir, QPS window all driven by this
// event).
func (m *Monitor) RecordCommitted(dur time.Duration, description string) {
	m.mu.Lock()
	m.active--
	m.successful++
	m.sampleLocked(dur)
	m.recordQPSLocked()
	if dur >= m.cfg.SlowThreshold {
		m.recordSlowLocked(SlowQueryEntry{Description: description, Duration: dur, Failed: false, At: time.Now()})
	}
	m.mu.Unlock()
	m.promCommitted.Inc()
	m.promCommitDur.Observe(dur.Seconds())
}

// RecordFailed records a failed transaction, still labeled in the
// slow-query log when it crossed the slow threshold (spec.md §4.12:
// "failed transactions labeled accordingly").
func (m *Monitor) RecordFailed(dur time.Duration, description string) {
	m.mu.Lock()
	m.active--
	m.failed++
	if dur >= m.cfg.SlowThreshold {
		m.recordSlowLocked(SlowQueryEntry{Description: description, Duration: dur, Failed: true, At: time.Now()})
	}
	m.mu.Unlock()
	m.promFailed.Inc()
	m.promFailDur.Observe(dur.Seconds())
}

// RecordCancelled records a cancelled (never committed) transaction.
func (m *Monitor) RecordCancelled() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	m.promCancelled.Inc()
}

// sampleLocked applies reservoir sampling (spec.md §4.12: "Latency
// reservoir sample of bounded size using reservoir sampling").
func (m *Monitor) sampleLocked(dur time.Duration) {
	m.reservoirSeen++
	if len(m.reservoir) < cap(m.reservoir) {
		m.reservoir = append(m.reservoir, dur)
		return
	}
	j := rand.Int63n(m.reservoirSeen)
	if j < int64(len(m.reservoir)) {
		m.reservoir[j] = dur
	}
}

// recordQPSLocked appends now and evicts timestamps older than the
// sliding window (spec.md §4.12: "QPS via a sliding timestamp
// window").
func (m *Monitor) recordQPSLocked() {
	now := time.Now()
	m.qpsTimestamps = append(m.qpsTimestamps, now)
	cutoff := now.Add(-m.cfg.QPSWindow)
	i := 0
	for i < len(m.qpsTimestamps) && m.qpsTimestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.qpsTimestamps = append([]time.Time{}, m.qpsTimestamps[i:]...)
	}
}

// recordSlowLocked writes into the capped circular buffer (spec.md
// §4.12: "Slow-query log: capped circular buffer").
func (m *Monitor) recordSlowLocked(e SlowQueryEntry) {
	m.slowLog[m.slowLogNext] = e
	m.slowLogNext = (m.slowLogNext + 1) % len(m.slowLog)
	if m.slowLogNext == 0 {
		m.slowLogFilled = true
	}
}

// Counters is a point-in-time snapshot of the active/total/successful
// counters.
type Counters struct {
	Active, Total, Successful, Failed int64
}

func (m *Monitor) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Counters{Active: m.active, Total: m.total, Successful: m.successful, Failed: m.failed}
}

// Percentile computes p (in [0,1]) over the current reservoir sample
// by sorting it (spec.md §4.12: "percentile computation by sort on
// current sample").
func (m *Monitor) Percentile(p float64) time.Duration {
	m.mu.Lock()
	sample := append([]time.Duration{}, m.reservoir...)
	m.mu.Unlock()
	if len(sample) == 0 {
		return 0
	}
	sort.Slice(sample, func(i, j int) bool { return sample[i] < sample[j] })
	idx := int(p * float64(len(sample)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sample) {
		idx = len(sample) - 1
	}
	return sample[idx]
}

// QPS returns the transaction rate over the sliding window (spec.md
// §4.12).
func (m *Monitor) QPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.qpsTimestamps) == 0 {
		return 0
	}
	window := m.cfg.QPSWindow.Seconds()
	if window <= 0 {
		return 0
	}
	return float64(len(m.qpsTimestamps)) / window
}

// SlowQueries returns the slow-query log's current contents, oldest
// first.
func (m *Monitor) SlowQueries() []SlowQueryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.slowLogFilled {
		return append([]SlowQueryEntry{}, m.slowLog[:m.slowLogNext]...)
	}
	out := make([]SlowQueryEntry, 0, len(m.slowLog))
	out = append(out, m.slowLog[m.slowLogNext:]...)
	out = append(out, m.slowLog[:m.slowLogNext]...)
	return out
}
