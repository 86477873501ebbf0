package metrics

import (
	"os"
	"sync"
	"time"
)

// DefaultInterval is the minimum time between two reports
const DefaultInterval = time.Second

// Snapshot is the content of a single report
type Snapshot struct {
	Elapsed  time.Duration // Elapsed is the time since the aggregator was created
	Interval time.Duration // Interval is the time since the previous report
	Rows     uint64        // Rows received since the previous report
	Queries  uint64        // Queries completed since the previous report
	Errors   uint64        // Errors is cumulative and never reset
}

// QueriesPerSec is Queries divided by the actual interval, truncated
func (s Snapshot) QueriesPerSec() uint64 {
	return perSec(s.Queries, s.Interval)
}

// RowsPerSec is Rows divided by the actual interval, truncated
func (s Snapshot) RowsPerSec() uint64 {
	return perSec(s.Rows, s.Interval)
}

func perSec(n uint64, d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(float64(n) / d.Seconds())
}

// Reporter receives every report. Report is called with the aggregator lock held and must not
// call back into the aggregator. h is nil unless timings are enabled
type Reporter interface {
	Report(s Snapshot, h *Histogram)
}

// Aggregator is the lock protected set of counters shared by all workers
type Aggregator struct {
	mu sync.Mutex

	rows    uint64
	queries uint64
	errors  uint64

	start    time.Time
	last     time.Time
	interval time.Duration

	hist     *Histogram
	reporter Reporter
	now      func() time.Time
}

type Option func(*Aggregator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithInterval changes the minimum time between two reports
func WithInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithReporter replaces the default stdout console
func WithReporter(r Reporter) Option {
	return func(a *Aggregator) {
		a.reporter = r
	}
}

// WithTimings enables the latency histogram from the start
func WithTimings(enabled bool) Option {
	return func(a *Aggregator) {
		if enabled && a.hist == nil {
			a.hist = NewHistogram()
		}
	}
}

// New creates an aggregator. The interval clock starts immediately
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.reporter == nil {
		a.reporter = NewConsole(os.Stdout, IsTerminal(os.Stdout))
	}
	a.start = a.now()
	a.last = a.start
	return a
}

// EnableTimings creates the latency histogram if it does not already exist
func (a *Aggregator) EnableTimings() {
	a.mu.Lock()
	if a.hist == nil {
		a.hist = NewHistogram()
	}
	a.mu.Unlock()
}

// TimingsEnabled reports whether RecordLatency has any effect
func (a *Aggregator) TimingsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hist != nil
}

// RecordRow adds n rows
func (a *Aggregator) RecordRow(n uint64) {
	a.mu.Lock()
	a.rows += n
	a.maybeReportLocked()
	a.mu.Unlock()
}

// RecordQueryDone adds n completed queries
func (a *Aggregator) RecordQueryDone(n uint64) {
	a.mu.Lock()
	a.queries += n
	a.maybeReportLocked()
	a.mu.Unlock()
}

// RecordQuery accounts one successful query that returned rows rows. This is RecordRow followed by
// RecordQueryDone within a single critical section
func (a *Aggregator) RecordQuery(rows uint64) {
	a.mu.Lock()
	a.rows += rows
	a.queries++
	a.maybeReportLocked()
	a.mu.Unlock()
}

// RecordError adds n errors and returns the cumulative error count after the addition.
// Callers that need a unique sequence number for the error use the returned value, since reading
// ErrorCount separately may observe another worker's increment
func (a *Aggregator) RecordError(n uint64) uint64 {
	a.mu.Lock()
	a.errors += n
	ret := a.errors
	a.maybeReportLocked()
	a.mu.Unlock()
	return ret
}

// RecordLatency feeds the histogram. It is a no-op unless timings are enabled
func (a *Aggregator) RecordLatency(d time.Duration) {
	a.mu.Lock()
	if a.hist != nil {
		a.hist.Record(d)
	}
	a.mu.Unlock()
}

// ErrorCount returns the cumulative error count
func (a *Aggregator) ErrorCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errors
}

// MaybeReport emits a report if at least one interval has passed since the previous one.
// It returns whether a report was emitted
func (a *Aggregator) MaybeReport() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maybeReportLocked()
}

// Pending returns the counters accumulated since the last report without resetting them
func (a *Aggregator) Pending() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	return Snapshot{
		Elapsed:  now.Sub(a.start),
		Interval: now.Sub(a.last),
		Rows:     a.rows,
		Queries:  a.queries,
		Errors:   a.errors,
	}
}

// maybeReportLocked must be called with a.mu held
func (a *Aggregator) maybeReportLocked() bool {
	now := a.now()
	interval := now.Sub(a.last)
	if interval <= 0 || interval < a.interval {
		return false
	}

	s := Snapshot{
		Elapsed:  now.Sub(a.start),
		Interval: interval,
		Rows:     a.rows,
		Queries:  a.queries,
		Errors:   a.errors,
	}
	a.last = now
	a.rows = 0
	a.queries = 0

	a.reporter.Report(s, a.hist)
	return true
}
