package loadgen

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/assetnote/n1qlback/pkg/corpus"
	"github.com/assetnote/n1qlback/pkg/errlog"
	"github.com/assetnote/n1qlback/pkg/http"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/assetnote/n1qlback/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers every query from a new goroutine with rows intermediate responses followed by
// a terminal response
type fakeBackend struct {
	probeErr error
	issueErr error
	latency  time.Duration
	rows     int
	fail     error
	failBody []byte

	mu     sync.Mutex
	counts map[string]int
	issued int64
}

func (b *fakeBackend) Probe(ctx context.Context) error {
	return b.probeErr
}

func (b *fakeBackend) Issue(q corpus.Query, cookie interface{}, cb http.Callback) error {
	atomic.AddInt64(&b.issued, 1)
	if b.issueErr != nil {
		return b.issueErr
	}
	b.mu.Lock()
	if b.counts == nil {
		b.counts = make(map[string]int)
	}
	b.counts[string(q.Payload)]++
	b.mu.Unlock()

	go func() {
		if b.latency > 0 {
			time.Sleep(b.latency)
		}
		for i := 0; i < b.rows; i++ {
			cb(&http.Response{Row: []byte(`{"a":1}`), StatusCode: 200, Cookie: cookie})
		}
		final := &http.Response{Final: true, StatusCode: 200, Status: "success", Cookie: cookie}
		if b.fail != nil {
			final.StatusCode = 503
			final.Status = "busy"
			final.Err = b.fail
			final.Body = b.failBody
		}
		cb(final)
	}()
	return nil
}

func (b *fakeBackend) Issued() int64 {
	return atomic.LoadInt64(&b.issued)
}

// countingMetrics counts every call
type countingMetrics struct {
	rows      uint64
	queries   uint64
	errors    uint64
	latencies uint64
}

func (m *countingMetrics) RecordQuery(rows uint64) {
	atomic.AddUint64(&m.rows, rows)
	atomic.AddUint64(&m.queries, 1)
}

func (m *countingMetrics) RecordError(n uint64) uint64 {
	return atomic.AddUint64(&m.errors, n)
}

func (m *countingMetrics) RecordLatency(d time.Duration) {
	atomic.AddUint64(&m.latencies, 1)
}

func (m *countingMetrics) MaybeReport() bool {
	return false
}

type recorder struct {
	mu    sync.Mutex
	snaps []metrics.Snapshot
}

func (r *recorder) Report(s metrics.Snapshot, h *metrics.Histogram) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) Snapshots() []metrics.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.Snapshot{}, r.snaps...)
}

func queries(payloads ...string) []corpus.Query {
	ret := make([]corpus.Query, 0, len(payloads))
	for _, p := range payloads {
		ret = append(ret, corpus.Query{Payload: []byte(p)})
	}
	return ret
}

func TestEngine_LatencyRecordedOnce(t *testing.T) {
	var (
		m = &countingMetrics{}
		b = &fakeBackend{rows: 3}
		e = NewEngine(queries(`{"statement":"Q1"}`), b, WithMetrics(m), MaxQueries(1), ReportInterval(0))
	)
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, uint64(1), m.latencies)
	assert.Equal(t, uint64(3), m.rows)
	assert.Equal(t, uint64(1), m.queries)
	assert.Equal(t, uint64(0), m.errors)
}

func TestEngine_WorkerExitLogsIssued(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(ioutil.Discard)
	require.NoError(t, log.SetLevelString("debug"))
	defer log.SetLevelString("info")

	e := NewEngine(queries(`{"statement":"Q1"}`), &fakeBackend{rows: 1},
		WithMetrics(&countingMetrics{}),
		MaxQueries(3),
		ReportInterval(0),
	)
	require.NoError(t, e.Run(context.Background()))

	var exit string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "worker exiting") {
			exit = line
		}
	}
	require.NotEmpty(t, exit)
	assert.Contains(t, exit, `"issued":3`)
}

func TestEngine_CorpusReplay(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		k         int
		m         int
		reshuffle bool
	}{
		{"single pass", 1, 5, 5, false},
		{"wraparound", 1, 5, 23, false},
		{"wraparound reshuffle", 1, 7, 50, true},
		{"multiple workers", 4, 6, 31, false},
		{"corpus larger than run", 2, 10, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payloads := make([]string, tt.k)
			for i := range payloads {
				payloads[i] = `{"statement":"Q` + strconv.Itoa(i) + `"}`
			}
			var (
				m = &countingMetrics{}
				b = &fakeBackend{}
				e = NewEngine(queries(payloads...), b,
					WithMetrics(m),
					Workers(tt.workers),
					MaxQueries(tt.m),
					Reshuffle(tt.reshuffle),
					Seed(42),
					ReportInterval(0),
				)
			)
			require.NoError(t, e.Run(context.Background()))

			assert.Equal(t, int64(tt.workers*tt.m), b.Issued())
			assert.Equal(t, uint64(tt.workers*tt.m), m.queries)
			min := tt.workers * (tt.m / tt.k)
			for _, p := range payloads {
				assert.GreaterOrEqual(t, b.counts[p], min, p)
			}
		})
	}
}

func TestWorker_FixedOrderAcrossPasses(t *testing.T) {
	config := NewDefaultConfig()
	w := newWorker(0, queries("a", "b", "c", "d", "e", "f"), &fakeBackend{}, config, nil, 7)

	var first, second []string
	for i := 0; i < 6; i++ {
		first = append(first, string(w.nextQuery().Payload))
	}
	for i := 0; i < 6; i++ {
		second = append(second, string(w.nextQuery().Payload))
	}
	assert.Equal(t, first, second)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f"}, first)
}

func TestEngine_FailureScenario(t *testing.T) {
	var (
		buf  bytes.Buffer
		agg  = metrics.New(metrics.WithReporter(&recorder{}))
		sink = errlog.New(&buf, agg)
		b    = &fakeBackend{
			rows:     1,
			fail:     &http.QueryError{StatusCode: 503, Status: "busy"},
			failBody: []byte(`{"status":"busy"}`),
		}
		workers = 3
		perW    = 10
		n       = workers * perW
		e       = NewEngine(queries(`{"statement":"Q1"}`), b,
			WithMetrics(agg),
			WithErrorLog(sink),
			Workers(workers),
			MaxQueries(perW),
			ReportInterval(0),
		)
	)
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, uint64(n), agg.ErrorCount())
	assert.Equal(t, uint64(n), sink.Count())
	assert.Equal(t, uint64(0), agg.Pending().Queries)

	header := regexp.MustCompile(`^\[(\d+)\] (.*)$`)
	var (
		seqs     []uint64
		payloads int
	)
	out := buf.String()
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		line := s.Text()
		if m := header.FindStringSubmatch(line); m != nil {
			seq, err := strconv.ParseUint(m[1], 10, 64)
			require.NoError(t, err)
			seqs = append(seqs, seq)
			assert.Equal(t, "busy", m[2])
			continue
		}
		if strings.Contains(line, "Q1") {
			payloads++
		}
	}
	require.Len(t, seqs, n)
	for i, seq := range seqs {
		assert.Equal(t, uint64(i+1), seq)
	}
	assert.Equal(t, n, payloads)
	assert.Equal(t, n, strings.Count(out, `{"status":"busy"}`))
}

func TestEngine_SynchronousIssueFailure(t *testing.T) {
	var (
		buf  bytes.Buffer
		agg  = metrics.New(metrics.WithReporter(&recorder{}), metrics.WithTimings(true))
		sink = errlog.New(&buf, agg)
		b    = &fakeBackend{issueErr: errors.New("no connection")}
		e    = NewEngine(queries(`{"statement":"Q1"}`), b,
			WithMetrics(agg),
			WithErrorLog(sink),
			MaxQueries(5),
			ReportInterval(0),
		)
	)
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, int64(5), b.Issued())
	assert.Equal(t, uint64(5), agg.ErrorCount())
	assert.Contains(t, buf.String(), "[1] failed to issue query: no connection\n{\"statement\":\"Q1\"}\n")
	assert.Contains(t, buf.String(), "[5] failed to issue query: no connection\n")
}

func TestEngine_ErrorsWithoutErrorLog(t *testing.T) {
	var (
		m = &countingMetrics{}
		b = &fakeBackend{fail: errors.New("busy")}
		e = NewEngine(queries(`{"statement":"Q1"}`), b, WithMetrics(m), Workers(2), MaxQueries(4), ReportInterval(0))
	)
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(8), m.errors)
	assert.Equal(t, uint64(0), m.queries)
	assert.Equal(t, uint64(8), m.latencies)
}

func TestEngine_ProbeFailureAborts(t *testing.T) {
	var (
		m = &countingMetrics{}
		b = &fakeBackend{probeErr: http.ErrNoQueryService}
		e = NewEngine(queries(`{"statement":"Q1"}`), b, WithMetrics(m), Workers(4))
	)
	err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, http.ErrNoQueryService))
	assert.Equal(t, int64(0), b.Issued())
}

func TestEngine_BadConfig(t *testing.T) {
	tests := []struct {
		name   string
		opts   []ConfigOption
		fields string
	}{
		{"no workers", []ConfigOption{WithMetrics(&countingMetrics{}), Workers(0)}, "Workers"},
		{"no metrics", nil, "Metrics"},
		{"negative rate", []ConfigOption{WithMetrics(&countingMetrics{}), RateLimit(-1)}, "RateLimit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			err := NewEngine(queries("Q1"), b, tt.opts...).Run(context.Background())
			var bad *ErrBadConfig
			require.True(t, errors.As(err, &bad))
			assert.Contains(t, bad.Error(), tt.fields)
			assert.Equal(t, int64(0), b.Issued())
		})
	}

	err := NewEngine(nil, &fakeBackend{}, WithMetrics(&countingMetrics{})).Run(context.Background())
	assert.Equal(t, ErrNoQueries, err)
}

func TestEngine_CancelStopsWorkers(t *testing.T) {
	var (
		m           = &countingMetrics{}
		b           = &fakeBackend{latency: time.Millisecond}
		e           = NewEngine(queries("Q1", "Q2"), b, WithMetrics(m), Workers(3))
		ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- e.Run(ctx)
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
	assert.Greater(t, b.Issued(), int64(0))
	// every issued query completed before its worker exited
	assert.Equal(t, uint64(b.Issued()), atomic.LoadUint64(&m.queries))
}

func TestEngine_RateLimit(t *testing.T) {
	var (
		m           = &countingMetrics{}
		b           = &fakeBackend{}
		e           = NewEngine(queries("Q1"), b, WithMetrics(m), Workers(4), RateLimit(20))
		ctx, cancel = context.WithTimeout(context.Background(), 250*time.Millisecond)
	)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	// burst of 20 plus 20/s for 250ms
	assert.LessOrEqual(t, b.Issued(), int64(30))
	assert.GreaterOrEqual(t, b.Issued(), int64(20))
}

func TestEngine_EndToEnd(t *testing.T) {
	var (
		rec         = &recorder{}
		agg         = metrics.New(metrics.WithReporter(rec))
		b           = &fakeBackend{rows: 1, latency: 10 * time.Millisecond}
		e           = NewEngine(queries(`{"statement":"Q1"}`), b, WithMetrics(agg), Workers(2))
		ctx, cancel = context.WithTimeout(context.Background(), 1300*time.Millisecond)
	)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	snaps := rec.Snapshots()
	require.NotEmpty(t, snaps)
	first := snaps[0]
	// 2 workers at 10ms each peak at 200/s. leave room for scheduler overhead
	assert.InDelta(t, 150, float64(first.QueriesPerSec()), 100)
	assert.Equal(t, first.QueriesPerSec(), first.RowsPerSec())
	assert.Equal(t, uint64(0), first.Errors)
}
