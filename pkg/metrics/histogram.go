package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/olekukonko/tablewriter"
)

const (
	minLatency = int64(1)                       // microseconds
	maxLatency = int64(10 * time.Minute / time.Microsecond)
	sigFigs    = 3
)

var quantiles = []float64{50, 75, 90, 95, 99, 99.9}

// Histogram records latencies with microsecond resolution. It is not safe for concurrent use,
// the aggregator guards it with its own lock
type Histogram struct {
	h *hdrhistogram.Histogram
}

func NewHistogram() *Histogram {
	return &Histogram{h: hdrhistogram.New(minLatency, maxLatency, sigFigs)}
}

// Record adds a single sample. Values outside the trackable range are clamped
func (h *Histogram) Record(d time.Duration) {
	v := int64(d / time.Microsecond)
	if v < minLatency {
		v = minLatency
	}
	if v > maxLatency {
		v = maxLatency
	}
	_ = h.h.RecordValue(v)
}

func (h *Histogram) Count() int64 {
	return h.h.TotalCount()
}

// Quantile returns the latency at q, with q in the range [0, 100]
func (h *Histogram) Quantile(q float64) time.Duration {
	return time.Duration(h.h.ValueAtQuantile(q)) * time.Microsecond
}

func (h *Histogram) Max() time.Duration {
	return time.Duration(h.h.Max()) * time.Microsecond
}

func (h *Histogram) Min() time.Duration {
	return time.Duration(h.h.Min()) * time.Microsecond
}

func (h *Histogram) Mean() time.Duration {
	return time.Duration(h.h.Mean()) * time.Microsecond
}

// Write renders the cumulative latency distribution as a table. Nothing is written until the
// first sample has been recorded
func (h *Histogram) Write(w io.Writer) {
	if h.Count() == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"latency", "value"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	table.Append([]string{"count", fmt.Sprintf("%d", h.Count())})
	table.Append([]string{"min", h.Min().String()})
	table.Append([]string{"mean", h.Mean().String()})
	for _, q := range quantiles {
		table.Append([]string{fmt.Sprintf("p%g", q), h.Quantile(q).String()})
	}
	table.Append([]string{"max", h.Max().String()})
	table.Render()
}
