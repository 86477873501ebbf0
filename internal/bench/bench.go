package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/assetnote/n1qlback/pkg/corpus"
	"github.com/assetnote/n1qlback/pkg/errlog"
	errors2 "github.com/assetnote/n1qlback/pkg/errors"
	"github.com/assetnote/n1qlback/pkg/http"
	"github.com/assetnote/n1qlback/pkg/loadgen"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/assetnote/n1qlback/pkg/metrics"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/ksuid"
)

// Backend is what RunFile drives. *http.Client satisfies this
type Backend = loadgen.Backend

// BackendFactory builds the backend for the run. Tests replace it to avoid the network
type BackendFactory func(config http.Config) Backend

// DefaultBackend returns the fasthttp query service client
func DefaultBackend(config http.Config) Backend {
	return http.NewClient(config)
}

// LoadQueries loads the corpus in filename. Malformed lines are logged as warnings and skipped.
// An empty corpus is an error
func LoadQueries(filename string, showProgress bool) ([]corpus.Query, error) {
	queries, err := corpus.LoadFile(filename, showProgress)
	if err != nil {
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			return nil, err
		}
		errors2.PrintError(err, 0)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, corpus.ErrEmptyCorpus)
	}

	ev := log.Info().Str("file", filename).Str("queries", humanize.Comma(int64(len(queries))))
	if st, err := os.Stat(filename); err == nil {
		ev = ev.Str("size", humanize.Bytes(uint64(st.Size())))
	}
	ev.Msgf("loaded %d queries from %s", len(queries), filename)
	return queries, nil
}

// RunFile replays the corpus in filename against the cluster until ctx is cancelled
func RunFile(ctx context.Context, filename string, opts ...RunOption) error {
	return RunFileWithBackend(ctx, filename, DefaultBackend, opts...)
}

// RunFileWithBackend is RunFile with the backend built by newBackend
func RunFileWithBackend(ctx context.Context, filename string, newBackend BackendFactory, opts ...RunOption) error {
	start := time.Now()
	s := NewDefaultRunOptions()
	for _, o := range opts {
		if err := o(s); err != nil {
			return fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	queries, err := LoadQueries(filename, s.ShowProgress)
	if err != nil {
		return err
	}

	agg := metrics.New(
		metrics.WithReporter(metrics.NewConsole(s.Output, consoleTicker(s))),
		metrics.WithTimings(s.Timings),
	)

	lopts := append(s.LoadgenOptions(), loadgen.WithMetrics(agg))
	if s.ErrorLog != "" {
		sink, err := errlog.Open(s.ErrorLog, agg)
		if err != nil {
			return err
		}
		defer sink.Close()
		log.Info().Str("file", s.ErrorLog).Msgf("errors will be logged in %s", s.ErrorLog)
		lopts = append(lopts, loadgen.WithErrorLog(sink))
	}

	runID := ksuid.New()
	printSettings(os.Stderr, runID, filename, queries, s)

	e := loadgen.NewEngine(queries, newBackend(s.ClientConfig()), lopts...)
	if err := e.Run(ctx); err != nil {
		return err
	}

	p := agg.Pending()
	log.Info().
		Str("run-id", runID.String()).
		Uint64("errors", p.Errors).
		Dur("duration", time.Since(start)).
		Msg("run complete")
	return nil
}

// consoleTicker decides whether the metrics block is redrawn in place
func consoleTicker(s *RunOptions) bool {
	if s.NoANSI || s.Timings {
		return false
	}
	f, ok := s.Output.(*os.File)
	return ok && metrics.IsTerminal(f)
}

func printSettings(w io.Writer, runID ksuid.KSUID, filename string, queries []corpus.Query, s *RunOptions) {
	prepared := 0
	for _, q := range queries {
		if q.Prepare {
			prepared++
		}
	}
	fields := map[string]interface{}{
		"run-id":       runID.String(),
		"query-file":   filename,
		"queries":      humanize.Comma(int64(len(queries))),
		"num-threads":  s.Workers,
		"hosts":        s.Hosts,
		"timeout":      s.Timeout,
		"tls":          s.TLS,
		"timings":      s.Timings,
		"reshuffle":    s.Reshuffle,
		"max-conns":    s.MaxConnsPerNode,
		"rate-limit":   "unlimited",
		"max-queries":  "unlimited",
		"prepared":     humanize.Comma(int64(prepared)),
		"error-log":    "disabled",
		"console-mode": "append",
	}
	if s.RateLimit > 0 {
		fields["rate-limit"] = humanize.Ftoa(s.RateLimit) + "/s"
	}
	if s.MaxQueries > 0 {
		fields["max-queries"] = humanize.Comma(int64(s.MaxQueries))
	}
	if s.ErrorLog != "" {
		fields["error-log"] = s.ErrorLog
	}
	if s.Username != "" {
		fields["username"] = s.Username
	}
	if s.Seed != 0 {
		fields["seed"] = s.Seed
	}
	if consoleTicker(s) {
		fields["console-mode"] = "ticker"
	}
	if len(s.Headers) > 0 {
		ret := make([]string, 0, len(s.Headers))
		for _, v := range s.Headers {
			ret = append(ret, v.String())
		}
		fields["headers"] = ret
	}

	switch log.GetLogFormat() {
	case log.JSON:
		log.Info().Fields(fields).Msg("run options")
	case log.Text:
		fallthrough
	case log.Pretty:
		fallthrough
	default:
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"setting", "value"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetAutoWrapText(false)
		table.SetAutoFormatHeaders(true)

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, v := range keys {
			table.Append([]string{v, fmt.Sprintf("%v", fields[v])})
		}
		fmt.Fprintf(w, "\n")
		table.Render()
		fmt.Fprintf(w, "\n")
	}
}

// Probe fetches the cluster map and reports the query nodes without issuing any query
func Probe(ctx context.Context, opts ...RunOption) ([]*http.Node, error) {
	s := NewDefaultRunOptions()
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	c := http.NewClient(s.ClientConfig())
	if err := c.Probe(ctx); err != nil {
		return nil, err
	}
	nodes := c.Nodes()
	for _, n := range nodes {
		log.Info().Str("node", n.String()).Bool("tls", n.IsTLS).Msg("query node")
	}
	return nodes, nil
}
