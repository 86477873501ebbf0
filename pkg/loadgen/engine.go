package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assetnote/n1qlback/pkg/corpus"
	"github.com/assetnote/n1qlback/pkg/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrNoQueries is returned by Run when the engine has an empty corpus
var ErrNoQueries = errors.New("no queries to run")

// Engine runs a fixed pool of workers over a read-only corpus against a single backend.
// The options are non-configurable after instantiation as modifying the config during Run may
// lead to non-deterministic behaviour
type Engine struct {
	config  *Config
	queries []corpus.Query
	backend Backend
}

// NewEngine will create an engine for the corpus and backend with the provided options
func NewEngine(queries []corpus.Query, backend Backend, opts ...ConfigOption) *Engine {
	e := &Engine{
		config:  NewDefaultConfig(),
		queries: queries,
		backend: backend,
	}
	for _, o := range opts {
		o(e.config)
	}
	return e
}

// Config returns the config for the engine
func (e *Engine) Config() *Config {
	return e.config
}

// Run probes the backend then starts the workers and blocks until all of them have exited. With
// MaxQueries unset this only happens once ctx is cancelled. A failed probe returns before any
// worker starts
func (e *Engine) Run(ctx context.Context) error {
	if err := e.config.Validate(); err != nil {
		return fmt.Errorf("failed to start. invalid settings: %w", err)
	}
	if len(e.queries) == 0 {
		return ErrNoQueries
	}

	if err := e.backend.Probe(ctx); err != nil {
		return fmt.Errorf("backend probe failed: %w", err)
	}

	var limiter *rate.Limiter
	if e.config.RateLimit > 0 {
		burst := int(e.config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(e.config.RateLimit), burst)
	}

	seed := e.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Debug().Int("workers", e.config.Workers).Int("queries", len(e.queries)).Int64("seed", seed).Msg("starting workers")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.config.Workers; i++ {
		w := newWorker(i, e.queries, e.backend, e.config, limiter, seed+int64(i))
		g.Go(func() error {
			return w.run(gctx)
		})
	}

	stop := make(chan struct{})
	if e.config.ReportInterval > 0 {
		go e.tick(stop)
	}
	err := g.Wait()
	close(stop)
	return err
}

// tick asks the metrics to report so the console keeps updating while every worker is waiting
// on a slow request
func (e *Engine) tick(stop chan struct{}) {
	t := time.NewTicker(e.config.ReportInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			e.config.Metrics.MaybeReport()
		}
	}
}
