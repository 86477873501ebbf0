package loadgen

import (
	"context"
	"math/rand"

	"github.com/assetnote/n1qlback/pkg/corpus"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/time/rate"
)

// worker issues its own shuffled copy of the corpus sequentially, one request in flight at a time
type worker struct {
	id      int
	queries []corpus.Query
	next    int
	rng     *rand.Rand

	backend Backend
	config  *Config
	limiter *rate.Limiter

	issued int
}

func newWorker(id int, queries []corpus.Query, backend Backend, config *Config, limiter *rate.Limiter, seed int64) *worker {
	rng := rand.New(rand.NewSource(seed))
	return &worker{
		id:      id,
		queries: corpus.Shuffle(queries, rng),
		rng:     rng,
		backend: backend,
		config:  config,
		limiter: limiter,
	}
}

// nextQuery returns the next query in the worker's order, wrapping to the start once the copy is
// exhausted
func (w *worker) nextQuery() corpus.Query {
	if w.next == len(w.queries) {
		w.next = 0
		if w.config.Reshuffle {
			w.rng.Shuffle(len(w.queries), func(i, j int) {
				w.queries[i], w.queries[j] = w.queries[j], w.queries[i]
			})
		}
	}
	q := w.queries[w.next]
	w.next++
	return q
}

// run loops until ctx is cancelled or MaxQueries have been issued. Cancellation is only observed
// between requests
func (w *worker) run(ctx context.Context) error {
	log.Debug().Int("worker", w.id).Int("queries", len(w.queries)).Msg("worker starting")
	defer func() {
		log.Debug().Int("worker", w.id).Int("issued", w.issued).Msg("worker exiting")
	}()

	for w.config.MaxQueries == 0 || w.issued < w.config.MaxQueries {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Wait fails early when the deadline would pass before a token is available
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		w.cycle(w.nextQuery())
	}
	return nil
}

// cycle issues q and blocks until its terminal response has been accounted
func (w *worker) cycle(q corpus.Query) {
	w.issued++
	rc := acquireRequestContext(w.config.Metrics)
	defer releaseRequestContext(rc)

	if err := w.backend.Issue(q, rc, handleResponse); err != nil {
		log.Debug().Err(err).Int("worker", w.id).Msg("failed to issue query")
		w.logError("failed to issue query: "+err.Error(), q.Payload, nil)
		return
	}
	<-rc.done

	if rc.err != nil {
		log.Debug().Err(rc.err).Int("worker", w.id).Int("status", rc.statusCode).Msg("query failed")
		w.logError(rc.err.Error(), q.Payload, rc.body)
		return
	}
	w.config.Metrics.RecordQuery(rc.rows)
}

// logError counts one failed request and writes it to the error log when one is configured.
// The record context is the payload followed by the partial response body, if any
func (w *worker) logError(description string, payload []byte, body []byte) {
	if w.config.ErrorLog == nil {
		w.config.Metrics.RecordError(1)
		return
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = append(buf.B, payload...)
	if len(body) > 0 {
		buf.B = append(buf.B, '\n')
		buf.B = append(buf.B, body...)
	}
	if _, err := w.config.ErrorLog.Log(description, buf.B); err != nil {
		log.Error().Err(err).Int("worker", w.id).Msg("failed to write error log")
	}
}
