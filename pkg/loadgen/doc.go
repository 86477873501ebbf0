/*
Package loadgen replays a query corpus against a backend with a fixed number of concurrent workers.

Each worker keeps its own shuffled copy of the corpus and has at most one request in flight. The
worker issues a query, blocks until the backend delivers the terminal response, folds the outcome
into the shared Metrics and ErrorLog, then moves on to the next query, wrapping around forever.

The Engine probes the backend once before starting any worker. A failed probe aborts the run. Once
started, per-request failures are counted and logged but never stop a worker. Workers stop only
when the context passed to Run is cancelled, after their in-flight request has completed.

	e := loadgen.NewEngine(queries, client,
		loadgen.Workers(8),
		loadgen.WithMetrics(agg),
		loadgen.WithErrorLog(sink),
	)
	if err := e.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run")
	}
*/
package loadgen
