/*
Package context wraps the native context package with a process wide context that is cancelled
on SIGINT or SIGTERM.

The load generator loops forever, so this is the only way a run ends short of killing the process.
The first signal cancels the context and every worker returns once its in-flight query has
completed. A second signal exits immediately.

	import "github.com/assetnote/n1qlback/pkg/context"

	...

	if err := bench.RunFile(context.Context(), queryFile, opts...); err != nil {
		log.Fatal().Err(err).Msg("failed to run")
	}
*/
package context
