/*
The errors package provides the error type used when loading a query corpus and the helper used to
report every skipped entry.

Malformed corpus lines never abort loading. Instead the loader collects one LoadError per line into a
multierror and returns it alongside the queries that did load. The caller decides whether to print them.

Usage

	import errors2 "github.com/assetnote/n1qlback/pkg/errors"

	...

	queries, err := corpus.LoadFile(filename)
	if err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			errors2.PrintError(merr, 0)
		} else {
			return fmt.Errorf("failed to load corpus: %w", err)
		}
	}

*/
package errors
