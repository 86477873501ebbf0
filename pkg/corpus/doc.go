/*
Package corpus loads the fixed set of queries replayed by the load generator.

A corpus file holds one JSON object per line. Every object is the request body sent to the query
service, optionally carrying a "n1qlback" member with per query options:

	{"statement": "SELECT * FROM `travel-sample` LIMIT 10"}
	{"statement": "SELECT name FROM `travel-sample` WHERE type=$1", "args": ["hotel"], "n1qlback": {"prepare": true}}

The "n1qlback" member is removed before the payload is stored, the remaining members keep their
original order. Lines that are not JSON objects are skipped and reported through a multierror of
errors.LoadError, they never abort loading.

Each worker replays its own shuffled copy of the corpus, see Shuffle.
*/
package corpus
