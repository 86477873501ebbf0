/*
Package testServer provides a fasthttp server that emulates a single node cluster running the query
service.

It serves the cluster map at /pools/default/nodeServices, advertising the query service on its own
port, and answers /query/service with generated rows. PREPARE statements are supported and prepared
names are remembered for the lifetime of the process. Latency, rows per query and a failure ratio are
configurable so the behaviour of n1qlback under slow or failing queries can be observed.

The server is used for testing, and should not be used in a production environment.

Usage

	go run ./cmd/testServer -p 8091 -latency 5ms -rows 10 -fail 0.01
	n1qlback run -f queries.json -U localhost:8091 -t 8
*/
package main
