/*
Package n1qlback provides a load generator for the N1QL query service.

There are no exports in the root package.

CLI tools part of `cmd/` include:
	- n1qlback - replays a file of queries against a cluster with N concurrent threads
	- testServer - a simulated query service that can be freely modified for testing the behaviour of n1qlback
*/
package n1qlback
