/*
Package http provides the query service client used to drive load against a cluster, built on top of
the fasthttp library.

The Client discovers the nodes running the query service from the cluster map served by the bootstrap
hosts (Client.Probe), then issues each query asynchronously (Client.Issue) against a random query
node. Rows are streamed to the supplied Callback as they are decoded, followed by exactly one
terminal Response.

Responses are pooled. We recommend avoiding letting the Response escape the callback, the Row and
Body slices are reused for the next request.

A Node caches the first set of options used to build its fasthttp.HostClient. Future modifications
are ignored. All operations on a Node are thread safe to use
*/
package http
