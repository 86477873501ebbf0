package loadgen

import (
	"context"

	"github.com/assetnote/n1qlback/pkg/corpus"
	"github.com/assetnote/n1qlback/pkg/http"
)

// Backend executes queries asynchronously. Issue must either return an error, in which case cb is
// never called, or call cb with zero or more non final responses followed by exactly one final
// response carrying the cookie
type Backend interface {
	Issue(q corpus.Query, cookie interface{}, cb http.Callback) error
	// Probe returns an error if the backend cannot serve queries at all
	Probe(ctx context.Context) error
}

var _ Backend = &http.Client{}
