package loadgen

import (
	"sync"
	"time"

	"github.com/assetnote/n1qlback/pkg/http"
)

// RequestContext tracks one outstanding request from issue to its terminal response. It is passed
// to the backend as the cookie and updated from the backend's callback goroutine. The issuing worker
// may only read it after Done is closed
type RequestContext struct {
	Begin time.Time

	metrics  Metrics
	received bool
	rows     uint64

	err        error
	statusCode int
	body       []byte
	done       chan struct{}
}

var requestContextPool sync.Pool

func acquireRequestContext(m Metrics) *RequestContext {
	v := requestContextPool.Get()
	if v == nil {
		v = &RequestContext{}
	}
	rc := v.(*RequestContext)
	rc.metrics = m
	rc.done = make(chan struct{})
	rc.Begin = time.Now()
	return rc
}

func releaseRequestContext(rc *RequestContext) {
	rc.Begin = time.Time{}
	rc.metrics = nil
	rc.received = false
	rc.rows = 0
	rc.err = nil
	rc.statusCode = 0
	rc.body = rc.body[:0]
	rc.done = nil
	requestContextPool.Put(rc)
}

// Done is closed once the terminal response has been accounted
func (rc *RequestContext) Done() <-chan struct{} {
	return rc.done
}

// Rows is the number of rows delivered so far
func (rc *RequestContext) Rows() uint64 {
	return rc.rows
}

// Err is the error carried by the terminal response
func (rc *RequestContext) Err() error {
	return rc.err
}

// handleResponse is the callback handed to the backend for every request
func handleResponse(r *http.Response) {
	rc, ok := r.Cookie.(*RequestContext)
	if !ok {
		return
	}
	if !rc.received {
		rc.received = true
		rc.metrics.RecordLatency(time.Since(rc.Begin))
	}
	if !r.Final {
		rc.rows++
		return
	}
	rc.err = r.Err
	rc.statusCode = r.StatusCode
	rc.body = append(rc.body[:0], r.Body...)
	close(rc.done)
}
