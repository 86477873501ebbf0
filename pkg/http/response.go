package http

import (
	"strconv"
	"strings"
	"sync"

	"github.com/francoispqt/gojay"
)

// Response is delivered to a Callback once per result row and once more with Final set when the
// request has completed. Responses are pooled and must not be retained after the callback returns.
// Row and Body alias buffers that are reused once the callback returns
type Response struct {
	// Final is set on the single terminal response for a request
	Final bool
	// Row is a single raw JSON result row. Only set on non final responses
	Row []byte

	StatusCode int
	// Status is the "status" member reported by the query service, e.g. success, errors, timeout
	Status string
	// Err is non nil on a terminal response if the request failed for any reason
	Err error
	// Body is the response body read off the wire. This is only populated on failed terminal responses
	Body []byte

	// Cookie is the opaque value supplied when the request was issued
	Cookie interface{}
}

func (r *Response) reset() {
	r.Final = false
	r.Row = nil
	r.StatusCode = 0
	r.Status = ""
	r.Err = nil
	r.Body = r.Body[:0]
	r.Cookie = nil
}

// Callback receives every response for an issued request
type Callback func(*Response)

var responsePool sync.Pool

// AcquireResponse retrieves a response from the shared pool
func AcquireResponse() *Response {
	v := responsePool.Get()
	if v == nil {
		return &Response{}
	}
	return v.(*Response)
}

// ReleaseResponse releases a response into the shared pool
func ReleaseResponse(r *Response) {
	r.reset()
	responsePool.Put(r)
}

// ServiceError is a single entry of the "errors" member of a query service response
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "code":
		return dec.Int(&e.Code)
	case "msg":
		return dec.String(&e.Message)
	}
	return nil
}

func (e *ServiceError) NKeys() int {
	return 2
}

type serviceErrors []ServiceError

func (s *serviceErrors) UnmarshalJSONArray(dec *gojay.Decoder) error {
	var e ServiceError
	if err := dec.Object(&e); err != nil {
		return err
	}
	*s = append(*s, e)
	return nil
}

// QueryError is returned on the terminal response when the query service rejected the request
type QueryError struct {
	StatusCode int
	Status     string
	Errors     []ServiceError
}

func (e *QueryError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Status)
	if sb.Len() == 0 {
		sb.WriteString("http ")
		sb.WriteString(strconv.Itoa(e.StatusCode))
	}
	for i, v := range e.Errors {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(v.Code))
		sb.WriteString("] ")
		sb.WriteString(v.Message)
	}
	return sb.String()
}

// HasCode reports whether any of the service errors carries one of codes
func (e *QueryError) HasCode(codes ...int) bool {
	for _, v := range e.Errors {
		for _, c := range codes {
			if v.Code == c {
				return true
			}
		}
	}
	return false
}

// Error codes reported when a prepared statement name is no longer known to the service
const (
	CodePreparedNotFound     = 4040
	CodePreparedUnrecognized = 4050
	CodePreparedDecoding     = 4070
)

// queryResult decodes the envelope of a /query/service response. Rows are handed to onRow as they
// are decoded and are never accumulated
type queryResult struct {
	RequestID       string
	ClientContextID string
	Status          string
	Errors          serviceErrors

	onRow func(row []byte)
}

func (q *queryResult) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "requestID":
		return dec.String(&q.RequestID)
	case "clientContextID":
		return dec.String(&q.ClientContextID)
	case "status":
		return dec.String(&q.Status)
	case "results":
		return dec.Array(rowDecoder(q.onRow))
	case "errors":
		return dec.Array(&q.Errors)
	}
	return nil
}

func (q *queryResult) NKeys() int {
	return 0
}

type rowDecoder func(row []byte)

func (f rowDecoder) UnmarshalJSONArray(dec *gojay.Decoder) error {
	var row gojay.EmbeddedJSON
	if err := dec.EmbeddedJSON(&row); err != nil {
		return err
	}
	if f != nil {
		f(row)
	}
	return nil
}
