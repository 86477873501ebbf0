package http

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/assetnote/n1qlback/pkg/corpus"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/francoispqt/gojay"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

var (
	// ErrNoQueryService is returned by Probe when no cluster node advertises the query service
	ErrNoQueryService = errors.New("cluster does not support N1QL")
	// ErrNotBootstrapped is returned by Issue before a successful Probe
	ErrNotBootstrapped = errors.New("client has no query nodes. probe the cluster first")
	// ErrEmptyPayload is returned by Issue for a query without a payload
	ErrEmptyPayload = errors.New("empty query payload")
	// ErrNoPreparedName is returned when a PREPARE response carries no statement name
	ErrNoPreparedName = errors.New("prepare response did not contain a name")
	// ErrNoStatement is returned when a prepared query has no "statement" member
	ErrNoStatement = errors.New("query has no statement to prepare")
)

const (
	DefaultTimeout     = 75 * time.Second
	DefaultMgmtPort    = 8091
	DefaultMgmtTLSPort = 18091
)

var (
	strApplicationJSON = []byte("application/json")
	strPost            = []byte(fasthttp.MethodPost)
	strGet             = []byte(fasthttp.MethodGet)
)

// HTTPClient is a type alias for the actual host client we use.
// We do this instead of using an interface to avoid reflecting
type HTTPClient = fasthttp.HostClient

// NewHTTPClient will create a http client configured specifically for requesting against the targetted host.
// This is backed by the fasthttp.HostClient
func NewHTTPClient(host string, isTLS bool, tlsConfig *tls.Config) *HTTPClient {
	return &HTTPClient{
		Addr:                     host,
		IsTLS:                    isTLS,
		TLSConfig:                tlsConfig,
		NoDefaultUserAgentHeader: true,
	}
}

// Config provides all the options available to the query service client
type Config struct {
	// Hosts are the bootstrap hosts used to fetch the cluster map, as host or host:port
	Hosts    []string `toml:"hosts" json:"hosts" mapstructure:"hosts"`
	Username string   `toml:"username" json:"username" mapstructure:"username"`
	Password string   `toml:"password" json:"password" mapstructure:"password"`
	// TLS selects https for the cluster map and the secure query port
	TLS bool `toml:"tls" json:"tls" mapstructure:"tls"`
	// Insecure disables certificate verification when TLS is in use
	Insecure bool `toml:"insecure" json:"insecure" mapstructure:"insecure"`
	// Timeout is the duration to wait when performing a DoTimeout request
	Timeout time.Duration `toml:"timeout" json:"timeout" mapstructure:"timeout"`
	// MaxConnsPerNode caps the open connections to each query node. 0 uses the fasthttp default
	MaxConnsPerNode int `toml:"max_conns" json:"max_conns" mapstructure:"max_conns"`

	// ExtraHeaders are added to every request last
	ExtraHeaders []Header

	// Dial overrides how connections are established. Used for in memory testing
	Dial fasthttp.DialFunc
}

// Client issues queries against the query service nodes of a cluster. The set of nodes is discovered
// with Probe. Queries are spread randomly over the discovered nodes
type Client struct {
	config    Config
	tlsConfig *tls.Config
	auth      []byte

	mu    sync.RWMutex
	nodes []*Node

	pmu      sync.Mutex
	prepared map[string]string
}

// NewClient returns a client for config. No requests are performed until Probe is called
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	c := &Client{
		config: config,
		tlsConfig: &tls.Config{
			InsecureSkipVerify: config.Insecure,
		},
		prepared: make(map[string]string),
	}
	if config.Username != "" {
		c.auth = append([]byte("Basic "), base64.StdEncoding.EncodeToString([]byte(config.Username+":"+config.Password))...)
	}
	return c
}

// Nodes returns the query nodes found by the last successful probe
func (c *Client) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Node(nil), c.nodes...)
}

func (c *Client) httpClient(n *Node) *HTTPClient {
	return n.HTTPClient(&c.config, c.tlsConfig)
}

func (c *Client) writeHeaders(req *fasthttp.Request) {
	if len(c.auth) > 0 {
		req.Header.SetBytesV(fasthttp.HeaderAuthorization, c.auth)
	}
	for _, h := range c.config.ExtraHeaders {
		req.Header.Set(h.Key, h.Value)
	}
}

// Probe fetches the cluster map from the bootstrap hosts in order until one responds, and records
// every node advertising the query service. The secure port is required when TLS is enabled
func (c *Client) Probe(ctx context.Context) error {
	defaultPort := DefaultMgmtPort
	if c.config.TLS {
		defaultPort = DefaultMgmtTLSPort
	}
	if len(c.config.Hosts) == 0 {
		return fmt.Errorf("no bootstrap hosts provided")
	}

	var merr *multierror.Error
	for _, h := range c.config.Hosts {
		if err := ctx.Err(); err != nil {
			return err
		}
		bootstrap, err := ParseNode(h, c.config.TLS, defaultPort)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}

		var ns nodeServices
		if err := c.fetchNodeServices(bootstrap, &ns); err != nil {
			log.Debug().Err(err).Str("host", bootstrap.String()).Msg("failed to fetch cluster map")
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", bootstrap.String(), err))
			continue
		}

		nodes := ns.queryNodes(bootstrap, c.config.TLS)
		if len(nodes) == 0 {
			return ErrNoQueryService
		}
		c.mu.Lock()
		c.nodes = nodes
		c.mu.Unlock()

		log.Debug().Str("bootstrap", bootstrap.String()).Int("rev", ns.Rev).Int("nodes", len(nodes)).Msg("found query nodes")
		return nil
	}
	return fmt.Errorf("failed to fetch cluster map: %w", merr.ErrorOrNil())
}

func (c *Client) fetchNodeServices(n *Node, dst *nodeServices) error {
	var (
		freq  = fasthttp.AcquireRequest()
		fresp = fasthttp.AcquireResponse()
	)
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	w := bytebufferpool.Get()
	w.B = n.AppendURL(w.B, nodeServicesPath)
	freq.SetRequestURIBytes(w.B)
	bytebufferpool.Put(w)
	freq.Header.SetMethodBytes(strGet)
	c.writeHeaders(freq)

	if err := c.httpClient(n).DoTimeout(freq, fresp, c.config.Timeout); err != nil {
		return err
	}
	if sc := fresp.StatusCode(); sc != fasthttp.StatusOK {
		return fmt.Errorf("unexpected status code %d", sc)
	}
	return gojay.UnmarshalJSONObject(fresp.Body(), dst)
}

func (c *Client) pick() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch len(c.nodes) {
	case 0:
		return nil
	case 1:
		return c.nodes[0]
	}
	return c.nodes[rand.Intn(len(c.nodes))]
}

// Issue performs q asynchronously. cb is invoked from another goroutine with a response per result
// row, then exactly once with Final set. If an error is returned the request was not issued and cb
// is never invoked
func (c *Client) Issue(q corpus.Query, cookie interface{}, cb Callback) error {
	if len(q.Payload) == 0 {
		return ErrEmptyPayload
	}
	node := c.pick()
	if node == nil {
		return ErrNotBootstrapped
	}
	go c.execute(node, q, cookie, cb)
	return nil
}

func (c *Client) execute(node *Node, q corpus.Query, cookie interface{}, cb Callback) {
	var (
		body      []byte
		statement string
		err       error
	)
	if q.Prepare {
		body, statement, err = c.preparedBody(node, q.Payload)
	} else {
		body, err = adhocBody(q.Payload)
	}
	if err != nil {
		resp := AcquireResponse()
		resp.Final = true
		resp.Err = err
		resp.Cookie = cookie
		cb(resp)
		ReleaseResponse(resp)
		return
	}

	qerr := c.do(node, body, cookie, cb)
	if q.Prepare && qerr != nil && qerr.HasCode(CodePreparedNotFound, CodePreparedUnrecognized, CodePreparedDecoding) {
		log.Debug().Str("statement", statement).Msg("evicting prepared statement")
		c.pmu.Lock()
		delete(c.prepared, statement)
		c.pmu.Unlock()
	}
}

// do posts body to the query service on node and streams the rows to cb, followed by the terminal response.
// The QueryError delivered on the terminal response, if any, is returned
func (c *Client) do(node *Node, body []byte, cookie interface{}, cb Callback) *QueryError {
	var (
		freq  = fasthttp.AcquireRequest()
		fresp = fasthttp.AcquireResponse()
		resp  = AcquireResponse()
	)
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)
	defer ReleaseResponse(resp)

	c.writeQueryRequest(freq, node, body)
	err := c.httpClient(node).DoTimeout(freq, fresp, c.config.Timeout)
	if err != nil {
		resp.Final = true
		resp.Err = err
		resp.Cookie = cookie
		cb(resp)
		return nil
	}

	res := queryResult{
		onRow: func(row []byte) {
			resp.Row = row
			resp.Cookie = cookie
			cb(resp)
			resp.reset()
		},
	}
	b := fresp.Body()
	decodeErr := gojay.UnmarshalJSONObject(b, &res)

	resp.Final = true
	resp.Row = nil
	resp.Cookie = cookie
	resp.StatusCode = fresp.StatusCode()
	resp.Status = res.Status

	var qerr *QueryError
	switch {
	case resp.StatusCode != fasthttp.StatusOK || (res.Status != "" && res.Status != "success") || len(res.Errors) > 0:
		qerr = &QueryError{StatusCode: resp.StatusCode, Status: res.Status, Errors: res.Errors}
		resp.Err = qerr
	case decodeErr != nil:
		resp.Err = fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if resp.Err != nil {
		resp.Body = append(resp.Body[:0], b...)
	}
	cb(resp)
	return qerr
}

func (c *Client) writeQueryRequest(dst *fasthttp.Request, node *Node, body []byte) {
	w := bytebufferpool.Get()
	w.B = node.AppendURL(w.B, queryServicePath)
	dst.SetRequestURIBytes(w.B)
	bytebufferpool.Put(w)

	dst.Header.SetMethodBytes(strPost)
	dst.Header.SetContentTypeBytes(strApplicationJSON)
	c.writeHeaders(dst)
	dst.SetBody(body)
}

// adhocBody returns payload with a client_context_id added unless the payload already carries one
func adhocBody(payload []byte) ([]byte, error) {
	obj, err := corpus.ParseObject(payload)
	if err != nil {
		return nil, err
	}
	if _, ok := obj.Get("client_context_id"); !ok {
		obj = obj.Set("client_context_id", contextID())
	}
	return obj.Bytes()
}

func contextID() []byte {
	b, _ := gojay.Marshal(uuid.New().String())
	return b
}

// preparedBody replaces the statement of payload with the name of a prepared statement, preparing it
// on node if this client has not seen the statement before. The statement text is returned for eviction
func (c *Client) preparedBody(node *Node, payload []byte) ([]byte, string, error) {
	obj, err := corpus.ParseObject(payload)
	if err != nil {
		return nil, "", err
	}
	statement, ok := obj.GetString("statement")
	if !ok || statement == "" {
		return nil, "", ErrNoStatement
	}

	c.pmu.Lock()
	name, ok := c.prepared[statement]
	c.pmu.Unlock()
	if !ok {
		if name, err = c.prepare(node, statement); err != nil {
			return nil, statement, fmt.Errorf("failed to prepare statement: %w", err)
		}
		c.pmu.Lock()
		c.prepared[statement] = name
		c.pmu.Unlock()
	}

	encName, err := gojay.Marshal(name)
	if err != nil {
		return nil, statement, err
	}
	obj = obj.Delete("statement").Set("prepared", encName)
	if _, ok := obj.Get("client_context_id"); !ok {
		obj = obj.Set("client_context_id", contextID())
	}
	ret, err := obj.Bytes()
	return ret, statement, err
}

// prepare issues PREPARE for statement synchronously and returns the statement name
func (c *Client) prepare(node *Node, statement string) (string, error) {
	stmt, err := gojay.Marshal("PREPARE " + statement)
	if err != nil {
		return "", err
	}
	body, err := corpus.Object{{Key: "statement", Value: stmt}}.Bytes()
	if err != nil {
		return "", err
	}

	var (
		name string
		rerr error
	)
	c.do(node, body, nil, func(r *Response) {
		if !r.Final {
			if name == "" {
				if obj, err := corpus.ParseObject(r.Row); err == nil {
					name, _ = obj.GetString("name")
				}
			}
			return
		}
		rerr = r.Err
	})
	if rerr != nil {
		return "", rerr
	}
	if name == "" {
		return "", ErrNoPreparedName
	}
	return name, nil
}

// PreparedCount returns the number of cached prepared statements
func (c *Client) PreparedCount() int {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	return len(c.prepared)
}
