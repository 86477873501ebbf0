package http

import (
	"crypto/tls"
	"strconv"
	"sync"

	"github.com/valyala/bytebufferpool"
)

var (
	bHTTPS = []byte("https")
	bHTTP  = []byte("http")

	queryServicePath = []byte("/query/service")
	nodeServicesPath = []byte("/pools/default/nodeServices")
)

// Node is a single cluster member reachable over HTTP, either a bootstrap host serving the cluster
// map or a node running the query service.
//
// The HostClient is created lazily on first use and cached, later changes to the address are not
// respected. All methods are safe for concurrent use
type Node struct {
	Hostname string // Hostname is the bare hostname or ip without the port
	Port     int
	IsTLS    bool

	mu         sync.Mutex
	httpClient *HTTPClient
	b          []byte
}

// AppendScheme will append the scheme to the host not including the ://
func (n *Node) AppendScheme(buf []byte) []byte {
	if n.IsTLS {
		return append(buf, bHTTPS...)
	}
	return append(buf, bHTTP...)
}

// AppendHost appends hostname:port. The port is always included since cluster services never
// listen on the scheme default
func (n *Node) AppendHost(buf []byte) []byte {
	buf = append(buf, n.Hostname...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(n.Port), 10)
	return buf
}

// Host returns hostname:port
func (n *Node) Host() string {
	w := bytebufferpool.Get()
	ret := string(n.AppendHost(w.B))
	bytebufferpool.Put(w)
	return ret
}

// AppendURL appends scheme://hostname:port followed by path
func (n *Node) AppendURL(buf []byte, path []byte) []byte {
	buf = n.AppendScheme(buf)
	buf = append(buf, "://"...)
	buf = n.AppendHost(buf)
	buf = append(buf, path...)
	return buf
}

// HTTPClient returns the cached client for this node, creating it with the provided settings on
// the first call
func (n *Node) HTTPClient(config *Config, tlsConfig *tls.Config) *HTTPClient {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.httpClient == nil {
		n.httpClient = NewHTTPClient(n.Host(), n.IsTLS, tlsConfig)
		if config.MaxConnsPerNode > 0 {
			n.httpClient.MaxConns = config.MaxConnsPerNode
		}
		n.httpClient.ReadTimeout = config.Timeout
		n.httpClient.WriteTimeout = config.Timeout
		if config.Dial != nil {
			n.httpClient.Dial = config.Dial
		}
	}
	return n.httpClient
}

// String returns scheme://hostname:port. The value is cached after the first call
func (n *Node) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.b) == 0 {
		n.b = n.AppendURL(n.b, nil)
	}
	return string(n.b)
}

// ParseNode parses host or host:port. defaultPort is used when no port is present
func ParseNode(in string, isTLS bool, defaultPort int) (*Node, error) {
	host, port := in, defaultPort
	// bracketed ipv6 literals keep their colons
	if i := lastColon(in); i >= 0 {
		p, err := strconv.Atoi(in[i+1:])
		if err != nil {
			return nil, &ErrInvalidHost{Host: in, Err: err}
		}
		host, port = in[:i], p
	}
	if host == "" {
		return nil, &ErrInvalidHost{Host: in}
	}
	return &Node{Hostname: host, Port: port, IsTLS: isTLS}, nil
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ':':
			return i
		case ']':
			return -1
		}
	}
	return -1
}

type ErrInvalidHost struct {
	Host string
	Err  error
}

func (e *ErrInvalidHost) Error() string {
	if e.Err != nil {
		return "invalid host " + strconv.Quote(e.Host) + ": " + e.Err.Error()
	}
	return "invalid host " + strconv.Quote(e.Host)
}

func (e *ErrInvalidHost) Unwrap() error {
	return e.Err
}
