package http

import (
	"github.com/francoispqt/gojay"
)

// service names advertised in the cluster map
const (
	serviceQuery    = "n1ql"
	serviceQueryTLS = "n1qlSSL"
)

// nodeServices decodes /pools/default/nodeServices
type nodeServices struct {
	Rev   int
	Nodes nodesExt
}

func (n *nodeServices) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "rev":
		return dec.Int(&n.Rev)
	case "nodesExt":
		return dec.Array(&n.Nodes)
	}
	return nil
}

func (n *nodeServices) NKeys() int {
	return 2
}

type nodesExt []nodeExt

func (n *nodesExt) UnmarshalJSONArray(dec *gojay.Decoder) error {
	v := nodeExt{Services: make(services)}
	if err := dec.Object(&v); err != nil {
		return err
	}
	*n = append(*n, v)
	return nil
}

// nodeExt is a single cluster member. Hostname is omitted by single node clusters, in which case the
// bootstrap hostname applies
type nodeExt struct {
	Hostname string
	ThisNode bool
	Services services
}

func (n *nodeExt) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "hostname":
		return dec.String(&n.Hostname)
	case "thisNode":
		return dec.Bool(&n.ThisNode)
	case "services":
		return dec.Object(n.Services)
	}
	return nil
}

func (n *nodeExt) NKeys() int {
	return 3
}

// services maps a service name to its port
type services map[string]int

func (s services) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	var port int
	if err := dec.Int(&port); err != nil {
		return err
	}
	s[key] = port
	return nil
}

func (s services) NKeys() int {
	return 0
}

// queryNodes returns the nodes advertising the query service. When tls is set only nodes with the
// secure port are returned
func (n *nodeServices) queryNodes(bootstrap *Node, tls bool) []*Node {
	name := serviceQuery
	if tls {
		name = serviceQueryTLS
	}
	var ret []*Node
	for _, v := range n.Nodes {
		port, ok := v.Services[name]
		if !ok || port == 0 {
			continue
		}
		host := v.Hostname
		if host == "" {
			host = bootstrap.Hostname
		}
		ret = append(ret, &Node{Hostname: host, Port: port, IsTLS: tls})
	}
	return ret
}
