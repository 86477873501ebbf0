package http

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Header encapsulates a header key value entry
type Header struct {
	Key   string
	Value string
}

type Headers []Header

func (rr Headers) MarshalZerologArray(a *zerolog.Array) {
	for _, u := range rr {
		a.Object(u)
	}
}

func (h Header) MarshalZerologObject(e *zerolog.Event) {
	e.Str("k", h.Key).
		Str("v", h.Value)
}

func (h Header) String() string {
	return h.Key + ": " + h.Value
}

// ParseHeader parses "key: value"
func ParseHeader(in string) (Header, error) {
	parts := strings.SplitN(in, ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return Header{}, fmt.Errorf("invalid header %q. expected key: value", in)
	}
	return Header{Key: strings.TrimSpace(parts[0]), Value: strings.TrimSpace(parts[1])}, nil
}
