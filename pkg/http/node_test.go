package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNode(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		tls      bool
		wantHost string
		wantPort int
		wantURL  string
		wantErr  bool
	}{
		{"default port", "localhost", false, "localhost", 8091, "http://localhost:8091", false},
		{"explicit port", "10.0.0.1:9000", false, "10.0.0.1", 9000, "http://10.0.0.1:9000", false},
		{"tls", "cb.example.com", true, "cb.example.com", 8091, "https://cb.example.com:8091", false},
		{"ipv6", "[::1]:8091", false, "[::1]", 8091, "http://[::1]:8091", false},
		{"ipv6 no port", "[::1]", false, "[::1]", 8091, "http://[::1]:8091", false},
		{"bad port", "localhost:abc", false, "", 0, "", true},
		{"empty host", ":8091", false, "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNode(tt.in, tt.tls, 8091)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, n.Hostname)
			assert.Equal(t, tt.wantPort, n.Port)
			assert.Equal(t, tt.wantURL, n.String())
		})
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		in      string
		want    Header
		wantErr bool
	}{
		{"X-Foo: bar", Header{"X-Foo", "bar"}, false},
		{"X-Foo:bar:baz", Header{"X-Foo", "bar:baz"}, false},
		{"X-Foo", Header{}, true},
		{": bar", Header{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHeader(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
