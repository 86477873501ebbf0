package errors

import (
	"errors"
	"fmt"

	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/hashicorp/go-multierror"
)

// maxRawLen bounds how much of an offending line is echoed into the logs
const maxRawLen = 100

// prefixFromDepth will create the indent prefix for a certain depth
// of string, e.g. 2 will yield "  " * 2 -> "    "
func prefixFromDepth(depth int) string {
	var p []byte
	for i := 0; i < depth; i++ {
		p = append(p, "  "...)
	}
	return string(p)
}

// PrintError walks the provided error and logs a warning for every LoadError found.
// A multierror.Error is traversed recursively, one level of indentation per nesting
func PrintError(err error, depth int) {
	var (
		merr *multierror.Error
		lerr *LoadError
	)

	if errors.As(err, &merr) {
		for _, v := range merr.Errors {
			PrintError(v, depth+1)
		}
	} else if errors.As(err, &lerr) {
		lerr.LogError(depth)
	} else {
		log.Warn().Err(err).Msg(prefixFromDepth(depth) + "error")
	}
}

// LoadError describes a single corpus entry that could not be loaded
type LoadError struct {
	Source  string // Source is the file (or "-") the entry was read from
	Line    int    // Line is the 1-indexed line number of the entry
	Raw     []byte // Raw is the offending input
	Err     error
	Context string // Context is a short free form explanation
}

func (p *LoadError) Error() string {
	if p.Err == nil {
		return fmt.Sprintf("loadError [%s:%d]: %s", p.Source, p.Line, p.Context)
	}
	return fmt.Sprintf("loadError [%s:%d]: %s: %s", p.Source, p.Line, p.Context, p.Err.Error())
}

func (p *LoadError) Unwrap() error {
	return p.Err
}

// LogError will log a warning with the context surrounding the error.
// Raw input is only attached when it is short enough to be readable
func (p *LoadError) LogError(depth int) {
	base := log.Warn().
		Str("source", p.Source).
		Int("line", p.Line).
		Str("context", p.Context)

	if len(p.Raw) > 0 {
		raw := p.Raw
		if len(raw) > maxRawLen {
			raw = raw[:maxRawLen]
		}
		base = base.Bytes("raw", raw)
	}

	base.Err(p.Err).Msg(prefixFromDepth(depth) + "skipping query")
}
