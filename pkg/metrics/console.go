package metrics

import (
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/valyala/bytebufferpool"
)

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Console writes reports as the three line QUERIES/SEC, ROWS/SEC, ERRORS block.
//
// In ticker mode the block is redrawn in place using ANSI cursor movement. Otherwise every report
// is appended, prefixed with the elapsed seconds since start. Ticker mode is only used while no
// histogram is being rendered, since the histogram does not have a fixed height
type Console struct {
	w      io.Writer
	ticker bool

	// rendered is the number of lines drawn by the previous in-place report
	rendered int
}

// NewConsole creates a console writing to w. ticker enables in-place redraws
func NewConsole(w io.Writer, ticker bool) *Console {
	return &Console{w: w, ticker: ticker}
}

func (c *Console) Report(s Snapshot, h *Histogram) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var prefix, suffix string
	if c.ticker && h == nil {
		if c.rendered > 1 {
			buf.B = append(buf.B, "\x1b["...)
			buf.B = strconv.AppendInt(buf.B, int64(c.rendered-1), 10)
			buf.B = append(buf.B, 'A')
		}
		prefix = "\x1b[K"
		suffix = "\r"
		c.rendered = 3
	} else {
		buf.B = append(buf.B, "\n+"...)
		buf.B = strconv.AppendInt(buf.B, int64(s.Elapsed.Seconds()), 10)
		buf.B = append(buf.B, "s\n"...)
		suffix = "\n"
		c.rendered = 0
	}

	buf.B = append(buf.B, prefix...)
	buf.B = append(buf.B, "QUERIES/SEC: "...)
	buf.B = strconv.AppendUint(buf.B, s.QueriesPerSec(), 10)
	buf.B = append(buf.B, '\n')

	buf.B = append(buf.B, prefix...)
	buf.B = append(buf.B, "ROWS/SEC:    "...)
	buf.B = strconv.AppendUint(buf.B, s.RowsPerSec(), 10)
	buf.B = append(buf.B, '\n')

	buf.B = append(buf.B, prefix...)
	buf.B = append(buf.B, "ERRORS:      "...)
	buf.B = strconv.AppendUint(buf.B, s.Errors, 10)
	buf.B = append(buf.B, suffix...)

	c.w.Write(buf.B)
	if h != nil {
		h.Write(c.w)
	}
}
