package log

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

type LogFormat string

var (
	Pretty LogFormat = "pretty"
	JSON   LogFormat = "json"
	Text   LogFormat = "text"
)

var (
	// out is the destination before any console formatting is applied
	out io.Writer = os.Stderr

	stderr = zerolog.New(out).With().Timestamp().Logger()

	globalFormat = JSON

	Fatal = stderr.Fatal
	Error = stderr.Error
	Warn  = stderr.Warn
	Info  = stderr.Info
	Debug = stderr.Debug
	Trace = stderr.Trace
)

var (
	ErrUnsupportedFormat = fmt.Errorf("unsupported format. supported 'json', 'pretty', 'text'")
)

// Setup applies a verbosity level and an output format in one step. An empty level keeps the
// current one
func Setup(level, format string) error {
	if err := SetFormat(format); err != nil {
		return err
	}
	if level == "" {
		return nil
	}
	return SetLevelString(level)
}

// SetLevelString parses one of trace, debug, info, warn, error, fatal
func SetLevelString(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	stderr = stderr.Level(l)
	return nil
}

// SetOutput redirects diagnostics to w and reapplies the current format on top of it
func SetOutput(w io.Writer) {
	out = w
	stderr = stderr.Output(formatWriter(out, globalFormat))
}

func GetLogFormat() LogFormat {
	return globalFormat
}

// SetFormat switches the encoder. Pretty degrades to Text when the destination is not a terminal so
// that redirected logs carry no colour codes. The live metrics block is written separately and is not
// affected
func SetFormat(format string) error {
	switch LogFormat(format) {
	case JSON, "":
		globalFormat = JSON
	case Pretty:
		globalFormat = Pretty
		if !isTerminal(out) {
			globalFormat = Text
		}
	case Text:
		globalFormat = Text
	default:
		return ErrUnsupportedFormat
	}
	stderr = stderr.Output(formatWriter(out, globalFormat))
	return nil
}

func formatWriter(w io.Writer, format LogFormat) io.Writer {
	switch format {
	case Pretty:
		return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case Text:
		return zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
	}
	return w
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
