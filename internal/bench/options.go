package bench

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/assetnote/n1qlback/pkg/http"
	"github.com/assetnote/n1qlback/pkg/loadgen"
)

const (
	DefaultWorkers = 1
	DefaultHost    = "localhost:8091"
	DefaultTimeout = http.DefaultTimeout
)

type RunOptions struct {
	Workers         int
	Hosts           []string
	Username        string
	Password        string
	TLS             bool
	Insecure        bool
	Timeout         time.Duration
	MaxConnsPerNode int
	Headers         []http.Header

	ErrorLog     string
	Timings      bool
	Reshuffle    bool
	Seed         int64
	RateLimit    float64
	MaxQueries   int
	ShowProgress bool
	NoANSI       bool

	// Output receives the metrics block. It is only treated as a terminal when it is a tty
	Output io.Writer
}

type RunOption func(*RunOptions) error

func NewDefaultRunOptions() *RunOptions {
	return &RunOptions{
		Workers: DefaultWorkers,
		Hosts:   []string{DefaultHost},
		Timeout: DefaultTimeout,
		Output:  os.Stdout,
	}
}

// ClientConfig returns the query service client settings
func (s RunOptions) ClientConfig() http.Config {
	return http.Config{
		Hosts:           s.Hosts,
		Username:        s.Username,
		Password:        s.Password,
		TLS:             s.TLS,
		Insecure:        s.Insecure,
		Timeout:         s.Timeout,
		MaxConnsPerNode: s.MaxConnsPerNode,
		ExtraHeaders:    s.Headers,
	}
}

// LoadgenOptions returns the engine options. The metrics and error log are added by the caller
func (s RunOptions) LoadgenOptions() []loadgen.ConfigOption {
	return []loadgen.ConfigOption{
		loadgen.Workers(s.Workers),
		loadgen.Seed(s.Seed),
		loadgen.Reshuffle(s.Reshuffle),
		loadgen.RateLimit(s.RateLimit),
		loadgen.MaxQueries(s.MaxQueries),
	}
}

// Validate will ensure the config is sane after all the flags and then
// return an error if things dont make sense
func (s RunOptions) Validate() error {
	if s.Workers <= 0 {
		return fmt.Errorf("number of threads is too low (%d)", s.Workers)
	}
	if len(s.Hosts) == 0 {
		return fmt.Errorf("no hosts provided")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (%s)", s.Timeout)
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("rate must not be negative (%v)", s.RateLimit)
	}
	if s.MaxQueries < 0 {
		return fmt.Errorf("max queries must not be negative (%d)", s.MaxQueries)
	}
	return nil
}

func Workers(n int) RunOption {
	return func(o *RunOptions) error {
		o.Workers = n
		return nil
	}
}

// Hosts replaces the bootstrap hosts. Comma separated entries are split
func Hosts(hosts []string) RunOption {
	return func(o *RunOptions) error {
		ret := make([]string, 0, len(hosts))
		for _, h := range hosts {
			for _, v := range strings.Split(h, ",") {
				if v = strings.TrimSpace(v); v != "" {
					ret = append(ret, v)
				}
			}
		}
		if len(ret) > 0 {
			o.Hosts = ret
		}
		return nil
	}
}

func Credentials(username, password string) RunOption {
	return func(o *RunOptions) error {
		o.Username = username
		o.Password = password
		return nil
	}
}

func TLS(enabled, insecure bool) RunOption {
	return func(o *RunOptions) error {
		o.TLS = enabled
		o.Insecure = insecure
		return nil
	}
}

func Timeout(n time.Duration) RunOption {
	return func(o *RunOptions) error {
		o.Timeout = n
		return nil
	}
}

func MaxConnsPerNode(n int) RunOption {
	return func(o *RunOptions) error {
		o.MaxConnsPerNode = n
		return nil
	}
}

// AddHeaders parses each "key: value" entry
func AddHeaders(in []string) RunOption {
	return func(o *RunOptions) error {
		for _, v := range in {
			h, err := http.ParseHeader(v)
			if err != nil {
				return err
			}
			o.Headers = append(o.Headers, h)
		}
		return nil
	}
}

func ErrorLog(filename string) RunOption {
	return func(o *RunOptions) error {
		o.ErrorLog = filename
		return nil
	}
}

func Timings(enabled bool) RunOption {
	return func(o *RunOptions) error {
		o.Timings = enabled
		return nil
	}
}

func Reshuffle(enabled bool) RunOption {
	return func(o *RunOptions) error {
		o.Reshuffle = enabled
		return nil
	}
}

func Seed(n int64) RunOption {
	return func(o *RunOptions) error {
		o.Seed = n
		return nil
	}
}

func RateLimit(qps float64) RunOption {
	return func(o *RunOptions) error {
		o.RateLimit = qps
		return nil
	}
}

func MaxQueries(n int) RunOption {
	return func(o *RunOptions) error {
		o.MaxQueries = n
		return nil
	}
}

func ShowProgress(enabled bool) RunOption {
	return func(o *RunOptions) error {
		o.ShowProgress = enabled
		return nil
	}
}

func NoANSI(enabled bool) RunOption {
	return func(o *RunOptions) error {
		o.NoANSI = enabled
		return nil
	}
}

func Output(w io.Writer) RunOption {
	return func(o *RunOptions) error {
		o.Output = w
		return nil
	}
}
