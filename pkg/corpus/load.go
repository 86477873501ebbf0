package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	errors2 "github.com/assetnote/n1qlback/pkg/errors"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

const (
	// MaxLineSize is the longest corpus line accepted
	MaxLineSize = 16 * 1024 * 1024
)

var (
	ErrEmptyCorpus = fmt.Errorf("corpus contains no queries")
)

// Load reads one query per line from r. Blank lines are ignored. Lines that fail to parse are skipped
// and returned as a *multierror.Error of *errors.LoadError next to the queries that did load.
// Any other returned error means reading r failed
func Load(r io.Reader, source string) ([]Query, error) {
	var (
		ret    = make([]Query, 0)
		merr   *multierror.Error
		lineno = 0
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() {
		lineno++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		q, err := ParseQuery(line)
		if err != nil {
			merr = multierror.Append(merr, &errors2.LoadError{
				Source:  source,
				Line:    lineno,
				Raw:     append([]byte{}, line...),
				Err:     err,
				Context: "failed to parse query as JSON object",
			})
			continue
		}
		ret = append(ret, q)
	}
	if err := scanner.Err(); err != nil {
		return ret, fmt.Errorf("failed to read %s: %w", source, err)
	}

	return ret, merr.ErrorOrNil()
}

// LoadFile opens filename and calls Load. When showProgress is set, a byte progress bar is drawn
// on stderr while the file is read
func LoadFile(filename string, showProgress bool) ([]Query, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open query file")
	}
	defer f.Close()

	var r io.Reader = f
	if showProgress {
		st, err := f.Stat()
		if err != nil {
			return nil, errors.Wrap(err, "failed to stat query file")
		}
		bar := progressbar.NewOptions64(st.Size(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("loading queries"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
		)
		defer bar.Finish()
		r = io.TeeReader(f, bar)
	}

	ret, err := Load(r, filename)
	log.Debug().Str("file", filename).Int("queries", len(ret)).Msg("read corpus")
	return ret, err
}
