package errlog

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu sync.Mutex
	n  uint64
}

func (c *counter) RecordError(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += n
	return c.n
}

func TestRecord_AppendBytes(t *testing.T) {
	tests := []struct {
		name     string
		r        Record
		expected string
	}{
		{"no context", Record{Seq: 1, Description: "timeout"}, "[1] timeout\n"},
		{"context", Record{Seq: 12, Description: "query errors", Context: []byte("{\"statement\":\"Q1\"}\n{\"status\":\"errors\"}")}, "[12] query errors\n{\"statement\":\"Q1\"}\n{\"status\":\"errors\"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.r.AppendBytes(nil)))
		})
	}
}

var recordHeader = regexp.MustCompile(`^\[(\d+)\] (.*)$`)

func TestSink_ConcurrentSequence(t *testing.T) {
	var (
		buf     bytes.Buffer
		c       = &counter{}
		s       = New(&buf, c)
		wg      sync.WaitGroup
		workers = 10
		perW    = 50
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perW; j++ {
				_, err := s.Log("busy", []byte("Q1"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	total := workers * perW
	assert.Equal(t, uint64(total), s.Count())

	var (
		scanner = bufio.NewScanner(&buf)
		last    uint64
		records int
	)
	for scanner.Scan() {
		m := recordHeader.FindStringSubmatch(scanner.Text())
		require.NotNil(t, m, "unexpected line %q", scanner.Text())
		seq, err := strconv.ParseUint(m[1], 10, 64)
		require.NoError(t, err)
		assert.Equal(t, last+1, seq, "sequence must increase by one")
		assert.Equal(t, "busy", m[2])
		last = seq
		records++

		require.True(t, scanner.Scan())
		assert.Equal(t, "Q1", scanner.Text())
	}
	assert.Equal(t, total, records)
}

func TestOpen(t *testing.T) {
	dir, err := ioutil.TempDir("", "errlog")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "errors.log")
	require.NoError(t, ioutil.WriteFile(fn, []byte("stale\n"), 0644))

	s, err := Open(fn, &counter{})
	require.NoError(t, err)
	_, err = s.Log("failed", nil)
	require.NoError(t, err)

	// written through before close
	data, err := ioutil.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, "[1] failed\n", string(data))
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, err = Open(filepath.Join(dir, "missing", "errors.log"), &counter{})
	assert.Error(t, err)
}
