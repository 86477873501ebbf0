package errlog

import (
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// Sequencer counts errors and hands out the resulting count as the sequence number.
// metrics.Aggregator satisfies this
type Sequencer interface {
	RecordError(n uint64) uint64
}

// Record is a single failed request
type Record struct {
	Seq         uint64
	Description string
	// Context is the request payload, optionally followed by whatever response body was received
	Context []byte
}

// AppendBytes appends the record in its on-disk form:
//
//	[seq] description
//	context
//
// The context line is omitted when there is no context
func (r Record) AppendBytes(b []byte) []byte {
	b = append(b, '[')
	b = strconv.AppendUint(b, r.Seq, 10)
	b = append(b, "] "...)
	b = append(b, r.Description...)
	b = append(b, '\n')
	if len(r.Context) > 0 {
		b = append(b, r.Context...)
		b = append(b, '\n')
	}
	return b
}

type flusher interface {
	Flush() error
}

// Sink is an append only error log shared by all workers. Writes are serialized with a lock that
// is independent from the metrics lock, so a slow disk never stalls reporting
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	seq    Sequencer
	count  uint64
}

// New creates a sink writing to w. Sequence numbers are drawn from seq
func New(w io.Writer, seq Sequencer) *Sink {
	return &Sink{w: w, seq: seq}
}

// Open truncates or creates filename and returns a sink writing to it
func Open(filename string, seq Sequencer) (*Sink, error) {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(0644))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open error log")
	}
	s := New(f, seq)
	s.closer = f
	return s, nil
}

// Log counts one error with the sequencer and writes it as a record.
// Counting and writing happen under the sink lock so records appear in the log in sequence order
func (s *Sink) Log(description string, context []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq.RecordError(1)
	return seq, s.writeLocked(Record{Seq: seq, Description: description, Context: context})
}

// Append writes an already numbered record
func (s *Sink) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(r)
}

// Count returns the number of records written
func (s *Sink) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Sink) writeLocked(r Record) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = r.AppendBytes(buf.B)
	if _, err := s.w.Write(buf.B); err != nil {
		return errors.Wrap(err, "failed to write error record")
	}
	if f, ok := s.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, "failed to flush error record")
		}
	}
	s.count++
	return nil
}

// Close closes the underlying file if the sink was created with Open
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
