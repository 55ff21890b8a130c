// Package buffer holds the byte buffers that carry one transaction's
// payloads: sinks filled chunk by chunk from the wire, and a read buffer
// that feeds an outbound body to the transport.
package buffer

import (
	"bytes"
	"io"
)

// Sink is an append-only byte sequence. Chunks are kept in arrival order.
type Sink struct {
	buf bytes.Buffer
}

// Write appends p. It never fails.
func (s *Sink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

// WriteString appends str.
func (s *Sink) WriteString(str string) (int, error) {
	return s.buf.WriteString(str)
}

// Bytes returns the accumulated bytes. The slice aliases the sink.
func (s *Sink) Bytes() []byte {
	return s.buf.Bytes()
}

// Len returns the number of accumulated bytes.
func (s *Sink) Len() int {
	return s.buf.Len()
}

// Reset discards the contents.
func (s *Sink) Reset() {
	s.buf.Reset()
}

// ReadBuffer serves a fixed payload to a streaming consumer. The cursor
// only moves forward and never wraps.
type ReadBuffer struct {
	data []byte
	pos  int
}

// NewReadBuffer wraps data without copying it.
func NewReadBuffer(data []byte) *ReadBuffer {
	return &ReadBuffer{data: data}
}

// Read copies min(len(p), remaining) bytes and advances the cursor.
func (r *ReadBuffer) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Len returns the number of unread bytes.
func (r *ReadBuffer) Len() int {
	return len(r.data) - r.pos
}

// Size returns the total payload size, the declared content length.
func (r *ReadBuffer) Size() int64 {
	return int64(len(r.data))
}
