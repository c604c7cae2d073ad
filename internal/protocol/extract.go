package protocol

import (
	"bytes"
	"errors"
)

var (
	// ErrIncomplete means no complete frame is buffered yet, feed more bytes.
	ErrIncomplete = errors.New("no complete frame buffered")
	// ErrCorrupted means a frame boundary arrived without a preceding start
	// marker. The corrupted region is discarded; recovery happens on the
	// sender side via CMD_ERROR, never by reparsing.
	ErrCorrupted = errors.New("corrupted frame discarded")
)

// Extractor incrementally splits an append-only byte stream into frame
// payloads. Frames may arrive concatenated or split across reads; the
// extractor retains the unconsumed remainder between calls and never
// reprocesses a region it already consumed.
//
// Not safe for concurrent use; each stream gets its own Extractor.
type Extractor struct {
	buf []byte
}

// NewExtractor returns an empty Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Feed appends incoming bytes from the stream.
func (e *Extractor) Feed(p []byte) {
	e.buf = append(e.buf, p...)
}

// Buffered returns the number of retained, not yet consumed bytes.
func (e *Extractor) Buffered() int {
	return len(e.buf)
}

// Next returns the payload of the next complete frame. It returns
// ErrIncomplete when the buffer holds no end marker yet, and ErrCorrupted
// when a delimiter-bounded candidate lacks a start marker. In both error
// cases the retained remainder is intact and Next can be called again after
// more bytes arrive (or immediately, after ErrCorrupted).
func (e *Extractor) Next() ([]byte, error) {
	end := bytes.Index(e.buf, []byte(MarkerEnd))
	if end < 0 {
		return nil, ErrIncomplete
	}

	candidate := e.buf[:end]
	rest := e.buf[end+len(MarkerEnd):]

	start := bytes.Index(candidate, []byte(MarkerStart))
	if start < 0 {
		// Region up to the end marker is garbage. Keep the remainder so
		// no later byte is lost.
		e.buf = append([]byte(nil), rest...)
		return nil, ErrCorrupted
	}

	payload := append([]byte(nil), candidate[start+len(MarkerStart):]...)
	e.buf = append([]byte(nil), rest...)
	return payload, nil
}
