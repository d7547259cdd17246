// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package eventlog

import (
	"bufio"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

// Compression selects the payload codec of written records.
type Compression uint8

const (
	// NoCompression writes payloads verbatim.
	NoCompression Compression = iota
	// SnappyCompression compresses payloads with snappy.
	SnappyCompression
)

// WriterOptions tunes a Writer.
type WriterOptions struct {
	// Compression of record payloads. Defaults to NoCompression.
	Compression Compression
	// Append skips the magic header, for resuming an existing log.
	Append bool
}

// Writer appends event records to an output stream, one serialized record
// per event. Writers are safe for concurrent use.
type Writer struct {
	opts WriterOptions

	mu     sync.Mutex
	bw     *bufio.Writer
	closed bool
}

// NewWriter returns a writer appending records to w. Unless opts.Append is
// set, the magic header is written immediately.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	lw := &Writer{opts: opts, bw: bufio.NewWriter(w)}
	if !opts.Append {
		if _, err := lw.bw.WriteString(logMagic); err != nil {
			return nil, errors.Mark(err, ErrLogIO)
		}
	}
	return lw, nil
}

// AddEvent appends one event record.
func (w *Writer) AddEvent(e Event) error {
	kind, payload, err := encodeEvent(e)
	if err != nil {
		return err
	}
	var flags byte
	if w.opts.Compression == SnappyCompression {
		payload = snappy.Encode(nil, payload)
		flags |= flagSnappy
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.AssertionFailedf("eventlog: AddEvent on closed writer")
	}
	return writeRecord(w.bw, flags, kind, payload)
}

// Flush pushes buffered records to the underlying stream.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bw.Flush(); err != nil {
		return errors.Mark(err, ErrLogIO)
	}
	return nil
}

// Close flushes and marks the writer closed. The underlying stream is the
// caller's to close.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if err := w.bw.Flush(); err != nil {
		return errors.Mark(err, ErrLogIO)
	}
	return nil
}
