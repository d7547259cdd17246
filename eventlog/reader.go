// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package eventlog

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"
)

// ReaderOptions tunes a Reader.
type ReaderOptions struct {
	// Resume skips the magic-header check, for readers positioned past the
	// start of a log (see Reader.Offset).
	Resume bool
}

// Reader decodes event records from an input stream. Next returns io.EOF at
// a clean end of log; a log cut off mid-record reads as ErrCorruptLog.
// Readers are not safe for concurrent use.
type Reader struct {
	r      *bufio.Reader
	offset int64
	err    error
}

type countingReader struct {
	r *Reader
	u io.Reader
}

func (c countingReader) Read(p []byte) (int, error) {
	n, err := c.u.Read(p)
	c.r.offset += int64(n)
	return n, err
}

// NewReader returns a reader decoding records from r. Unless opts.Resume is
// set, the magic header is consumed and verified first.
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	lr := &Reader{}
	lr.r = bufio.NewReader(countingReader{r: lr, u: r})
	if opts.Resume {
		return lr, nil
	}
	magic := make([]byte, len(logMagic))
	if _, err := io.ReadFull(lr.r, magic); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(ErrCorruptLog, "missing magic header")
		}
		return nil, errors.Mark(err, ErrLogIO)
	}
	if string(magic) != logMagic {
		return nil, errors.Wrapf(ErrCorruptLog, "bad magic header %q", magic)
	}
	return lr, nil
}

// Next returns the next entry. io.EOF signals a clean end of log; reading
// may be resumed later by reopening the stream at Offset with
// ReaderOptions.Resume. Any other error is sticky.
func (r *Reader) Next() (Event, error) {
	if r.err != nil {
		return nil, r.err
	}
	kind, payload, err := readRecord(r.r)
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return nil, err
	}
	e, err := decodeEvent(kind, payload)
	if err != nil {
		r.err = err
		return nil, err
	}
	return e, nil
}

// Offset returns the number of bytes consumed from the underlying stream,
// including buffered read-ahead. It is only meaningful at a clean io.EOF,
// where the buffer is drained and the offset names the exact resume point.
func (r *Reader) Offset() int64 {
	return r.offset - int64(r.r.Buffered())
}
