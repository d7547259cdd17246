// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package eventlog

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"
)

// The log file format: an 8-byte magic header, then a sequence of records.
// Each record is
//
//	+---------------+-------------+-----------+----------+--- ... ---+
//	| Checksum (4B) | Length (4B) | Flags (1B)| Kind (1B)| Payload   |
//	+---------------+-------------+-----------+----------+--- ... ---+
//
// Length is the payload length in bytes, little-endian. Checksum is the low
// 32 bits of the xxhash64 of flags, kind and payload. Flags bit 0 marks a
// snappy-compressed payload. The payload is the msgpack encoding of the
// entry struct for Kind. The log is append-only; an unexpected EOF inside a
// record means the log was truncated mid-write and reads as corruption.
const (
	logMagic = "LINLOG1\x00"

	recordHeaderSize = 10
	maxRecordSize    = 64 << 20

	flagSnappy = 1 << 0
)

var (
	// ErrCorruptLog is returned when a log's framing cannot be trusted: bad
	// magic, a checksum or length violation, or EOF inside a record.
	// Entries delivered before the corruption remain valid.
	ErrCorruptLog = errors.New("eventlog: corrupt log")

	// ErrLogIO marks read or write failures of the underlying stream.
	ErrLogIO = errors.New("eventlog: log io failure")
)

func recordChecksum(flags, kind byte, payload []byte) uint32 {
	h := xxhash.New()
	_, _ = h.Write([]byte{flags, kind})
	_, _ = h.Write(payload)
	return uint32(h.Sum64())
}

func encodeEvent(e Event) (kind byte, payload []byte, _ error) {
	payload, err := msgpack.Marshal(e)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "eventlog: encoding %s entry", e.EventKind())
	}
	return byte(e.EventKind()), payload, nil
}

func decodeAs[T Event](kind byte, payload []byte) (Event, error) {
	var dst T
	if err := msgpack.Unmarshal(payload, &dst); err != nil {
		return nil, errors.Wrapf(ErrCorruptLog, "undecodable %s entry: %v", Kind(kind), err)
	}
	return dst, nil
}

func decodeEvent(kind byte, payload []byte) (Event, error) {
	switch Kind(kind) {
	case KindDatasetRegistration:
		return decodeAs[DatasetRegistration](kind, payload)
	case KindTaskSubmission:
		return decodeAs[TaskSubmission](kind, payload)
	case KindResultTaskChecksum:
		return decodeAs[ResultTaskChecksum](kind, payload)
	case KindShuffleMapTaskChecksum:
		return decodeAs[ShuffleMapTaskChecksum](kind, payload)
	case KindBlockChecksum:
		return decodeAs[BlockChecksum](kind, payload)
	case KindLocalException:
		return decodeAs[LocalException](kind, payload)
	case KindRemoteException:
		return decodeAs[RemoteException](kind, payload)
	default:
		return Unknown{RawKind: kind, Payload: append([]byte(nil), payload...)}, nil
	}
}

func writeRecord(w io.Writer, flags, kind byte, payload []byte) error {
	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], recordChecksum(flags, kind, payload))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	hdr[8] = flags
	hdr[9] = kind
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Mark(err, ErrLogIO)
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Mark(err, ErrLogIO)
	}
	return nil
}

// readRecord returns the next record's kind and payload. io.EOF is returned
// only at a clean record boundary.
func readRecord(r io.Reader) (kind byte, payload []byte, _ error) {
	var hdr [recordHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return 0, nil, errors.Wrap(ErrCorruptLog, "truncated record header")
		}
		return 0, nil, errors.Mark(err, ErrLogIO)
	}
	sum := binary.LittleEndian.Uint32(hdr[0:4])
	length := binary.LittleEndian.Uint32(hdr[4:8])
	flags, k := hdr[8], hdr[9]
	if length > maxRecordSize {
		return 0, nil, errors.Wrapf(ErrCorruptLog, "record length %d exceeds limit", length)
	}
	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil, errors.Wrap(ErrCorruptLog, "truncated record payload")
		}
		return 0, nil, errors.Mark(err, ErrLogIO)
	}
	if got := recordChecksum(flags, k, payload); got != sum {
		return 0, nil, errors.Wrapf(ErrCorruptLog, "record checksum mismatch: expected %#x, got %#x", sum, got)
	}
	if flags&flagSnappy != 0 {
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return 0, nil, errors.Wrapf(ErrCorruptLog, "undecodable snappy payload: %v", err)
		}
		payload = decoded
	}
	return k, payload, nil
}
