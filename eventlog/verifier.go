// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package eventlog

import (
	"sync"

	"github.com/cockroachdb/redact"
)

// ChecksumKind names the flavor of a recorded checksum.
type ChecksumKind uint8

const (
	// ChecksumResult covers result-task partition checksums.
	ChecksumResult ChecksumKind = iota
	// ChecksumShuffleMap covers shuffle map task output checksums.
	ChecksumShuffleMap
	// ChecksumBlock covers shuffle block byte checksums.
	ChecksumBlock
)

func (k ChecksumKind) String() string {
	switch k {
	case ChecksumResult:
		return "result"
	case ChecksumShuffleMap:
		return "shuffle-map"
	case ChecksumBlock:
		return "block"
	default:
		return "unknown"
	}
}

// ChecksumMismatch records a divergence between two observations of the same
// checksum key. Mismatches are never fatal; they are kept for inspection.
type ChecksumMismatch struct {
	Kind      ChecksumKind
	DatasetID int
	Partition int
	// BlockID is set for ChecksumBlock mismatches, in place of
	// DatasetID/Partition.
	BlockID  string
	Expected uint32
	Got      uint32
}

// SafeFormat implements redact.SafeFormatter.
func (m ChecksumMismatch) SafeFormat(p redact.SafePrinter, _ rune) {
	if m.Kind == ChecksumBlock {
		p.Printf("block %s checksum mismatch: expected %x, got %x",
			redact.SafeString(m.BlockID), m.Expected, m.Got)
		return
	}
	p.Printf("%s checksum mismatch on dataset %d partition %d: expected %x, got %x",
		redact.SafeString(m.Kind.String()), m.DatasetID, m.Partition, m.Expected, m.Got)
}

func (m ChecksumMismatch) String() string {
	return redact.StringWithoutMarkers(m)
}

type checksumKey struct {
	kind      ChecksumKind
	datasetID int
	partition int
	blockID   string
}

// Verifier detects nondeterminism between runs of the same computation by
// comparing every checksum entry against the first observation of its key.
// One verifier may consume entries from any number of logs of the same
// computation.
type Verifier struct {
	mu         sync.Mutex
	firstSeen  map[checksumKey]uint32
	mismatches []ChecksumMismatch
}

// NewVerifier returns an empty verifier.
func NewVerifier() *Verifier {
	return &Verifier{firstSeen: make(map[checksumKey]uint32)}
}

// Note feeds one entry to the verifier. It reports whether the entry was a
// checksum entry.
func (v *Verifier) Note(e Event) bool {
	switch ev := e.(type) {
	case ResultTaskChecksum:
		v.note(checksumKey{kind: ChecksumResult, datasetID: ev.DatasetID, partition: ev.Partition},
			ev.ResultChecksum, "")
		return true
	case ShuffleMapTaskChecksum:
		v.note(checksumKey{kind: ChecksumShuffleMap, datasetID: ev.DatasetID, partition: ev.Partition},
			ev.AccumUpdatesChecksum, "")
		return true
	case BlockChecksum:
		v.note(checksumKey{kind: ChecksumBlock, blockID: ev.BlockID}, ev.BytesChecksum, ev.BlockID)
		return true
	}
	return false
}

func (v *Verifier) note(key checksumKey, sum uint32, blockID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if prev, ok := v.firstSeen[key]; ok {
		if prev != sum {
			v.mismatches = append(v.mismatches, ChecksumMismatch{
				Kind:      key.kind,
				DatasetID: key.datasetID,
				Partition: key.partition,
				BlockID:   blockID,
				Expected:  prev,
				Got:       sum,
			})
		}
		return
	}
	v.firstSeen[key] = sum
}

// Mismatches returns the recorded mismatches, in observation order.
func (v *Verifier) Mismatches() []ChecksumMismatch {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ChecksumMismatch, len(v.mismatches))
	copy(out, v.mismatches)
	return out
}
