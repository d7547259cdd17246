// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package lineage

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/dataflow"
	"github.com/cockroachdb/lineage/tag"
)

// Unique tag ids pack (partition, position) into 64 bits: 24 bits of
// partition index above 40 bits of position. encodeTagID is collision-free
// within those bounds and deterministic, so re-evaluating a partition
// reproduces identical tags (the engine's deterministic evaluation supplies
// the identical element order).
const (
	tagIndexBits     = 40
	maxTagIndex      = 1 << tagIndexBits
	maxTagPartitions = 1 << 24
)

func encodeTagID(part, i int) uint64 {
	if part >= maxTagPartitions || i >= maxTagIndex {
		panic(errors.Wrapf(ErrTagSpaceExhausted, "partition %d position %d", part, i))
	}
	return uint64(part)<<tagIndexBits | uint64(i)
}

// decodeTagID inverts encodeTagID.
func decodeTagID(id uint64) (part, i int) {
	return int(id >> tagIndexBits), int(id & (maxTagIndex - 1))
}

// UniqueTag wraps d so that the i-th element of partition p carries the
// singleton tag {encode(p, i)}.
func UniqueTag(d *dataflow.Dataset) *dataflow.Dataset {
	return d.MapPartitionsWithIndex("", func(part int, elems []any) []any {
		out := make([]any, len(elems))
		for i, v := range elems {
			out[i] = Tagged{Elem: v, Tag: tag.Singleton(encodeTagID(part, i))}
		}
		return out
	})
}

// PredicateTag wraps d so that elements satisfying pred carry their unique
// singleton tag and all others carry the empty tag. This is the seeding step
// of a forward trace.
func PredicateTag(d *dataflow.Dataset, pred func(any) bool) *dataflow.Dataset {
	return d.MapPartitionsWithIndex("", func(part int, elems []any) []any {
		out := make([]any, len(elems))
		for i, v := range elems {
			t := tag.Empty()
			if pred(v) {
				t = tag.Singleton(encodeTagID(part, i))
			}
			out[i] = Tagged{Elem: v, Tag: t}
		}
		return out
	})
}
