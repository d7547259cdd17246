// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package tag implements the element-identity sets carried by tagged
// datasets. A Tag is a finite set of non-negative 64-bit element identities,
// backed by a roaring bitmap. Tags are immutable values: every operation
// allocates a fresh bitmap and never mutates its inputs, which is what makes
// a Tag safe to broadcast to concurrently running tasks.
package tag

import (
	"fmt"
	"strings"

	"github.com/weaviate/sroar"
)

// Tag is an immutable set of element identities. The zero value is the empty
// tag.
type Tag struct {
	bm *sroar.Bitmap
}

// Empty returns the empty tag.
func Empty() Tag {
	return Tag{}
}

// Singleton returns the tag containing exactly id.
func Singleton(id uint64) Tag {
	bm := sroar.NewBitmap()
	bm.Set(id)
	return Tag{bm: bm}
}

// FromIDs returns the tag containing exactly the given ids.
func FromIDs(ids ...uint64) Tag {
	if len(ids) == 0 {
		return Tag{}
	}
	bm := sroar.NewBitmap()
	for _, id := range ids {
		bm.Set(id)
	}
	return Tag{bm: bm}
}

// Union returns a ∪ b. Union is commutative, associative and idempotent, with
// Empty as its identity.
func Union(a, b Tag) Tag {
	switch {
	case a.bm == nil:
		return b
	case b.bm == nil:
		return a
	}
	out := a.bm.Clone()
	out.Or(b.bm)
	return Tag{bm: out}
}

// Intersect returns a ∩ b.
func Intersect(a, b Tag) Tag {
	if a.bm == nil || b.bm == nil {
		return Tag{}
	}
	out := a.bm.Clone()
	out.And(b.bm)
	if out.IsEmpty() {
		return Tag{}
	}
	return Tag{bm: out}
}

// Fold unions a sequence of tags.
func Fold(tags []Tag) Tag {
	acc := Tag{}
	for _, t := range tags {
		acc = Union(acc, t)
	}
	return acc
}

// IsNonEmpty reports whether t contains at least one identity.
func (t Tag) IsNonEmpty() bool {
	return t.bm != nil && !t.bm.IsEmpty()
}

// Contains reports whether t contains id.
func (t Tag) Contains(id uint64) bool {
	return t.bm != nil && t.bm.Contains(id)
}

// Len returns the number of identities in t.
func (t Tag) Len() int {
	if t.bm == nil {
		return 0
	}
	return t.bm.GetCardinality()
}

// IDs returns the identities in t in ascending order.
func (t Tag) IDs() []uint64 {
	if t.bm == nil {
		return nil
	}
	return t.bm.ToArray()
}

// ToBytes serializes t for shipping in a broadcast. FromBytes inverts it.
func (t Tag) ToBytes() []byte {
	if t.bm == nil {
		return nil
	}
	return t.bm.ToBuffer()
}

// FromBytes reconstructs a tag serialized with ToBytes.
func FromBytes(buf []byte) Tag {
	if len(buf) == 0 {
		return Tag{}
	}
	return Tag{bm: sroar.FromBuffer(buf)}
}

func (t Tag) String() string {
	if !t.IsNonEmpty() {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range t.IDs() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", id)
	}
	sb.WriteByte('}')
	return sb.String()
}
