// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package tag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	e := Empty()
	require.False(t, e.IsNonEmpty())
	require.Equal(t, 0, e.Len())
	require.False(t, e.Contains(0))
	require.Nil(t, e.IDs())
	require.Equal(t, "{}", e.String())

	// The zero value is the empty tag.
	var zero Tag
	require.False(t, zero.IsNonEmpty())
}

func TestSingleton(t *testing.T) {
	s := Singleton(42)
	require.True(t, s.IsNonEmpty())
	require.Equal(t, 1, s.Len())
	require.True(t, s.Contains(42))
	require.False(t, s.Contains(43))
	require.Equal(t, "{42}", s.String())
}

func TestUnionLaws(t *testing.T) {
	a := FromIDs(1, 2, 3)
	b := FromIDs(3, 4)
	c := FromIDs(100, 1<<40)

	// Identity.
	require.Equal(t, a.IDs(), Union(a, Empty()).IDs())
	require.Equal(t, a.IDs(), Union(Empty(), a).IDs())
	// Idempotence.
	require.Equal(t, a.IDs(), Union(a, a).IDs())
	// Commutativity.
	require.Equal(t, Union(a, b).IDs(), Union(b, a).IDs())
	// Associativity.
	require.Equal(t, Union(Union(a, b), c).IDs(), Union(a, Union(b, c)).IDs())

	require.Equal(t, []uint64{1, 2, 3, 4}, Union(a, b).IDs())
}

func TestIntersect(t *testing.T) {
	a := FromIDs(1, 2, 3)
	b := FromIDs(2, 3, 4)
	require.Equal(t, []uint64{2, 3}, Intersect(a, b).IDs())
	require.False(t, Intersect(a, Empty()).IsNonEmpty())
	require.False(t, Intersect(a, FromIDs(9)).IsNonEmpty())
}

func TestIntersectDistributesOverUnion(t *testing.T) {
	a := FromIDs(1, 2, 5, 9)
	b := FromIDs(2, 3, 9)
	c := FromIDs(5, 9, 11)
	lhs := Intersect(a, Union(b, c))
	rhs := Union(Intersect(a, b), Intersect(a, c))
	require.Equal(t, lhs.IDs(), rhs.IDs())
}

func TestFold(t *testing.T) {
	require.False(t, Fold(nil).IsNonEmpty())
	got := Fold([]Tag{Singleton(1), Empty(), FromIDs(2, 3), Singleton(1)})
	require.Equal(t, []uint64{1, 2, 3}, got.IDs())
}

func TestImmutability(t *testing.T) {
	a := FromIDs(1, 2)
	b := FromIDs(3)
	_ = Union(a, b)
	_ = Intersect(a, b)
	require.Equal(t, []uint64{1, 2}, a.IDs())
	require.Equal(t, []uint64{3}, b.IDs())
}

func TestBytesRoundTrip(t *testing.T) {
	for _, tc := range []Tag{Empty(), Singleton(0), FromIDs(1, 77, 1<<50)} {
		got := FromBytes(tc.ToBytes())
		require.Equal(t, tc.IDs(), got.IDs())
	}
}
