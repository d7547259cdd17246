// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package lineage

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/dataflow"
	"github.com/cockroachdb/lineage/tag"
	"github.com/stretchr/testify/require"
)

// liftOver tags d's parents uniquely, lifts d over them and collects the
// result.
func liftOver(t *testing.T, eng *dataflow.Engine, d *dataflow.Dataset) []Tagged {
	t.Helper()
	deps := d.Dependencies()
	taggedParents := make([]*dataflow.Dataset, len(deps))
	for i, dep := range deps {
		taggedParents[i] = UniqueTag(dep.Parent)
	}
	lifted, err := Lift(d, taggedParents)
	require.NoError(t, err)
	elems, err := eng.Collect(context.Background(), lifted)
	require.NoError(t, err)
	out := make([]Tagged, len(elems))
	for i, v := range elems {
		out[i] = v.(Tagged)
	}
	return out
}

func TestLiftMapPreservesTags(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{ints(1, 2), ints(3)})
	d := src.Map("double", func(v any) any { return v.(int) * 2 })

	got := liftOver(t, eng, d)
	require.Len(t, got, 3)
	for i, want := range []struct {
		elem any
		id   uint64
	}{
		{2, encodeTagID(0, 0)},
		{4, encodeTagID(0, 1)},
		{6, encodeTagID(1, 0)},
	} {
		require.Equal(t, want.elem, got[i].Elem)
		require.Equal(t, []uint64{want.id}, got[i].Tag.IDs())
	}
}

func TestLiftFilterKeepsTagUnchanged(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{ints(1, 2, 3, 4)})
	d := src.Filter("even", func(v any) bool { return v.(int)%2 == 0 })

	got := liftOver(t, eng, d)
	require.Len(t, got, 2)
	require.Equal(t, 2, got[0].Elem)
	require.Equal(t, []uint64{encodeTagID(0, 1)}, got[0].Tag.IDs())
	require.Equal(t, 4, got[1].Elem)
	require.Equal(t, []uint64{encodeTagID(0, 3)}, got[1].Tag.IDs())
}

func TestLiftFlatMapFansTagOut(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{ints(7)})
	d := src.FlatMap("dup", func(v any) []any { return []any{v, v, v} })

	got := liftOver(t, eng, d)
	require.Len(t, got, 3)
	for _, tv := range got {
		require.Equal(t, 7, tv.Elem)
		require.Equal(t, []uint64{encodeTagID(0, 0)}, tv.Tag.IDs())
	}
}

func TestLiftCartesianUnionsTags(t *testing.T) {
	eng := newEngine()
	a := eng.Parallelize([][]any{ints(1)})
	b := eng.Parallelize([][]any{ints(2)})
	d := a.Cartesian(b)

	got := liftOver(t, eng, d)
	require.Len(t, got, 1)
	require.Equal(t, dataflow.Pair{A: 1, B: 2}, got[0].Elem)
	require.Equal(t, 2, got[0].Tag.Len())
}

func TestLiftReduceByKeyUnionsMergedTags(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{
		{dataflow.KV{Key: "a", Value: 1}, dataflow.KV{Key: "b", Value: 2}},
		{dataflow.KV{Key: "a", Value: 3}},
	})
	d := src.ReduceByKey("sum", func(a, b any) any { return a.(int) + b.(int) })

	byKey := make(map[string]Tagged)
	for _, tv := range liftOver(t, eng, d) {
		byKey[tv.Elem.(dataflow.KV).Key.(string)] = tv
	}
	require.Equal(t, 4, byKey["a"].Elem.(dataflow.KV).Value)
	require.Equal(t, []uint64{encodeTagID(0, 0), encodeTagID(1, 0)}, byKey["a"].Tag.IDs())
	require.Equal(t, 2, byKey["b"].Elem.(dataflow.KV).Value)
	require.Equal(t, []uint64{encodeTagID(0, 1)}, byKey["b"].Tag.IDs())
}

func TestLiftGroupByKeyUnionsGroupTags(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{
		{dataflow.KV{Key: "a", Value: 1}, dataflow.KV{Key: "a", Value: 2}},
	})
	d := src.GroupByKey()

	got := liftOver(t, eng, d)
	require.Len(t, got, 1)
	kv := got[0].Elem.(dataflow.KV)
	require.Equal(t, "a", kv.Key)
	require.Equal(t, []any{1, 2}, kv.Value)
	require.Equal(t, []uint64{encodeTagID(0, 0), encodeTagID(0, 1)}, got[0].Tag.IDs())
}

func TestLiftUnionKeepsOriginTags(t *testing.T) {
	eng := newEngine()
	a := eng.Parallelize([][]any{ints(1)})
	b := eng.Parallelize([][]any{ints(2)})
	d := a.Union(b)

	got := liftOver(t, eng, d)
	require.Len(t, got, 2)
	// Both sides carry (0, 0) encodings from their own unique taggings;
	// origin is preserved element-wise.
	require.Equal(t, 1, got[0].Elem)
	require.Equal(t, 2, got[1].Elem)
	require.Equal(t, []uint64{encodeTagID(0, 0)}, got[0].Tag.IDs())
	require.Equal(t, []uint64{encodeTagID(0, 0)}, got[1].Tag.IDs())
}

func TestLiftEmptyTagStaysEmpty(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{ints(5)})
	d := src.Map("inc", func(v any) any { return v.(int) + 1 })

	lifted, err := Lift(d, []*dataflow.Dataset{wrapEmpty(src)})
	require.NoError(t, err)
	elems, err := eng.Collect(context.Background(), lifted)
	require.NoError(t, err)
	require.Len(t, elems, 1)
	require.Equal(t, tag.Empty(), elems[0].(Tagged).Tag)
}

func TestLiftUnsupported(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{ints(1)})

	d := src.MapPartitionsWithIndex("", func(_ int, elems []any) []any { return elems })
	_, err := Lift(d, []*dataflow.Dataset{UniqueTag(src)})
	require.True(t, errors.Is(err, ErrUnsupportedLineageOp))

	_, err = Lift(src, nil)
	require.True(t, errors.Is(err, ErrUnsupportedLineageOp))
}

func TestLiftParentArityMismatch(t *testing.T) {
	eng := newEngine()
	src := eng.Parallelize([][]any{ints(1)})
	d := src.Map("", func(v any) any { return v })
	_, err := Lift(d, nil)
	require.Error(t, err)
}
