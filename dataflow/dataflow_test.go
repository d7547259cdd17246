// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package dataflow

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/eventlog"
	"github.com/stretchr/testify/require"
)

// memReporter buffers events for assertions.
type memReporter struct {
	mu     sync.Mutex
	events []eventlog.Event
}

func (r *memReporter) Report(e eventlog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *memReporter) byKind(k eventlog.Kind) []eventlog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventlog.Event
	for _, e := range r.events {
		if e.EventKind() == k {
			out = append(out, e)
		}
	}
	return out
}

func ints(vals ...int) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func TestCollectNarrowOps(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(Options{})

	src := eng.Parallelize([][]any{ints(1, 2), ints(3, 4, 5)})
	require.Equal(t, 2, src.NumPartitions())

	doubled := src.Map("double", func(v any) any { return v.(int) * 2 })
	got, err := eng.Collect(ctx, doubled)
	require.NoError(t, err)
	require.Equal(t, ints(2, 4, 6, 8, 10), got)

	evens := src.Filter("even", func(v any) bool { return v.(int)%2 == 0 })
	got, err = eng.Collect(ctx, evens)
	require.NoError(t, err)
	require.Equal(t, ints(2, 4), got)

	dup := src.FlatMap("dup", func(v any) []any { return []any{v, v} })
	got, err = eng.Collect(ctx, dup)
	require.NoError(t, err)
	require.Equal(t, ints(1, 1, 2, 2, 3, 3, 4, 4, 5, 5), got)

	indexed := src.MapPartitionsWithIndex("", func(p int, elems []any) []any {
		out := make([]any, len(elems))
		for i := range elems {
			out[i] = p
		}
		return out
	})
	got, err = eng.Collect(ctx, indexed)
	require.NoError(t, err)
	require.Equal(t, ints(0, 0, 1, 1, 1), got)
}

func TestCollectUnionAndCartesian(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(Options{})

	a := eng.Parallelize([][]any{ints(1, 2)})
	b := eng.Parallelize([][]any{ints(3), ints(4)})

	u := a.Union(b)
	require.Equal(t, 3, u.NumPartitions())
	got, err := eng.Collect(ctx, u)
	require.NoError(t, err)
	require.Equal(t, ints(1, 2, 3, 4), got)

	c := a.Cartesian(b)
	require.Equal(t, 2, c.NumPartitions())
	got, err = eng.Collect(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []any{
		Pair{A: 1, B: 3}, Pair{A: 2, B: 3},
		Pair{A: 1, B: 4}, Pair{A: 2, B: 4},
	}, got)
}

func TestCollectShuffleOps(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(Options{NumPartitions: 2})

	src := eng.Parallelize([][]any{
		{KV{Key: "k1", Value: 1}, KV{Key: "k2", Value: 3}},
		{KV{Key: "k1", Value: 2}},
	})

	reduced := src.ReduceByKey("sum", func(a, b any) any { return a.(int) + b.(int) })
	got, err := eng.Collect(ctx, reduced)
	require.NoError(t, err)
	require.ElementsMatch(t, []any{
		KV{Key: "k1", Value: 3},
		KV{Key: "k2", Value: 3},
	}, got)

	grouped := src.GroupByKey()
	got, err = eng.Collect(ctx, grouped)
	require.NoError(t, err)
	require.ElementsMatch(t, []any{
		KV{Key: "k1", Value: []any{1, 2}},
		KV{Key: "k2", Value: []any{3}},
	}, got)
}

func TestCollectDeterministic(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(Options{NumPartitions: 3})

	src := eng.Parallelize([][]any{
		{KV{Key: 1, Value: 10}, KV{Key: 2, Value: 20}},
		{KV{Key: 1, Value: 30}, KV{Key: 3, Value: 40}},
	})
	grouped := src.GroupByKey()

	first, err := eng.Collect(ctx, grouped)
	require.NoError(t, err)
	second, err := eng.Collect(ctx, grouped)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestTaskPanicReportsException(t *testing.T) {
	ctx := context.Background()
	rep := &memReporter{}
	eng := NewEngine(Options{Reporter: rep})

	src := eng.Parallelize([][]any{ints(1)})
	boom := src.Map("", func(any) any { panic("boom") })
	_, err := eng.Collect(ctx, boom)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTaskFailed))

	excs := rep.byKind(eventlog.KindLocalException)
	require.Len(t, excs, 1)
	require.Contains(t, excs[0].(eventlog.LocalException).Message, "boom")
}

func TestTaskPanicPreservesErrorCause(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(Options{})
	sentinel := errors.New("cause")

	src := eng.Parallelize([][]any{ints(1)})
	boom := src.Map("", func(any) any { panic(sentinel) })
	_, err := eng.Collect(ctx, boom)
	require.True(t, errors.Is(err, sentinel))
	require.True(t, errors.Is(err, ErrTaskFailed))
}

func TestRegistrationReportedOnce(t *testing.T) {
	ctx := context.Background()
	rep := &memReporter{}
	eng := NewEngine(Options{Reporter: rep, DisableChecksums: true})

	src := eng.Parallelize([][]any{ints(1, 2)})
	d := src.Map("double", func(v any) any { return v.(int) * 2 })

	_, err := eng.Collect(ctx, d)
	require.NoError(t, err)
	_, err = eng.Collect(ctx, d)
	require.NoError(t, err)

	regs := rep.byKind(eventlog.KindDatasetRegistration)
	require.Len(t, regs, 2) // src and d, once each
	require.Equal(t, src.ID(), regs[0].(eventlog.DatasetRegistration).Dataset.ID)
	require.Equal(t, d.ID(), regs[1].(eventlog.DatasetRegistration).Dataset.ID)
}

func TestChecksumsReproducible(t *testing.T) {
	ctx := context.Background()
	run := func() []eventlog.Event {
		rep := &memReporter{}
		eng := NewEngine(Options{Reporter: rep, NumPartitions: 2})
		src := eng.Parallelize([][]any{
			{KV{Key: "a", Value: 1}, KV{Key: "b", Value: 2}},
			{KV{Key: "a", Value: 3}},
		})
		reduced := src.ReduceByKey("sum", func(a, b any) any { return a.(int) + b.(int) })
		final := reduced.Map("value", func(v any) any { return v.(KV).Value })
		_, err := eng.Collect(ctx, final)
		require.NoError(t, err)

		var sums []eventlog.Event
		sums = append(sums, rep.byKind(eventlog.KindResultTaskChecksum)...)
		sums = append(sums, rep.byKind(eventlog.KindShuffleMapTaskChecksum)...)
		sums = append(sums, rep.byKind(eventlog.KindBlockChecksum)...)
		return sums
	}
	require.ElementsMatch(t, run(), run())
}

func TestCollectCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := NewEngine(Options{})
	d := eng.Parallelize([][]any{ints(1)}).Map("", func(v any) any { return v })
	_, err := eng.Collect(ctx, d)
	require.ErrorIs(t, err, context.Canceled)

	// A canceled job does not poison later ones.
	got, err := eng.Collect(context.Background(), d)
	require.NoError(t, err)
	require.Equal(t, ints(1), got)
}

func TestWatermarks(t *testing.T) {
	eng := NewEngine(Options{})
	eng.UpdateDatasetID(100)
	d := eng.Parallelize([][]any{ints(1)})
	require.Equal(t, 100, d.ID())

	// Lowering is a no-op.
	eng.UpdateDatasetID(5)
	d2 := eng.Parallelize([][]any{ints(1)})
	require.Equal(t, 101, d2.ID())

	eng.UpdateShuffleID(7)
	g := d.Map("", func(v any) any { return KV{Key: v, Value: v} }).GroupByKey()
	require.Equal(t, 7, g.Transform().(GroupByKey).ShuffleID)
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	funcs := NewFuncRegistry()
	funcs.RegisterMap("double", func(v any) any { return v.(int) * 2 })

	eng := NewEngine(Options{Funcs: funcs})
	src := eng.Parallelize([][]any{ints(1, 2), ints(3)})
	d := src.Map("double", func(v any) any { return v.(int) * 2 })

	eng2 := NewEngine(Options{Funcs: funcs})
	srcDesc := Descriptor(src)
	_, err := eng2.Restore(srcDesc)
	require.NoError(t, err)
	restored, err := eng2.Restore(Descriptor(d))
	require.NoError(t, err)

	got, err := eng2.Collect(ctx, restored)
	require.NoError(t, err)
	require.Equal(t, ints(2, 4, 6), got)

	// Ids survive, and the watermark moved past them.
	require.Equal(t, d.ID(), restored.ID())
	fresh := eng2.Parallelize([][]any{ints(9)})
	require.Greater(t, fresh.ID(), restored.ID())
}

func TestRestoreUnknownFunc(t *testing.T) {
	eng := NewEngine(Options{Funcs: NewFuncRegistry()})
	src := eng.Parallelize([][]any{ints(1)})

	eng2 := NewEngine(Options{Funcs: NewFuncRegistry()})
	_, err := eng2.Restore(Descriptor(src))
	require.NoError(t, err)
	_, err = eng2.Restore(eventlog.DatasetDescriptor{
		ID: 1, Op: "map", FuncName: "nope", NumPartitions: 1,
		Deps: []eventlog.DependencyDescriptor{{ParentID: src.ID()}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestOpaqueRestoreFailsEvaluation(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(Options{})
	src := eng.Parallelize([][]any{ints(1)})
	anon := src.Map("", func(v any) any { return v })

	eng2 := NewEngine(Options{})
	_, err := eng2.Restore(Descriptor(src))
	require.NoError(t, err)
	restored, err := eng2.Restore(Descriptor(anon))
	require.NoError(t, err)

	// Structure restored, evaluation refused.
	require.Len(t, restored.Dependencies(), 1)
	_, err = eng2.Collect(ctx, restored)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not rebound")
}

func TestCanonicalBytesStable(t *testing.T) {
	a, err := CanonicalBytes(KV{Key: "k", Value: []any{1, 2}})
	require.NoError(t, err)
	b, err := CanonicalBytes(KV{Key: "k", Value: []any{1, 2}})
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := CanonicalBytes(KV{Key: "k", Value: []any{2, 1}})
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}
