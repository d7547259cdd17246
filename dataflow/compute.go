// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package dataflow

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/eventlog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrTaskFailed marks errors caused by a task function panicking. The
// original cause is preserved and can be tested with errors.Is.
var ErrTaskFailed = errors.New("dataflow: task failed")

// Collect evaluates d and returns its elements in partition order. The call
// blocks until every partition completes; ctx cancels outstanding work.
func (e *Engine) Collect(ctx context.Context, d *Dataset) ([]any, error) {
	if d.eng != e {
		return nil, errors.AssertionFailedf("dataflow: dataset %d belongs to a different engine", d.id)
	}
	e.registerGraph(d)
	e.submitTasks(d)

	parts := make([][]any, d.numPartitions)
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < d.numPartitions; p++ {
		p := p
		g.Go(func() error {
			elems, err := e.partition(gctx, d, p)
			if err != nil {
				return err
			}
			parts[p] = elems
			e.reportResultChecksum(d, p, elems)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []any
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

func (e *Engine) submitTasks(d *Dataset) {
	if e.opts.Reporter == nil {
		return
	}
	stageID := e.allocStageID()
	tasks := make([]eventlog.TaskDescriptor, d.numPartitions)
	for p := range tasks {
		tasks[p] = eventlog.TaskDescriptor{
			TaskID:    uuid.New().String(),
			StageID:   stageID,
			DatasetID: d.id,
			Partition: p,
		}
	}
	e.report(eventlog.TaskSubmission{Tasks: tasks})
}

func (e *Engine) reportResultChecksum(d *Dataset, p int, elems []any) {
	if e.opts.DisableChecksums || e.opts.Reporter == nil {
		return
	}
	body, err := CanonicalBytes(elems)
	if err != nil {
		e.opts.Logger.Errorf("dataflow: skipping result checksum for dataset %d partition %d: %v", d.id, p, err)
		return
	}
	e.report(eventlog.ResultTaskChecksum{
		DatasetID:      d.id,
		Partition:      p,
		FuncChecksum:   funcChecksum(d.op),
		ResultChecksum: checksum32(body),
	})
}

// partition returns the elements of partition p of d, evaluating it at most
// once per engine. Concurrent callers of the same partition share one
// evaluation, which is what keeps unique tag assignment stable.
func (e *Engine) partition(ctx context.Context, d *Dataset, p int) ([]any, error) {
	key := partKey{dataset: d.id, partition: p}
	e.mu.Lock()
	if c, ok := e.mu.parts[key]; ok {
		e.mu.Unlock()
		select {
		case <-c.done:
			return c.elems, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &partCall{done: make(chan struct{})}
	e.mu.parts[key] = c
	e.mu.Unlock()

	c.elems, c.err = e.computePartition(ctx, d, p)
	if isContextErr(c.err) {
		// A canceled evaluation must not poison the cache; a later job with
		// a live context recomputes the partition.
		e.mu.Lock()
		delete(e.mu.parts, key)
		e.mu.Unlock()
	}
	close(c.done)
	return c.elems, c.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) computePartition(ctx context.Context, d *Dataset, p int) (_ []any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			e.report(eventlog.LocalException{
				TaskID:    uuid.New().String(),
				DatasetID: d.id,
				Partition: p,
				Message:   fmt.Sprint(r),
			})
			if rerr, ok := r.(error); ok {
				err = errors.Wrapf(rerr, "dataflow: dataset %d partition %d", d.id, p)
			} else {
				err = errors.Newf("dataflow: dataset %d partition %d: %v", d.id, p, r)
			}
			err = errors.Mark(err, ErrTaskFailed)
		}
	}()

	switch op := d.op.(type) {
	case Parallelize:
		if p >= len(op.Data) {
			return nil, errors.AssertionFailedf("dataflow: partition %d of %d-partition source", p, len(op.Data))
		}
		return op.Data[p], nil

	case Map:
		if op.F == nil {
			return nil, errors.Newf("dataflow: dataset %d: opaque function not rebound", d.id)
		}
		in, err := e.partition(ctx, d.parents[0], p)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(in))
		for i, v := range in {
			out[i] = op.F(v)
		}
		return out, nil

	case Filter:
		if op.P == nil {
			return nil, errors.Newf("dataflow: dataset %d: opaque function not rebound", d.id)
		}
		in, err := e.partition(ctx, d.parents[0], p)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, v := range in {
			if op.P(v) {
				out = append(out, v)
			}
		}
		return out, nil

	case FlatMap:
		if op.F == nil {
			return nil, errors.Newf("dataflow: dataset %d: opaque function not rebound", d.id)
		}
		in, err := e.partition(ctx, d.parents[0], p)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, v := range in {
			out = append(out, op.F(v)...)
		}
		return out, nil

	case MapPartitionsWithIndex:
		if op.F == nil {
			return nil, errors.Newf("dataflow: dataset %d: opaque function not rebound", d.id)
		}
		in, err := e.partition(ctx, d.parents[0], p)
		if err != nil {
			return nil, err
		}
		return op.F(p, in), nil

	case Union:
		q := p
		for _, parent := range d.parents {
			if q < parent.numPartitions {
				return e.partition(ctx, parent, q)
			}
			q -= parent.numPartitions
		}
		return nil, errors.AssertionFailedf("dataflow: union partition %d out of range", p)

	case Cartesian:
		a, b := d.parents[0], d.parents[1]
		pa, pb := p/b.numPartitions, p%b.numPartitions
		as, err := e.partition(ctx, a, pa)
		if err != nil {
			return nil, err
		}
		bs, err := e.partition(ctx, b, pb)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(as)*len(bs))
		for _, av := range as {
			for _, bv := range bs {
				out = append(out, Pair{A: av, B: bv})
			}
		}
		return out, nil

	case GroupByKey:
		return e.reducePartition(ctx, d, op.ShuffleID, p, nil)

	case ReduceByKey:
		if op.R == nil {
			return nil, errors.Newf("dataflow: dataset %d: opaque function not rebound", d.id)
		}
		return e.reducePartition(ctx, d, op.ShuffleID, p, op.R)

	default:
		return nil, errors.AssertionFailedf("dataflow: unknown transform %T", d.op)
	}
}

// reducePartition evaluates one reduce-side partition of a shuffle. With a
// nil reducer it groups (groupByKey); otherwise it folds each key's values
// with the reducer. Grouping preserves the arrival order of keys and values,
// which is part of the engine's determinism contract.
func (e *Engine) reducePartition(
	ctx context.Context, d *Dataset, shuffleID, p int, reduce func(any, any) any,
) ([]any, error) {
	if err := e.runShuffleMap(ctx, d, shuffleID); err != nil {
		return nil, err
	}
	parent := d.parents[0]

	type group struct {
		key    any
		values []any
	}
	var order []string
	groups := make(map[string]*group)
	for q := 0; q < parent.numPartitions; q++ {
		e.mu.Lock()
		block := e.mu.blocks[blockKey{shuffleID: shuffleID, mapPart: q, reducePart: p}]
		e.mu.Unlock()
		for _, v := range block {
			kv := v.(KV)
			ck, err := CanonicalKey(kv.Key)
			if err != nil {
				return nil, err
			}
			g, ok := groups[ck]
			if !ok {
				g = &group{key: kv.Key}
				groups[ck] = g
				order = append(order, ck)
			}
			g.values = append(g.values, kv.Value)
		}
	}

	out := make([]any, 0, len(order))
	for _, ck := range order {
		g := groups[ck]
		if reduce == nil {
			out = append(out, KV{Key: g.key, Value: g.values})
			continue
		}
		acc := g.values[0]
		for _, v := range g.values[1:] {
			acc = reduce(acc, v)
		}
		out = append(out, KV{Key: g.key, Value: acc})
	}
	return out, nil
}

// runShuffleMap materializes the map side of a shuffle exactly once: every
// parent partition is evaluated and its KV elements are bucketed by key hash
// into the shuffle's blocks.
func (e *Engine) runShuffleMap(ctx context.Context, d *Dataset, shuffleID int) error {
	e.mu.Lock()
	if c, ok := e.mu.shuffles[shuffleID]; ok {
		e.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &shuffleCall{done: make(chan struct{})}
	e.mu.shuffles[shuffleID] = c
	e.mu.Unlock()

	c.err = e.shuffleMapSide(ctx, d, shuffleID)
	if isContextErr(c.err) {
		e.mu.Lock()
		delete(e.mu.shuffles, shuffleID)
		e.mu.Unlock()
	}
	close(c.done)
	return c.err
}

func (e *Engine) shuffleMapSide(ctx context.Context, d *Dataset, shuffleID int) error {
	parent := d.parents[0]
	e.submitTasks(parent)

	g, gctx := errgroup.WithContext(ctx)
	for q := 0; q < parent.numPartitions; q++ {
		q := q
		g.Go(func() error {
			in, err := e.partition(gctx, parent, q)
			if err != nil {
				return err
			}
			buckets := make([][]any, d.numPartitions)
			for _, v := range in {
				kv, ok := v.(KV)
				if !ok {
					return errors.Newf("dataflow: shuffle %d: element %T is not a KV", shuffleID, v)
				}
				kb, err := CanonicalBytes(kv.Key)
				if err != nil {
					return err
				}
				r := int(partitionHash(kb) % uint32(d.numPartitions))
				buckets[r] = append(buckets[r], v)
			}
			e.mu.Lock()
			for r, block := range buckets {
				e.mu.blocks[blockKey{shuffleID: shuffleID, mapPart: q, reducePart: r}] = block
			}
			e.mu.Unlock()
			e.reportShuffleChecksums(d, shuffleID, q, buckets)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) reportShuffleChecksums(d *Dataset, shuffleID, mapPart int, buckets [][]any) {
	if e.opts.DisableChecksums || e.opts.Reporter == nil {
		return
	}
	var all []byte
	for r, block := range buckets {
		body, err := CanonicalBytes(block)
		if err != nil {
			e.opts.Logger.Errorf("dataflow: skipping block checksum for shuffle %d: %v", shuffleID, err)
			return
		}
		e.report(eventlog.BlockChecksum{
			BlockID:       fmt.Sprintf("shuffle_%d_%d_%d", shuffleID, mapPart, r),
			BytesChecksum: checksum32(body),
		})
		all = append(all, body...)
	}
	e.report(eventlog.ShuffleMapTaskChecksum{
		DatasetID:            d.id,
		Partition:            mapPart,
		AccumUpdatesChecksum: checksum32(all),
	})
}
