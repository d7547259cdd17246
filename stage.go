// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package lineage

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/dataflow"
)

// StageRecord describes one stage of a trace between a source and a sink:
// the first dataset of the stage reachable from the source, and the stage's
// sink rebuilt as a tagged dataset seeded from a unique tagging of that
// first dataset.
type StageRecord struct {
	First     *dataflow.Dataset
	TaggedEnd *dataflow.Dataset
}

// Stages decomposes the dependency subgraph between s and e into stages
// separated by shuffle boundaries, in dependency order from s toward e. The
// result is empty when s and e coincide or no path connects them.
func Stages(s, e *dataflow.Dataset) ([]StageRecord, error) {
	if err := checkAcyclic(e); err != nil {
		return nil, err
	}
	return stages(s, e)
}

func stages(s, e *dataflow.Dataset) ([]StageRecord, error) {
	if s.ID() == e.ID() || !hasPath(s, e) {
		return nil, nil
	}
	w := &stageTagger{
		source:  s,
		parents: parentStages(e),
		memo:    make(map[int]taggedFirst),
	}
	tf, err := w.tagWithinStage(e)
	if err != nil {
		return nil, err
	}
	if tf.first.ID() == e.ID() {
		return nil, errors.AssertionFailedf("lineage: stage walk did not advance past dataset %d", e.ID())
	}
	rest, err := stages(s, tf.first)
	if err != nil {
		return nil, err
	}
	return append(rest, StageRecord{First: tf.first, TaggedEnd: tf.tagged}), nil
}

// hasPath reports whether s is an ancestor of (or equal to) r.
func hasPath(s, r *dataflow.Dataset) bool {
	visited := make(map[int]bool)
	var walk func(d *dataflow.Dataset) bool
	walk = func(d *dataflow.Dataset) bool {
		if d.ID() == s.ID() {
			return true
		}
		if visited[d.ID()] {
			return false
		}
		visited[d.ID()] = true
		for _, dep := range d.Dependencies() {
			if walk(dep.Parent) {
				return true
			}
		}
		return false
	}
	return walk(r)
}

// parentStages collects the datasets that are direct shuffle-parents of any
// dataset in e's stage: breadth-first across narrow edges, stopping at
// shuffle boundaries.
func parentStages(e *dataflow.Dataset) map[int]bool {
	out := make(map[int]bool)
	visited := map[int]bool{e.ID(): true}
	queue := []*dataflow.Dataset{e}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		for _, dep := range d.Dependencies() {
			if dep.Kind == dataflow.Shuffle {
				out[dep.Parent.ID()] = true
				continue
			}
			if !visited[dep.Parent.ID()] {
				visited[dep.Parent.ID()] = true
				queue = append(queue, dep.Parent)
			}
		}
	}
	return out
}

// checkAcyclic walks the ancestry of e and fails with ErrCyclicLineage if a
// dataset is its own ancestor. The engine's construction rules make this
// impossible, but replayed graphs are taken on faith.
func checkAcyclic(e *dataflow.Dataset) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[int]int)
	var walk func(d *dataflow.Dataset) error
	walk = func(d *dataflow.Dataset) error {
		switch state[d.ID()] {
		case done:
			return nil
		case visiting:
			return errors.Wrapf(ErrCyclicLineage, "dataset %d", d.ID())
		}
		state[d.ID()] = visiting
		for _, dep := range d.Dependencies() {
			if err := walk(dep.Parent); err != nil {
				return err
			}
		}
		state[d.ID()] = done
		return nil
	}
	return walk(e)
}

type taggedFirst struct {
	tagged *dataflow.Dataset
	first  *dataflow.Dataset
}

// stageTagger rebuilds one stage's sink as a tagged dataset, seeding unique
// tags at the stage's entry points (the source itself, or the shuffle
// parents feeding the stage). Memoization keeps diamonds within a stage from
// being rebuilt twice; tags still union across converging paths because the
// unique tagging of a shared ancestor is deterministic.
type stageTagger struct {
	source  *dataflow.Dataset
	parents map[int]bool
	memo    map[int]taggedFirst
}

func (w *stageTagger) tagWithinStage(r *dataflow.Dataset) (taggedFirst, error) {
	if tf, ok := w.memo[r.ID()]; ok {
		return tf, nil
	}
	tf, err := w.tagWithinStageUncached(r)
	if err != nil {
		return taggedFirst{}, err
	}
	w.memo[r.ID()] = tf
	return tf, nil
}

func (w *stageTagger) tagWithinStageUncached(r *dataflow.Dataset) (taggedFirst, error) {
	if !hasPath(w.source, r) {
		return taggedFirst{tagged: wrapEmpty(r), first: w.source}, nil
	}
	if r.ID() == w.source.ID() || w.parents[r.ID()] {
		return taggedFirst{tagged: UniqueTag(r), first: r}, nil
	}

	deps := r.Dependencies()
	taggedParents := make([]*dataflow.Dataset, len(deps))
	// The stage's first dataset is the one with the largest id among the
	// firsts of the recursive calls: the most-derived shared ancestor.
	first := w.source
	for i, dep := range deps {
		tf, err := w.tagWithinStage(dep.Parent)
		if err != nil {
			return taggedFirst{}, err
		}
		taggedParents[i] = tf.tagged
		if tf.first.ID() > first.ID() {
			first = tf.first
		}
	}
	lifted, err := Lift(r, taggedParents)
	if err != nil {
		return taggedFirst{}, err
	}
	return taggedFirst{tagged: lifted, first: first}, nil
}
