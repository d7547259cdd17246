// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package lineage

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/dataflow"
	"github.com/cockroachdb/lineage/tag"
)

// Strategy selects how a backward trace steps across shuffle boundaries.
// The zero value, UsingMappings, is the default.
type Strategy uint8

const (
	// UsingMappings translates tags across each shuffle boundary through a
	// join of adjacent stages' tagged datasets. Tag sets stay small; no
	// per-stage driver materialization of element sets. The default.
	UsingMappings Strategy = iota
	// MaintainingSet materializes the set of interesting elements on the
	// driver at every stage boundary and recurses with a membership
	// predicate.
	MaintainingSet
	// SingleStep propagates unique tags end-to-end in one pass, ignoring
	// stage boundaries. Correct, but reduce-site tag unions may grow with
	// the number of intervening stages.
	SingleStep
)

func (s Strategy) String() string {
	switch s {
	case UsingMappings:
		return "using-mappings"
	case MaintainingSet:
		return "maintaining-set"
	case SingleStep:
		return "single-step"
	default:
		return "unknown"
	}
}

// Tracer answers lineage queries against datasets of one engine. A tracer is
// driver-side, single-threaded state; run traces sequentially.
type Tracer struct {
	eng *dataflow.Engine
}

// NewTracer returns a tracer over eng's datasets.
func NewTracer(eng *dataflow.Engine) *Tracer {
	return &Tracer{eng: eng}
}

// TraceForward returns the elements of e that were derived, transitively,
// from elements of s satisfying pred.
func (t *Tracer) TraceForward(
	ctx context.Context, s *dataflow.Dataset, pred func(any) bool, e *dataflow.Dataset,
) ([]any, error) {
	if err := checkAcyclic(e); err != nil {
		return nil, err
	}
	if s.ID() == e.ID() {
		return t.collectMatching(ctx, s, pred)
	}
	if !hasPath(s, e) {
		return nil, nil
	}
	taggedE, err := tagThrough(e, s, PredicateTag(s, pred))
	if err != nil {
		return nil, err
	}
	tagged, err := t.collectTagged(ctx, taggedE)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, tv := range tagged {
		if tv.Tag.IsNonEmpty() {
			out = append(out, tv.Elem)
		}
	}
	return out, nil
}

// TraceBackward returns the elements of s that contributed to elements of e
// satisfying pred, using the given strategy.
func (t *Tracer) TraceBackward(
	ctx context.Context, s *dataflow.Dataset, pred func(any) bool, e *dataflow.Dataset, strategy Strategy,
) ([]any, error) {
	switch strategy {
	case UsingMappings:
		return t.TraceBackwardUsingMappings(ctx, s, pred, e)
	case MaintainingSet:
		return t.TraceBackwardMaintainingSet(ctx, s, pred, e)
	case SingleStep:
		return t.TraceBackwardSingleStep(ctx, s, pred, e)
	default:
		return nil, errors.AssertionFailedf("lineage: unknown strategy %d", strategy)
	}
}

// TraceBackwardSingleStep runs a backward trace as one end-to-end tagging
// pass: uniquely tag s, propagate to e, reduce the tags of matching sink
// elements into a broadcast set, and intersect it with a fresh unique
// tagging of s.
func (t *Tracer) TraceBackwardSingleStep(
	ctx context.Context, s *dataflow.Dataset, pred func(any) bool, e *dataflow.Dataset,
) ([]any, error) {
	if err := checkAcyclic(e); err != nil {
		return nil, err
	}
	if s.ID() == e.ID() {
		return t.collectMatching(ctx, s, pred)
	}
	if !hasPath(s, e) {
		return nil, nil
	}
	taggedE, err := tagThrough(e, s, UniqueTag(s))
	if err != nil {
		return nil, err
	}
	tagged, err := t.collectTagged(ctx, taggedE)
	if err != nil {
		return nil, err
	}
	tstar := tag.Empty()
	for _, tv := range tagged {
		if pred(tv.Elem) {
			tstar = tag.Union(tstar, tv.Tag)
		}
	}

	bc := t.eng.Broadcast(tstar.ToBytes())
	interesting := tag.FromBytes(bc.Value().([]byte))
	retagged := UniqueTag(s).Filter("", func(v any) bool {
		return tag.Intersect(v.(Tagged).Tag, interesting).IsNonEmpty()
	})
	matched, err := t.collectTagged(ctx, retagged)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(matched))
	for i, tv := range matched {
		out[i] = tv.Elem
	}
	return out, nil
}

// TraceBackwardMaintainingSet runs a backward trace stage by stage. At each
// shuffle boundary the set of interesting elements is made concrete on the
// driver, so the tag sets of the next stage stay small at the cost of one
// materialization per stage.
func (t *Tracer) TraceBackwardMaintainingSet(
	ctx context.Context, s *dataflow.Dataset, pred func(any) bool, e *dataflow.Dataset,
) ([]any, error) {
	if s.ID() == e.ID() {
		return t.collectMatching(ctx, s, pred)
	}
	recs, err := Stages(s, e)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		tagged, err := t.collectTagged(ctx, rec.TaggedEnd)
		if err != nil {
			return nil, err
		}
		tstar := tag.Empty()
		for _, tv := range tagged {
			if pred(tv.Elem) {
				tstar = tag.Union(tstar, tv.Tag)
			}
		}

		first, err := t.collectTagged(ctx, UniqueTag(rec.First))
		if err != nil {
			return nil, err
		}
		var matched []any
		for _, tv := range first {
			if tag.Intersect(tv.Tag, tstar).IsNonEmpty() {
				matched = append(matched, tv.Elem)
			}
		}
		if rec.First.ID() == s.ID() {
			return matched, nil
		}

		set := make(map[string]bool, len(matched))
		for _, v := range matched {
			k, err := dataflow.CanonicalKey(v)
			if err != nil {
				return nil, err
			}
			set[k] = true
		}
		pred = func(v any) bool {
			k, err := dataflow.CanonicalKey(v)
			return err == nil && set[k]
		}
	}
	return nil, errors.AssertionFailedf("lineage: stage walk from %d never reached source %d", e.ID(), s.ID())
}

// TraceBackwardUsingMappings runs a backward trace by building, per shuffle
// boundary, a mapping from the next stage's fresh unique tags to the
// previous stage's tags (a join of the adjacent tagged datasets on their
// untagged elements), then folding the mappings from sink to source to step
// the set of interesting tags back one stage at a time.
func (t *Tracer) TraceBackwardUsingMappings(
	ctx context.Context, s *dataflow.Dataset, pred func(any) bool, e *dataflow.Dataset,
) ([]any, error) {
	if s.ID() == e.ID() {
		return t.collectMatching(ctx, s, pred)
	}
	recs, err := Stages(s, e)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	last, err := t.collectTagged(ctx, recs[len(recs)-1].TaggedEnd)
	if err != nil {
		return nil, err
	}
	interest := tag.Empty()
	for _, tv := range last {
		if pred(tv.Elem) {
			interest = tag.Union(interest, tv.Tag)
		}
	}

	for i := len(recs) - 1; i >= 1; i-- {
		// recs[i-1].TaggedEnd and UniqueTag(recs[i].First) cover the same
		// dataset: one carries the previous stage's tags, the other this
		// stage's fresh singletons. Joining them on the element value
		// translates "tags of interest" one stage back.
		prev, err := t.collectTagged(ctx, recs[i-1].TaggedEnd)
		if err != nil {
			return nil, err
		}
		prevByElem := make(map[string]tag.Tag, len(prev))
		for _, tv := range prev {
			k, err := dataflow.CanonicalKey(tv.Elem)
			if err != nil {
				return nil, err
			}
			prevByElem[k] = tag.Union(prevByElem[k], tv.Tag)
		}

		fresh, err := t.collectTagged(ctx, UniqueTag(recs[i].First))
		if err != nil {
			return nil, err
		}
		next := tag.Empty()
		for _, tv := range fresh {
			if !tag.Intersect(tv.Tag, interest).IsNonEmpty() {
				continue
			}
			k, err := dataflow.CanonicalKey(tv.Elem)
			if err != nil {
				return nil, err
			}
			next = tag.Union(next, prevByElem[k])
		}
		interest = next
	}

	src, err := t.collectTagged(ctx, UniqueTag(s))
	if err != nil {
		return nil, err
	}
	var out []any
	for _, tv := range src {
		if tag.Intersect(tv.Tag, interest).IsNonEmpty() {
			out = append(out, tv.Elem)
		}
	}
	return out, nil
}

// tagThrough rebuilds e as a tagged dataset, substituting taggedS for s and
// lifting every transform on the way, shuffle boundaries included. Datasets
// with no path from s contribute empty tags.
func tagThrough(e, s *dataflow.Dataset, taggedS *dataflow.Dataset) (*dataflow.Dataset, error) {
	memo := make(map[int]*dataflow.Dataset)
	var build func(r *dataflow.Dataset) (*dataflow.Dataset, error)
	build = func(r *dataflow.Dataset) (*dataflow.Dataset, error) {
		if r.ID() == s.ID() {
			return taggedS, nil
		}
		if d, ok := memo[r.ID()]; ok {
			return d, nil
		}
		if !hasPath(s, r) {
			d := wrapEmpty(r)
			memo[r.ID()] = d
			return d, nil
		}
		deps := r.Dependencies()
		taggedParents := make([]*dataflow.Dataset, len(deps))
		for i, dep := range deps {
			tp, err := build(dep.Parent)
			if err != nil {
				return nil, err
			}
			taggedParents[i] = tp
		}
		lifted, err := Lift(r, taggedParents)
		if err != nil {
			return nil, err
		}
		memo[r.ID()] = lifted
		return lifted, nil
	}
	return build(e)
}

func (t *Tracer) collectTagged(ctx context.Context, d *dataflow.Dataset) ([]Tagged, error) {
	elems, err := t.eng.Collect(ctx, d)
	if err != nil {
		return nil, err
	}
	out := make([]Tagged, len(elems))
	for i, v := range elems {
		out[i] = v.(Tagged)
	}
	return out, nil
}

func (t *Tracer) collectMatching(
	ctx context.Context, d *dataflow.Dataset, pred func(any) bool,
) ([]any, error) {
	elems, err := t.eng.Collect(ctx, d)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, v := range elems {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
