// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package lineage

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/dataflow"
	"github.com/cockroachdb/lineage/tag"
)

// Lift rebuilds d on tagged parents, producing the tagged dataset whose
// untagged projection equals d and whose tags obey the propagation rules:
//
//	map/filter/flatMap  output keeps its input's tag
//	union               each element keeps the tag from its origin
//	cartesian           tag(a) ∪ tag(b)
//	groupByKey          the group's tag is the union over merged values
//	reduceByKey         union of all merged tags
//
// taggedParents must correspond one-to-one, in order, to d.Dependencies().
// User functions stay opaque: Lift composes wrapper transforms around them
// that read and reassemble the tag field. A variant without a lift case
// fails with ErrUnsupportedLineageOp.
func Lift(d *dataflow.Dataset, taggedParents []*dataflow.Dataset) (*dataflow.Dataset, error) {
	if got, want := len(taggedParents), len(d.Dependencies()); got != want {
		return nil, errors.AssertionFailedf("lineage: lifting dataset %d: %d tagged parents, want %d", d.ID(), got, want)
	}

	switch op := d.Transform().(type) {
	case dataflow.Map:
		f := op.F
		return taggedParents[0].Map("", func(v any) any {
			t := v.(Tagged)
			return Tagged{Elem: f(t.Elem), Tag: t.Tag}
		}), nil

	case dataflow.Filter:
		p := op.P
		return taggedParents[0].Filter("", func(v any) bool {
			return p(v.(Tagged).Elem)
		}), nil

	case dataflow.FlatMap:
		f := op.F
		return taggedParents[0].FlatMap("", func(v any) []any {
			t := v.(Tagged)
			outs := f(t.Elem)
			tagged := make([]any, len(outs))
			for i, o := range outs {
				tagged[i] = Tagged{Elem: o, Tag: t.Tag}
			}
			return tagged
		}), nil

	case dataflow.Union:
		return taggedParents[0].Union(taggedParents[1:]...), nil

	case dataflow.Cartesian:
		prod := taggedParents[0].Cartesian(taggedParents[1])
		return prod.Map("", func(v any) any {
			pair := v.(dataflow.Pair)
			a, b := pair.A.(Tagged), pair.B.(Tagged)
			return Tagged{
				Elem: dataflow.Pair{A: a.Elem, B: b.Elem},
				Tag:  tag.Union(a.Tag, b.Tag),
			}
		}), nil

	case dataflow.GroupByKey:
		// Push the tag inside the value so the shuffle still sees KV
		// elements, then reassemble the group with the union of its values'
		// tags.
		grouped := shuffleInput(taggedParents[0]).GroupByKey()
		return grouped.Map("", func(v any) any {
			kv := v.(dataflow.KV)
			merged := kv.Value.([]any)
			values := make([]any, len(merged))
			t := tag.Empty()
			for i, m := range merged {
				tv := m.(Tagged)
				values[i] = tv.Elem
				t = tag.Union(t, tv.Tag)
			}
			return Tagged{Elem: dataflow.KV{Key: kv.Key, Value: values}, Tag: t}
		}), nil

	case dataflow.ReduceByKey:
		r := op.R
		reduced := shuffleInput(taggedParents[0]).ReduceByKey("", func(a, b any) any {
			ta, tb := a.(Tagged), b.(Tagged)
			return Tagged{Elem: r(ta.Elem, tb.Elem), Tag: tag.Union(ta.Tag, tb.Tag)}
		})
		return reduced.Map("", func(v any) any {
			kv := v.(dataflow.KV)
			tv := kv.Value.(Tagged)
			return Tagged{Elem: dataflow.KV{Key: kv.Key, Value: tv.Elem}, Tag: tv.Tag}
		}), nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedLineageOp, "dataset %d (%s)", d.ID(), d.Transform().OpName())
	}
}

// shuffleInput rewrites Tagged{KV{k, v}, t} as KV{k, Tagged{v, t}} so that a
// shuffle over tagged elements keys on the user's key while the tag rides in
// the value.
func shuffleInput(taggedParent *dataflow.Dataset) *dataflow.Dataset {
	return taggedParent.Map("", func(v any) any {
		t := v.(Tagged)
		kv := t.Elem.(dataflow.KV)
		return dataflow.KV{Key: kv.Key, Value: Tagged{Elem: kv.Value, Tag: t.Tag}}
	})
}
