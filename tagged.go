// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package lineage answers forward and backward lineage queries over a
// dataflow DAG. It cannot inspect the user functions inside transforms, so
// it wraps datasets into tagged datasets: every element carries a tag naming
// the source elements whose identity reached it, and every transform variant
// is lifted to a tag-preserving counterpart. Traces then reduce to building
// tagged datasets and reading their tags back.
package lineage

import (
	"github.com/cockroachdb/lineage/dataflow"
	"github.com/cockroachdb/lineage/tag"
)

// Tagged pairs a dataset element with the tag naming the traced source
// elements that contributed to it. An empty tag means no traced source
// contributed.
type Tagged struct {
	Elem any
	Tag  tag.Tag
}

// wrapEmpty lifts d into a tagged dataset whose elements all carry the empty
// tag. Used for parents that are outside the traced subgraph.
func wrapEmpty(d *dataflow.Dataset) *dataflow.Dataset {
	return d.Map("", func(v any) any {
		return Tagged{Elem: v}
	})
}
