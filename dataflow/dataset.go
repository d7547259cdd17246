// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package dataflow

import "fmt"

// DepKind distinguishes the two dependency shapes in the dataset DAG.
type DepKind uint8

const (
	// Narrow dependencies map each output partition to a bounded set of
	// parent partitions with no data movement.
	Narrow DepKind = iota
	// Shuffle dependencies separate output partitions from all parent
	// partitions by an all-to-all exchange.
	Shuffle
)

func (k DepKind) String() string {
	switch k {
	case Narrow:
		return "narrow"
	case Shuffle:
		return "shuffle"
	default:
		return fmt.Sprintf("DepKind(%d)", k)
	}
}

// Dependency is an edge from a dataset to one of its parents.
type Dependency struct {
	Kind   DepKind
	Parent *Dataset
}

// Dataset is a partitioned, lazily evaluated collection. Datasets are
// immutable once created: their id, transform and parents never change.
// Evaluation is deterministic, so re-collecting a dataset reproduces the
// same elements in the same per-partition order.
type Dataset struct {
	eng           *Engine
	id            int
	op            Transform
	parents       []*Dataset
	numPartitions int
}

// ID returns the dataset's engine-unique id.
func (d *Dataset) ID() int { return d.id }

// NumPartitions returns the dataset's partition count.
func (d *Dataset) NumPartitions() int { return d.numPartitions }

// Transform returns the dataset's transform variant.
func (d *Dataset) Transform() Transform { return d.op }

// Engine returns the engine that owns d.
func (d *Dataset) Engine() *Engine { return d.eng }

// Dependencies returns the dataset's edges to its parents, in parent order.
func (d *Dataset) Dependencies() []Dependency {
	kind := Narrow
	switch d.op.(type) {
	case GroupByKey, ReduceByKey:
		kind = Shuffle
	}
	deps := make([]Dependency, len(d.parents))
	for i, p := range d.parents {
		deps[i] = Dependency{Kind: kind, Parent: p}
	}
	return deps
}

func (d *Dataset) String() string {
	return fmt.Sprintf("dataset %d (%s, %d partitions)", d.id, d.op.OpName(), d.numPartitions)
}

// Map derives a dataset applying f to every element. name may be "" for an
// anonymous function; anonymous functions cannot be rebound when replaying
// an event log.
func (d *Dataset) Map(name string, f func(any) any) *Dataset {
	return d.eng.newDataset(Map{Name: name, F: f}, []*Dataset{d}, d.numPartitions)
}

// Filter derives a dataset retaining the elements for which p holds.
func (d *Dataset) Filter(name string, p func(any) bool) *Dataset {
	return d.eng.newDataset(Filter{Name: name, P: p}, []*Dataset{d}, d.numPartitions)
}

// FlatMap derives a dataset applying f to every element and concatenating
// the results.
func (d *Dataset) FlatMap(name string, f func(any) []any) *Dataset {
	return d.eng.newDataset(FlatMap{Name: name, F: f}, []*Dataset{d}, d.numPartitions)
}

// MapPartitionsWithIndex derives a dataset applying f to each whole
// partition together with its index.
func (d *Dataset) MapPartitionsWithIndex(name string, f func(part int, elems []any) []any) *Dataset {
	return d.eng.newDataset(MapPartitionsWithIndex{Name: name, F: f}, []*Dataset{d}, d.numPartitions)
}

// Union derives the concatenation of d and others. Partitions of the result
// are the parents' partitions in parent order.
func (d *Dataset) Union(others ...*Dataset) *Dataset {
	parents := append([]*Dataset{d}, others...)
	n := 0
	for _, p := range parents {
		n += p.numPartitions
	}
	return d.eng.newDataset(Union{}, parents, n)
}

// Cartesian derives the cartesian product of d and other as Pair elements.
func (d *Dataset) Cartesian(other *Dataset) *Dataset {
	return d.eng.newDataset(Cartesian{}, []*Dataset{d, other},
		d.numPartitions*other.numPartitions)
}

// GroupByKey shuffles KV elements, emitting one KV{Key, []any} per distinct
// key.
func (d *Dataset) GroupByKey() *Dataset {
	eng := d.eng
	return eng.newDataset(GroupByKey{ShuffleID: eng.allocShuffleID()},
		[]*Dataset{d}, eng.opts.NumPartitions)
}

// ReduceByKey shuffles KV elements and folds the values of each key with r.
func (d *Dataset) ReduceByKey(name string, r func(any, any) any) *Dataset {
	eng := d.eng
	return eng.newDataset(ReduceByKey{Name: name, R: r, ShuffleID: eng.allocShuffleID()},
		[]*Dataset{d}, eng.opts.NumPartitions)
}
