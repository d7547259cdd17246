// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package dataflow

// Transform is the closed set of dataset variants the engine evaluates. User
// functions inside a variant are opaque callables: the engine applies them
// but never inspects them. Each variant that a lineage trace may encounter
// has a lifted counterpart in the root lineage package; adding a variant here
// without adding its lift case makes traces over it fail, intentionally.
type Transform interface {
	// OpName returns the variant's stable name. It participates in function
	// checksums and event-log records, so it must not change across releases.
	OpName() string
}

// KV is a keyed element. Shuffle variants require their input elements to be
// KVs.
type KV struct {
	Key   any
	Value any
}

// Pair is an element of a cartesian product.
type Pair struct {
	A any
	B any
}

// Parallelize is a source dataset: one slice of elements per partition.
type Parallelize struct {
	Data [][]any
}

// Map applies F to every element.
type Map struct {
	Name string
	F    func(any) any
}

// Filter retains the elements for which P holds.
type Filter struct {
	Name string
	P    func(any) bool
}

// FlatMap applies F to every element and concatenates the results.
type FlatMap struct {
	Name string
	F    func(any) []any
}

// MapPartitionsWithIndex applies F to each whole partition, passing the
// partition index. F must be deterministic in (index, elems).
type MapPartitionsWithIndex struct {
	Name string
	F    func(part int, elems []any) []any
}

// Union concatenates the partitions of all parents.
type Union struct{}

// Cartesian pairs every element of the first parent with every element of
// the second.
type Cartesian struct{}

// GroupByKey shuffles KV elements and emits one KV{Key, []any} per distinct
// key.
type GroupByKey struct {
	ShuffleID int
}

// ReduceByKey shuffles KV elements and folds the values of each key with R.
type ReduceByKey struct {
	Name      string
	R         func(any, any) any
	ShuffleID int
}

// OpName implementations. These names are wire/checksum-stable.
func (Parallelize) OpName() string            { return "parallelize" }
func (Map) OpName() string                    { return "map" }
func (Filter) OpName() string                 { return "filter" }
func (FlatMap) OpName() string                { return "flatMap" }
func (MapPartitionsWithIndex) OpName() string { return "mapPartitionsWithIndex" }
func (Union) OpName() string                  { return "union" }
func (Cartesian) OpName() string              { return "cartesian" }
func (GroupByKey) OpName() string             { return "groupByKey" }
func (ReduceByKey) OpName() string            { return "reduceByKey" }

// FuncName returns the registered name of the variant's user function, or ""
// when the function is anonymous (such functions cannot be rebound on
// replay).
func FuncName(t Transform) string {
	switch v := t.(type) {
	case Map:
		return v.Name
	case Filter:
		return v.Name
	case FlatMap:
		return v.Name
	case MapPartitionsWithIndex:
		return v.Name
	case ReduceByKey:
		return v.Name
	}
	return ""
}
