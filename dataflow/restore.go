// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package dataflow

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/lineage/eventlog"
)

// Restore rebuilds a dataset from a DatasetRegistration descriptor,
// resolving its parents from the engine and its function from the func
// registry. The dataset keeps the descriptor's id; the engine's id and
// shuffle watermarks are bumped past it so later allocations do not collide.
//
// A descriptor with an empty FuncName restores structurally: dependency
// edges and partitioning are intact, but evaluating the dataset fails
// because the opaque function cannot be rebound.
func (e *Engine) Restore(desc eventlog.DatasetDescriptor) (*Dataset, error) {
	parents := make([]*Dataset, len(desc.Deps))
	for i, dep := range desc.Deps {
		p, ok := e.Dataset(dep.ParentID)
		if !ok {
			return nil, errors.Newf("dataflow: restore of dataset %d: parent %d unknown", desc.ID, dep.ParentID)
		}
		parents[i] = p
	}

	op, err := e.restoreTransform(desc)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.mu.datasets.Get(desc.ID); ok {
		return nil, errors.Newf("dataflow: dataset id %d already in use", desc.ID)
	}
	d := &Dataset{
		eng:           e,
		id:            desc.ID,
		op:            op,
		parents:       parents,
		numPartitions: desc.NumPartitions,
	}
	e.mu.datasets.Put(d.id, d)
	e.mu.registered[d.id] = true
	if desc.ID >= e.mu.nextDatasetID {
		e.mu.nextDatasetID = desc.ID + 1
	}
	if desc.ShuffleID >= e.mu.nextShuffleID {
		switch op.(type) {
		case GroupByKey, ReduceByKey:
			e.mu.nextShuffleID = desc.ShuffleID + 1
		}
	}
	return d, nil
}

func (e *Engine) restoreTransform(desc eventlog.DatasetDescriptor) (Transform, error) {
	funcs := e.opts.Funcs
	switch desc.Op {
	case "parallelize":
		return Parallelize{Data: desc.Data}, nil
	case "map":
		f, err := lookupFunc[func(any) any](funcs, desc.FuncName, desc.Op)
		if err != nil {
			return nil, err
		}
		return Map{Name: desc.FuncName, F: f}, nil
	case "filter":
		p, err := lookupFunc[func(any) bool](funcs, desc.FuncName, desc.Op)
		if err != nil {
			return nil, err
		}
		return Filter{Name: desc.FuncName, P: p}, nil
	case "flatMap":
		f, err := lookupFunc[func(any) []any](funcs, desc.FuncName, desc.Op)
		if err != nil {
			return nil, err
		}
		return FlatMap{Name: desc.FuncName, F: f}, nil
	case "mapPartitionsWithIndex":
		f, err := lookupFunc[func(int, []any) []any](funcs, desc.FuncName, desc.Op)
		if err != nil {
			return nil, err
		}
		return MapPartitionsWithIndex{Name: desc.FuncName, F: f}, nil
	case "union":
		return Union{}, nil
	case "cartesian":
		return Cartesian{}, nil
	case "groupByKey":
		return GroupByKey{ShuffleID: desc.ShuffleID}, nil
	case "reduceByKey":
		r, err := lookupFunc[func(any, any) any](funcs, desc.FuncName, desc.Op)
		if err != nil {
			return nil, err
		}
		return ReduceByKey{Name: desc.FuncName, R: r, ShuffleID: desc.ShuffleID}, nil
	default:
		return nil, errors.Newf("dataflow: unknown transform %q in registration", desc.Op)
	}
}
