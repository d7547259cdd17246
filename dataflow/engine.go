// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package dataflow implements a deterministic, in-memory, bulk-synchronous
// dataflow engine: partitioned datasets built from a closed set of transform
// variants, evaluated lazily one partition at a time, with shuffles between
// stages. It exists to give the lineage core (the root package) a concrete
// collaborator satisfying the engine contract: stable dataset ids, narrow
// and shuffle dependency edges, deterministic re-evaluation, collect and
// broadcast, and event reporting with reproducible checksums.
package dataflow

import (
	"sync"

	"github.com/cockroachdb/lineage/eventlog"
	"github.com/cockroachdb/lineage/internal/base"
	"github.com/cockroachdb/swiss"
)

// Reporter consumes the events the engine emits while executing jobs. The
// eventlog package provides the standard implementation; the interface keeps
// the engine decoupled from where events end up.
type Reporter interface {
	Report(e eventlog.Event)
}

// Options tunes an Engine.
type Options struct {
	// NumPartitions is the partition count of shuffle outputs. Defaults
	// to 4.
	NumPartitions int
	// DisableChecksums turns off checksum computation and reporting.
	DisableChecksums bool
	// Reporter receives engine events. May be nil.
	Reporter Reporter
	// Logger defaults to base.DefaultLogger.
	Logger base.Logger
	// Funcs resolves registered function names when datasets are restored
	// from an event log. Defaults to DefaultFuncs.
	Funcs *FuncRegistry
}

// EnsureDefaults fills unset options with their defaults.
func (o *Options) EnsureDefaults() *Options {
	if o.NumPartitions <= 0 {
		o.NumPartitions = 4
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	if o.Funcs == nil {
		o.Funcs = DefaultFuncs
	}
	return o
}

type partKey struct {
	dataset   int
	partition int
}

type blockKey struct {
	shuffleID  int
	mapPart    int
	reducePart int
}

// partCall is the singleflight slot for one partition evaluation. The first
// caller computes; concurrent callers wait on done.
type partCall struct {
	done  chan struct{}
	elems []any
	err   error
}

// shuffleCall is the singleflight slot for one shuffle's map side.
type shuffleCall struct {
	done chan struct{}
	err  error
}

// Engine evaluates datasets. All driver-side state lives here; evaluation of
// the partitions of a single dataset is parallel, everything else is
// serialized through mu.
type Engine struct {
	opts Options

	mu struct {
		sync.Mutex
		nextDatasetID int
		nextShuffleID int
		nextStageID   int
		datasets      swiss.Map[int, *Dataset]
		registered    map[int]bool
		parts         map[partKey]*partCall
		shuffles      map[int]*shuffleCall
		blocks        map[blockKey][]any
	}
}

// NewEngine returns an engine with the given options.
func NewEngine(opts Options) *Engine {
	opts.EnsureDefaults()
	e := &Engine{opts: opts}
	e.mu.datasets.Init(16)
	e.mu.registered = make(map[int]bool)
	e.mu.parts = make(map[partKey]*partCall)
	e.mu.shuffles = make(map[int]*shuffleCall)
	e.mu.blocks = make(map[blockKey][]any)
	return e
}

// Parallelize creates a source dataset from explicit partitions.
func (e *Engine) Parallelize(parts [][]any) *Dataset {
	return e.newDataset(Parallelize{Data: parts}, nil, len(parts))
}

// ParallelizeSlice creates a source dataset by splitting elems into
// numPartitions contiguous chunks.
func (e *Engine) ParallelizeSlice(elems []any, numPartitions int) *Dataset {
	if numPartitions <= 0 {
		numPartitions = e.opts.NumPartitions
	}
	parts := make([][]any, numPartitions)
	for i := range parts {
		lo := i * len(elems) / numPartitions
		hi := (i + 1) * len(elems) / numPartitions
		parts[i] = elems[lo:hi]
	}
	return e.Parallelize(parts)
}

// Dataset returns the dataset with the given id, if the engine knows it.
func (e *Engine) Dataset(id int) (*Dataset, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mu.datasets.Get(id)
}

func (e *Engine) newDataset(op Transform, parents []*Dataset, numPartitions int) *Dataset {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := &Dataset{
		eng:           e,
		id:            e.mu.nextDatasetID,
		op:            op,
		parents:       parents,
		numPartitions: numPartitions,
	}
	e.mu.nextDatasetID++
	e.mu.datasets.Put(d.id, d)
	return d
}

func (e *Engine) allocShuffleID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.mu.nextShuffleID
	e.mu.nextShuffleID++
	return id
}

func (e *Engine) allocStageID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.mu.nextStageID
	e.mu.nextStageID++
	return id
}

// UpdateDatasetID bumps the dataset id watermark so that ids below n are
// never allocated. Used when replaying an event log into a live engine.
func (e *Engine) UpdateDatasetID(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > e.mu.nextDatasetID {
		e.mu.nextDatasetID = n
	}
}

// UpdateShuffleID bumps the shuffle id watermark.
func (e *Engine) UpdateShuffleID(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > e.mu.nextShuffleID {
		e.mu.nextShuffleID = n
	}
}

// UpdateStageID bumps the stage id watermark.
func (e *Engine) UpdateStageID(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > e.mu.nextStageID {
		e.mu.nextStageID = n
	}
}

// Broadcast wraps v as an immutable snapshot visible to all tasks. Distinct
// broadcasts are independent; callers must not mutate v afterwards.
func (e *Engine) Broadcast(v any) *Broadcast {
	return &Broadcast{v: v}
}

// Broadcast is an immutable value shipped to every task of a job.
type Broadcast struct {
	v any
}

// Value returns the broadcast value.
func (b *Broadcast) Value() any { return b.v }

func (e *Engine) report(ev eventlog.Event) {
	if e.opts.Reporter != nil {
		e.opts.Reporter.Report(ev)
	}
}

// Descriptor returns the serializable structure of d.
func Descriptor(d *Dataset) eventlog.DatasetDescriptor {
	desc := eventlog.DatasetDescriptor{
		ID:            d.id,
		Op:            d.op.OpName(),
		FuncName:      FuncName(d.op),
		NumPartitions: d.numPartitions,
	}
	switch op := d.op.(type) {
	case Parallelize:
		desc.Data = op.Data
	case GroupByKey:
		desc.ShuffleID = op.ShuffleID
	case ReduceByKey:
		desc.ShuffleID = op.ShuffleID
	}
	for _, dep := range d.Dependencies() {
		desc.Deps = append(desc.Deps, eventlog.DependencyDescriptor{
			Kind:     uint8(dep.Kind),
			ParentID: dep.Parent.ID(),
		})
	}
	return desc
}

// registerGraph reports a DatasetRegistration for every dataset reachable
// from d that has not been registered yet, parents before children.
func (e *Engine) registerGraph(d *Dataset) {
	e.mu.Lock()
	seen := e.mu.registered[d.id]
	e.mu.Unlock()
	if seen {
		return
	}
	for _, dep := range d.Dependencies() {
		e.registerGraph(dep.Parent)
	}
	e.mu.Lock()
	if e.mu.registered[d.id] {
		e.mu.Unlock()
		return
	}
	e.mu.registered[d.id] = true
	e.mu.Unlock()
	e.report(eventlog.DatasetRegistration{Dataset: Descriptor(d)})
}
