// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package dataflow

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// FuncRegistry maps registered names to user functions. The engine cannot
// serialize opaque functions into the event log, so restoring a dataset from
// a DatasetRegistration record rebinds its function by name through a
// registry. Functions registered under the same name in two processes must
// behave identically for replayed checksums to be meaningful.
type FuncRegistry struct {
	mu sync.RWMutex
	m  map[string]any
}

// DefaultFuncs is the registry engines use unless Options.Funcs overrides
// it.
var DefaultFuncs = NewFuncRegistry()

// NewFuncRegistry returns an empty registry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{m: make(map[string]any)}
}

// RegisterMap registers a map function under name.
func (r *FuncRegistry) RegisterMap(name string, f func(any) any) {
	r.register(name, f)
}

// RegisterFilter registers a filter predicate under name.
func (r *FuncRegistry) RegisterFilter(name string, p func(any) bool) {
	r.register(name, p)
}

// RegisterFlatMap registers a flat-map function under name.
func (r *FuncRegistry) RegisterFlatMap(name string, f func(any) []any) {
	r.register(name, f)
}

// RegisterReduce registers a reduce function under name.
func (r *FuncRegistry) RegisterReduce(name string, f func(any, any) any) {
	r.register(name, f)
}

func (r *FuncRegistry) register(name string, fn any) {
	if name == "" {
		panic(errors.AssertionFailedf("dataflow: registered function needs a name"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[name] = fn
}

func lookupFunc[T any](r *FuncRegistry, name, op string) (T, error) {
	var zero T
	if name == "" {
		// Anonymous function: the dataset restores structurally but cannot
		// be re-evaluated.
		return zero, nil
	}
	r.mu.RLock()
	fn, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		return zero, errors.Newf("dataflow: function %q is not registered", name)
	}
	typed, ok := fn.(T)
	if !ok {
		return zero, errors.Newf("dataflow: function %q has the wrong type %T for op %s", name, fn, op)
	}
	return typed, nil
}
