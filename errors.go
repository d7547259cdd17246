// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package lineage

import "github.com/cockroachdb/errors"

// ErrUnsupportedLineageOp is returned when a trace reaches a transform
// variant that has no lifted form. The trace fails; engine state is
// unchanged.
var ErrUnsupportedLineageOp = errors.New("lineage: transform has no lifted form")

// ErrCyclicLineage is returned when the dependency graph violates the DAG
// invariant.
var ErrCyclicLineage = errors.New("lineage: dependency graph contains a cycle")

// ErrTagSpaceExhausted is returned when a unique tag id cannot be encoded
// within the 64-bit id space.
var ErrTagSpaceExhausted = errors.New("lineage: tag id space exhausted")
