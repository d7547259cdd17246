// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package base holds the small contracts shared by every lineage package.
package base

import (
	"fmt"
	"log"
	"os"
)

// Logger defines an interface for writing log messages. The library never
// imposes a logging backend: embedders supply their own implementation, and
// DefaultLogger routes to the Go stdlib log package.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger struct{}

// Infof implements Logger.Infof.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Errorf implements Logger.Errorf.
func (DefaultLogger) Errorf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements Logger.Fatalf.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// NopLogger discards Infof and Errorf messages and panics on Fatalf. Useful
// in tests that exercise anomaly paths on purpose.
type NopLogger struct{}

// Infof implements Logger.Infof.
func (NopLogger) Infof(format string, args ...interface{}) {}

// Errorf implements Logger.Errorf.
func (NopLogger) Errorf(format string, args ...interface{}) {}

// Fatalf implements Logger.Fatalf.
func (NopLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Errorf(format, args...))
}
