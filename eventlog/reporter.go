// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package eventlog

import (
	"sync"

	"github.com/cockroachdb/lineage/internal/base"
	"github.com/prometheus/client_golang/prometheus"
)

// ReporterOptions tunes a Reporter.
type ReporterOptions struct {
	// Writer, if set, persists every reported event to a log.
	Writer *Writer
	// Logger defaults to base.DefaultLogger.
	Logger base.Logger
	// BufferSize is the capacity of the event channel. Defaults to 256.
	BufferSize int
}

// Reporter is the process-wide event sink of a driver. Events from any
// goroutine funnel through a single-writer actor that appends them to the
// log (if one is attached) and fans them out to subscribers, in order.
// Subscribers run on the actor goroutine and must not block.
type Reporter struct {
	opts    ReporterOptions
	metrics *ReporterMetrics
	ch      chan Event
	done    chan struct{}

	mu struct {
		sync.RWMutex
		stopped bool
		subs    []func(Event)
	}
}

// NewReporter starts a reporter. Stop it to flush the attached writer and
// release the actor.
func NewReporter(opts ReporterOptions) *Reporter {
	if opts.Logger == nil {
		opts.Logger = base.DefaultLogger{}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	r := &Reporter{
		opts:    opts,
		metrics: newReporterMetrics(),
		ch:      make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Reporter) run() {
	defer close(r.done)
	for e := range r.ch {
		r.metrics.EventsReported.Inc()
		if r.opts.Writer != nil {
			if err := r.opts.Writer.AddEvent(e); err != nil {
				r.metrics.WriteErrors.Inc()
				r.opts.Logger.Errorf("eventlog: dropping %s record: %v", e.EventKind(), err)
			}
		}
		r.mu.RLock()
		subs := r.mu.subs
		r.mu.RUnlock()
		for _, fn := range subs {
			fn(e)
		}
	}
}

// Report enqueues an event. Events reported after Stop are dropped.
func (r *Reporter) Report(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.mu.stopped {
		r.metrics.EventsDropped.Inc()
		return
	}
	r.ch <- e
}

// Subscribe registers a callback invoked for every subsequent event. Used by
// live log readers to follow a running engine.
func (r *Reporter) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := make([]func(Event), len(r.mu.subs)+1)
	copy(subs, r.mu.subs)
	subs[len(subs)-1] = fn
	r.mu.subs = subs
}

// Stop drains pending events, flushes the attached writer and stops the
// actor. Idempotent.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.mu.stopped {
		r.mu.Unlock()
		return
	}
	r.mu.stopped = true
	r.mu.Unlock()

	close(r.ch)
	<-r.done
	if r.opts.Writer != nil {
		if err := r.opts.Writer.Close(); err != nil {
			r.opts.Logger.Errorf("eventlog: closing log writer: %v", err)
		}
	}
}

// Metrics returns the reporter's metrics collector.
func (r *Reporter) Metrics() *ReporterMetrics {
	return r.metrics
}

// ReporterMetrics exports reporter counters. It implements
// prometheus.Collector so callers can register it with their registry.
type ReporterMetrics struct {
	EventsReported prometheus.Counter
	EventsDropped  prometheus.Counter
	WriteErrors    prometheus.Counter
}

func newReporterMetrics() *ReporterMetrics {
	return &ReporterMetrics{
		EventsReported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineage_eventlog_events_reported_total",
			Help: "Events accepted by the reporter.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineage_eventlog_events_dropped_total",
			Help: "Events dropped because the reporter was stopped.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineage_eventlog_write_errors_total",
			Help: "Event records that failed to append to the log.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *ReporterMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.EventsReported.Describe(ch)
	m.EventsDropped.Describe(ch)
	m.WriteErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *ReporterMetrics) Collect(ch chan<- prometheus.Metric) {
	m.EventsReported.Collect(ch)
	m.EventsDropped.Collect(ch)
	m.WriteErrors.Collect(ch)
}
