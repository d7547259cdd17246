// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package eventlog records and replays the events a dataflow engine emits
// while executing: dataset registrations, task submissions, and the
// checksums that make divergence between two runs of the same computation
// detectable. The log is an append-only sequence of length-prefixed,
// checksummed, msgpack-encoded records (see record.go for the framing).
package eventlog

// Kind discriminates event-log entries. Kind values are part of the wire
// format and must not be renumbered.
type Kind uint8

const (
	kindInvalid Kind = iota
	// KindDatasetRegistration records the full structure of a dataset the
	// first time it is submitted.
	KindDatasetRegistration
	// KindTaskSubmission records the task descriptors of a submitted stage.
	KindTaskSubmission
	// KindResultTaskChecksum records the checksum of one result partition.
	KindResultTaskChecksum
	// KindShuffleMapTaskChecksum records the checksum of one shuffle map
	// task's output.
	KindShuffleMapTaskChecksum
	// KindBlockChecksum records the checksum of one shuffle block.
	KindBlockChecksum
	// KindLocalException records a task failure on the local node.
	KindLocalException
	// KindRemoteException records a task failure reported by a remote node.
	KindRemoteException
)

func (k Kind) String() string {
	switch k {
	case KindDatasetRegistration:
		return "dataset-registration"
	case KindTaskSubmission:
		return "task-submission"
	case KindResultTaskChecksum:
		return "result-task-checksum"
	case KindShuffleMapTaskChecksum:
		return "shuffle-map-task-checksum"
	case KindBlockChecksum:
		return "block-checksum"
	case KindLocalException:
		return "local-exception"
	case KindRemoteException:
		return "remote-exception"
	default:
		return "unknown"
	}
}

// Event is an event-log entry.
type Event interface {
	EventKind() Kind
}

// DependencyDescriptor is one edge of a registered dataset.
type DependencyDescriptor struct {
	Kind     uint8 `msgpack:"kind"`
	ParentID int   `msgpack:"parent_id"`
}

// DatasetDescriptor is the serializable structure of a dataset. Opaque user
// functions travel by registered name only; a descriptor whose FuncName is
// empty carries a function that cannot be rebound on replay.
type DatasetDescriptor struct {
	ID            int                    `msgpack:"id"`
	Op            string                 `msgpack:"op"`
	FuncName      string                 `msgpack:"func_name,omitempty"`
	NumPartitions int                    `msgpack:"num_partitions"`
	ShuffleID     int                    `msgpack:"shuffle_id,omitempty"`
	Deps          []DependencyDescriptor `msgpack:"deps,omitempty"`
	// Data holds the source elements of a parallelized dataset, one slice
	// per partition.
	Data [][]any `msgpack:"data,omitempty"`
}

// DatasetRegistration records a dataset on its first submission.
type DatasetRegistration struct {
	Dataset DatasetDescriptor `msgpack:"dataset"`
}

// TaskDescriptor identifies one task of a submitted stage.
type TaskDescriptor struct {
	TaskID    string `msgpack:"task_id"`
	StageID   int    `msgpack:"stage_id"`
	DatasetID int    `msgpack:"dataset_id"`
	Partition int    `msgpack:"partition"`
}

// TaskSubmission records the tasks of one submitted stage.
type TaskSubmission struct {
	Tasks []TaskDescriptor `msgpack:"tasks"`
}

// ResultTaskChecksum records the checksums of one result partition: the
// checksum of the partition's elements and the checksum of the function
// signature that produced them.
type ResultTaskChecksum struct {
	DatasetID      int    `msgpack:"dataset_id"`
	Partition      int    `msgpack:"partition"`
	FuncChecksum   uint32 `msgpack:"func_checksum"`
	ResultChecksum uint32 `msgpack:"result_checksum"`
}

// ShuffleMapTaskChecksum records the checksum of one shuffle map task's
// output, accumulator updates included.
type ShuffleMapTaskChecksum struct {
	DatasetID            int    `msgpack:"dataset_id"`
	Partition            int    `msgpack:"partition"`
	AccumUpdatesChecksum uint32 `msgpack:"accum_updates_checksum"`
}

// BlockChecksum records the checksum of one shuffle block's bytes.
type BlockChecksum struct {
	BlockID       string `msgpack:"block_id"`
	BytesChecksum uint32 `msgpack:"bytes_checksum"`
}

// LocalException records a task failure on the driver's node.
type LocalException struct {
	TaskID    string `msgpack:"task_id"`
	DatasetID int    `msgpack:"dataset_id"`
	Partition int    `msgpack:"partition"`
	Message   string `msgpack:"message"`
}

// RemoteException records a task failure reported over the event-reporter
// transport by a remote node.
type RemoteException struct {
	TaskID   string `msgpack:"task_id"`
	HostPort string `msgpack:"host_port"`
	Message  string `msgpack:"message"`
}

// Unknown carries a record whose kind this build does not understand.
// Readers surface it so that replay can log and skip it.
type Unknown struct {
	RawKind uint8
	Payload []byte
}

func (DatasetRegistration) EventKind() Kind    { return KindDatasetRegistration }
func (TaskSubmission) EventKind() Kind         { return KindTaskSubmission }
func (ResultTaskChecksum) EventKind() Kind     { return KindResultTaskChecksum }
func (ShuffleMapTaskChecksum) EventKind() Kind { return KindShuffleMapTaskChecksum }
func (BlockChecksum) EventKind() Kind          { return KindBlockChecksum }
func (LocalException) EventKind() Kind         { return KindLocalException }
func (RemoteException) EventKind() Kind        { return KindRemoteException }
func (Unknown) EventKind() Kind                { return kindInvalid }
