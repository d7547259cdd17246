// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package dataflow

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/spaolacci/murmur3"
	"github.com/vmihailenco/msgpack/v5"
)

// checksumSeed seeds every content checksum so results are reproducible
// across runs. The value is part of the log format.
const checksumSeed = 42

// checksum32 is the stable non-cryptographic hash used for task, result and
// block checksums.
func checksum32(b []byte) uint32 {
	return murmur3.Sum32WithSeed(b, checksumSeed)
}

// partitionHash routes a key to a shuffle bucket. Unseeded so that bucket
// assignment and content checksums stay independent.
func partitionHash(keyBytes []byte) uint32 {
	return murmur3.Sum32(keyBytes)
}

// funcChecksum identifies a transform's function: variant name plus the
// registered function name. Anonymous functions all hash alike, which is the
// best an engine with opaque functions can do.
func funcChecksum(t Transform) uint32 {
	return checksum32([]byte(t.OpName() + "/" + FuncName(t)))
}

// CanonicalBytes encodes v into a deterministic byte form: msgpack with
// sorted map keys. Two values that compare equal element-wise encode to the
// same bytes, which makes the encoding usable both for checksums and as a
// join key when tracing across shuffle boundaries.
func CanonicalBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrapf(err, "dataflow: canonical encoding of %T", v)
	}
	return buf.Bytes(), nil
}

// CanonicalKey is CanonicalBytes as a map key.
func CanonicalKey(v any) (string, error) {
	b, err := CanonicalBytes(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
