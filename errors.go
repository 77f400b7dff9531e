// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMagic means the file doesn't start with the GVDB
	// signature in either byte order.
	ErrInvalidMagic = errors.New("invalid signature -- not a GVDB file or corrupted")
	// ErrInvalidVersion means the header carries a format version this
	// library can't read.
	ErrInvalidVersion = errors.New("unknown GVDB file format version")
	// ErrDataOffset means a pointer referenced a byte range outside
	// the file, or with start past end.
	ErrDataOffset = errors.New("invalid data offset")
	// ErrDataAlignment means a pointer to structured data was not
	// aligned as the format requires.
	ErrDataAlignment = errors.New("unaligned data")
)

// DataError reports a structural inconsistency found while reading,
// naming the violated invariant.
type DataError string

func (e DataError) Error() string {
	return fmt.Sprintf("data inconsistency: %s", string(e))
}

func dataErrorf(format string, args ...interface{}) DataError {
	return DataError(fmt.Sprintf(format, args...))
}

// KeyNotFoundError is returned by lookups for keys that don't exist
// in the hash table.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("the item with the key %q does not exist", e.Key)
}

// ConsistencyError reports an internal inconsistency in a builder,
// like a duplicate key or a broken parent/child link.
type ConsistencyError string

func (e ConsistencyError) Error() string {
	return fmt.Sprintf("internal inconsistency: %s", string(e))
}

func consistencyErrorf(format string, args ...interface{}) ConsistencyError {
	return ConsistencyError(fmt.Sprintf(format, args...))
}
