// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"encoding/binary"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/gvdb-go/gvdb/internal/mmfile"
)

// File is an open GVDB file.  It owns (or borrows) the backing bytes;
// hash tables obtained from it reference the same backing and must
// not outlive a Close.  A File is immutable after construction and
// safe for concurrent readers.
type File struct {
	data        []byte
	unmap       func() error
	root        pointer
	byteswapped bool
	trusted     bool
}

// FromBytes interprets data as a GVDB file.  The header is parsed and
// validated immediately; hash tables are validated when constructed.
func FromBytes(data []byte) (*File, error) {
	return fromBytes(data, false)
}

// FromBytesTrusted is FromBytes without the whole-table invariant
// sweep on HashTable construction.  Bounds and alignment checks on
// every dereference still run; trust buys performance, not unsafety.
func FromBytesTrusted(data []byte) (*File, error) {
	return fromBytes(data, true)
}

func fromBytes(data []byte, trusted bool) (*File, error) {
	f := &File{data: data, trusted: trusted}
	if err := f.readHeader(); err != nil {
		return nil, err
	}
	return f, nil
}

// FromFile reads the file at path into memory and parses it.
func FromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s): %w", path, err)
	}
	return FromBytes(data)
}

// FromFileMmap maps the file at path read-only and parses it.  The
// mapping lives until Close.  The file must not be modified on disk
// while the mapping is active.
func FromFileMmap(path string) (*File, error) {
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("mmfile.Map(%s): %w", path, err)
	}
	f := &File{data: data, unmap: unmap}
	if err := f.readHeader(); err != nil {
		_ = unmap()
		return nil, err
	}
	return f, nil
}

func (f *File) readHeader() error {
	var h fileHeader
	if err := h.unmarshalBytes(f.data); err != nil {
		return err
	}
	byteswapped, err := h.byteswapped()
	if err != nil {
		return err
	}
	f.byteswapped = byteswapped
	if h.version != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, h.version)
	}
	f.root = h.root
	return nil
}

// HashTable dereferences the root pointer and returns the root hash
// table of the file.
func (f *File) HashTable() (*HashTable, error) {
	data, err := f.dereference(f.root, 4)
	if err != nil {
		return nil, fmt.Errorf("root table: %w", err)
	}
	return newHashTable(f, data)
}

// ByteOrder returns the byte order GVariant payloads in this file are
// encoded with.
func (f *File) ByteOrder() binary.ByteOrder {
	if f.byteswapped {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// IsValid reports whether the header parsed cleanly and the root
// pointer stays inside the file.
func (f *File) IsValid() bool {
	if f == nil || len(f.data) < fileHeaderSize {
		return false
	}
	_, err := f.dereference(f.root, 4)
	return err == nil
}

// Close releases the memory mapping, if any.  Hash tables obtained
// from the file must not be used afterwards.
func (f *File) Close() error {
	if f.unmap == nil {
		return nil
	}
	unmap := f.unmap
	f.unmap = nil
	f.data = nil
	return unmap()
}

// dereference resolves a pointer to the byte range it denotes,
// checking bounds and alignment.
func (f *File) dereference(p pointer, alignment int) ([]byte, error) {
	start, end := int(p.start), int(p.end)
	if start > end || end > len(f.data) {
		return nil, fmt.Errorf("%w: [%d, %d) in file of %d bytes", ErrDataOffset, start, end, len(f.data))
	}
	if alignment > 1 && start%alignment != 0 {
		return nil, fmt.Errorf("%w: offset %d is not %d-byte aligned", ErrDataAlignment, start, alignment)
	}
	return f.data[start:end], nil
}

// itemKey resolves the key-suffix string an item references.
func (f *File) itemKey(it hashItem) (string, error) {
	data, err := f.dereference(it.keyPointer(), 1)
	if err != nil {
		return "", fmt.Errorf("item key: %w", err)
	}
	if !utf8.Valid(data) {
		return "", dataErrorf("item key at offset %d is not valid UTF-8", it.keyStart)
	}
	return string(data), nil
}
