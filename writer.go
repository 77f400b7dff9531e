// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/gvdb-go/gvdb/gvariant"
)

const (
	// GLib's gvdb-builder stamps bloom shift 5 into the
	// region header even though no bloom words are emitted
	writerBloomShift = 5

	defaultBufferSize = 4 * 1024 * 1024
)

// chunk is one contiguous region of the output file, placed at the
// offsets its pointer records.
type chunk struct {
	ptr  pointer
	data []byte
}

// WriterOption configures a FileWriter.
type WriterOption func(*writerOptions)

type writerOptions struct {
	logger *slog.Logger
}

// WithWriterLogger sets an optional logger the writer uses for
// progress updates.  If not provided, no logging output is produced.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(opts *writerOptions) {
		opts.logger = logger
	}
}

// FileWriter serializes a HashTableBuilder into the GVDB layout.  A
// writer is single-use: one call to WriteTo or Bytes consumes it.
//
// The layout is deterministic: the same insertions and byte order
// always produce identical output.
type FileWriter struct {
	offset      int
	chunks      []chunk
	order       binary.ByteOrder
	byteswapped bool
	logger      *slog.Logger
}

// NewFileWriter returns a writer producing little-endian files, the
// preferred byte order.
func NewFileWriter(opts ...WriterOption) *FileWriter {
	return NewFileWriterWithByteOrder(binary.LittleEndian, opts...)
}

// NewFileWriterWithByteOrder returns a writer that encodes GVariant
// payloads with the given byte order and marks the header
// accordingly.  Structural metadata is little-endian either way,
// matching GLib's gvdb implementation.
func NewFileWriterWithByteOrder(order binary.ByteOrder, opts ...WriterOption) *FileWriter {
	var options writerOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}
	w := &FileWriter{
		order:       order,
		byteswapped: order.String() == binary.BigEndian.String(),
		logger:      options.logger,
	}
	w.allocateChunk(make([]byte, fileHeaderSize), 1)
	return w
}

// allocateChunk places data at the next offset aligned to alignment
// and returns the chunk index.
func (w *FileWriter) allocateChunk(data []byte, alignment int) int {
	w.offset = alignOffset(w.offset, alignment)
	start := w.offset
	w.offset += len(data)
	w.chunks = append(w.chunks, chunk{
		ptr:  pointer{start: uint32(start), end: uint32(w.offset)},
		data: data,
	})
	return len(w.chunks) - 1
}

func (w *FileWriter) addValue(v gvariant.Value) (int, error) {
	data, err := v.MarshalVariant(w.order)
	if err != nil {
		return 0, fmt.Errorf("serializing value: %w", err)
	}
	return w.allocateChunk(data, 8), nil
}

func (w *FileWriter) addRawValue(sig string, raw []byte) (int, error) {
	data, err := gvariant.VariantBytes(sig, raw)
	if err != nil {
		return 0, fmt.Errorf("serializing value: %w", err)
	}
	return w.allocateChunk(data, 8), nil
}

func (w *FileWriter) addString(s string) int {
	return w.allocateChunk([]byte(s), 1)
}

// addHashTable lays out one hash table region plus, interleaved in
// item order, the key-suffix strings and value chunks its items
// reference.  Nested tables recurse.
func (w *FileWriter) addHashTable(tb *HashTableBuilder) (int, error) {
	table, err := tb.build()
	if err != nil {
		return 0, err
	}

	nBuckets := len(table.buckets)
	nItems := table.nItems
	w.logger.Debug("laying out hash table", "items", nItems, "buckets", nBuckets)

	// assignment pass: indices in bucket-emission order
	n := uint32(0)
	for _, head := range table.buckets {
		for item := head; item != nil; item = item.next {
			item.assigned = n
			n++
		}
	}

	size := hashHeaderSize + 4*nBuckets + hashItemSize*nItems
	tableIdx := w.allocateChunk(make([]byte, size), 4)

	region := w.chunks[tableIdx].data
	binary.LittleEndian.PutUint32(region[0:4], writerBloomShift<<27)
	binary.LittleEndian.PutUint32(region[4:8], uint32(nBuckets))

	bucketsOffset := hashHeaderSize
	itemsOffset := bucketsOffset + 4*nBuckets

	nItem := 0
	for b, head := range table.buckets {
		binary.LittleEndian.PutUint32(region[bucketsOffset+4*b:], uint32(nItem))

		for item := head; item != nil; item = item.next {
			parent := noParent
			keySuffix := item.key
			if item.parent != nil {
				parent = item.parent.assigned
				keySuffix = trimKeyPrefix(item.key, item.parent.key)
			}
			if keySuffix == "" {
				return 0, consistencyErrorf("item %q produces an empty key suffix", item.key)
			}
			if len(keySuffix) > math.MaxUint16 {
				return 0, consistencyErrorf("key suffix of %q is longer than %d bytes", item.key, math.MaxUint16)
			}

			keyPtr := w.chunks[w.addString(keySuffix)].ptr

			var valuePtr pointer
			switch item.value.typ {
			case typeValue:
				var idx int
				var err error
				if item.value.isRaw {
					idx, err = w.addRawValue(item.value.rawSig, item.value.raw)
				} else {
					idx, err = w.addValue(item.value.value)
				}
				if err != nil {
					return 0, fmt.Errorf("value for key %q: %w", item.key, err)
				}
				valuePtr = w.chunks[idx].ptr
			case typeTable:
				idx, err := w.addHashTable(item.value.table)
				if err != nil {
					return 0, fmt.Errorf("table for key %q: %w", item.key, err)
				}
				valuePtr = w.chunks[idx].ptr
			case typeContainer:
				idx, err := w.addContainer(table, item)
				if err != nil {
					return 0, err
				}
				valuePtr = w.chunks[idx].ptr
			}

			hi := hashItem{
				hashValue: item.hash,
				parent:    parent,
				keyStart:  keyPtr.start,
				keySize:   uint16(len(keySuffix)),
				typ:       item.value.typ,
				value:     valuePtr,
			}
			// the chunk slice may have grown; re-resolve the region
			hi.marshalTo(w.chunks[tableIdx].data[itemsOffset+hashItemSize*nItem:])
			nItem++
		}
	}

	return tableIdx, nil
}

// addContainer emits a directory item's child-index list.
func (w *FileWriter) addContainer(table *writerTable, item *builderItem) (int, error) {
	data := make([]byte, 4*len(item.value.children))
	for i, child := range item.value.children {
		childItem, ok := table.byKey[child]
		if !ok {
			return 0, consistencyErrorf("child %q not found for directory %q", child, item.key)
		}
		binary.LittleEndian.PutUint32(data[4*i:], childItem.assigned)
	}
	return w.allocateChunk(data, 4), nil
}

// trimKeyPrefix returns the part of key after the parent key, the
// suffix stored in the file.
func trimKeyPrefix(key, parentKey string) string {
	if len(parentKey) <= len(key) && key[:len(parentKey)] == parentKey {
		return key[len(parentKey):]
	}
	return ""
}

func (w *FileWriter) serialize(rootIdx int, out io.Writer) (int, error) {
	if rootIdx < 0 || rootIdx >= len(w.chunks) {
		return 0, consistencyErrorf("root chunk %d not found", rootIdx)
	}

	h := newFileHeader(w.byteswapped, w.chunks[rootIdx].ptr)
	h.marshalTo(w.chunks[0].data)

	bw := bufio.NewWriterSize(out, defaultBufferSize)
	size := 0
	for _, c := range w.chunks {
		if pad := int(c.ptr.start) - size; pad > 0 {
			if _, err := bw.Write(make([]byte, pad)); err != nil {
				return size, fmt.Errorf("write padding: %w", err)
			}
			size += pad
		}
		if _, err := bw.Write(c.data); err != nil {
			return size, fmt.Errorf("write chunk: %w", err)
		}
		size += len(c.data)
	}
	if err := bw.Flush(); err != nil {
		return size, fmt.Errorf("flush: %w", err)
	}
	w.logger.Debug("serialized gvdb file", "chunks", len(w.chunks), "bytes", size)
	return size, nil
}

// WriteTo lays out the builder's table and streams the file to out,
// returning the number of bytes written.
func (w *FileWriter) WriteTo(tb *HashTableBuilder, out io.Writer) (int, error) {
	rootIdx, err := w.addHashTable(tb)
	if err != nil {
		return 0, err
	}
	return w.serialize(rootIdx, out)
}

// Bytes lays out the builder's table and returns the file contents.
func (w *FileWriter) Bytes(tb *HashTableBuilder) ([]byte, error) {
	rootIdx, err := w.addHashTable(tb)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(w.offset)
	if _, err := w.serialize(rootIdx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
