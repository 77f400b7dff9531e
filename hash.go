// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gvdb-go/gvdb/gvariant"
)

const (
	hashHeaderSize = 8

	// the low 27 bits of the first header word hold n_bloom_words,
	// the high 5 bits the bloom shift
	bloomWordsMask = (1 << 27) - 1
)

// HashTable is a read-only view of one hash table region inside a
// File.  It borrows the File's backing bytes.
type HashTable struct {
	file       *File
	data       []byte
	bloomShift uint32
	nBloom     uint32
	nBuckets   uint32
	nItems     int
}

func newHashTable(f *File, data []byte) (*HashTable, error) {
	if len(data) < hashHeaderSize {
		return nil, dataErrorf("hash table region too short: %d < %d bytes", len(data), hashHeaderSize)
	}
	word0 := binary.LittleEndian.Uint32(data[0:4])
	t := &HashTable{
		file:       f,
		data:       data,
		bloomShift: word0 >> 27,
		nBloom:     word0 & bloomWordsMask,
		nBuckets:   binary.LittleEndian.Uint32(data[4:8]),
	}

	fixed := hashHeaderSize + 4*int64(t.nBloom) + 4*int64(t.nBuckets)
	if fixed > int64(len(data)) {
		return nil, dataErrorf("not enough bytes to fit hash table: expected at least %d, got %d", fixed, len(data))
	}
	rest := int64(len(data)) - fixed
	if rest%hashItemSize != 0 {
		return nil, dataErrorf("item array size invalid: expected a multiple of %d, got %d", hashItemSize, rest)
	}
	t.nItems = int(rest / hashItemSize)

	if !f.trusted {
		if err := t.validate(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// validate sweeps the whole region once, checking the invariants the
// rest of the reader then relies on: monotone bucket starts, in-range
// acyclic parent links, known type tags and consistent bucket
// residues.
func (t *HashTable) validate() error {
	prev := uint32(0)
	for b := 0; b < int(t.nBuckets); b++ {
		start := t.bucketStart(b)
		if start < prev {
			return dataErrorf("bucket array not monotone: bucket[%d] = %d < %d", b, start, prev)
		}
		if int(start) > t.nItems {
			return dataErrorf("bucket[%d] = %d exceeds item count %d", b, start, t.nItems)
		}
		prev = start
	}

	for i := 0; i < t.nItems; i++ {
		it := t.itemAt(i)
		if !it.typ.valid() {
			return dataErrorf("item %d has invalid type byte 0x%02x", i, byte(it.typ))
		}
		if it.parent != noParent && int(it.parent) >= t.nItems {
			return dataErrorf("item %d references parent %d outside item array", i, it.parent)
		}
	}

	// parent chains must terminate within nItems steps
	for i := 0; i < t.nItems; i++ {
		p := t.itemAt(i).parent
		for steps := 0; p != noParent; steps++ {
			if steps > t.nItems {
				return dataErrorf("parent chain starting at item %d forms a loop", i)
			}
			p = t.itemAt(int(p)).parent
		}
	}

	if t.nBuckets > 0 {
		for b := 0; b < int(t.nBuckets); b++ {
			for i := t.bucketStart(b); i < t.bucketEnd(b); i++ {
				it := t.itemAt(int(i))
				if it.hashValue%t.nBuckets != uint32(b) {
					return dataErrorf("item %d with hash %#x stored in bucket %d, want %d",
						i, it.hashValue, b, it.hashValue%t.nBuckets)
				}
			}
		}
	}
	return nil
}

// Len returns the number of items in the table, interior directory
// items included.
func (t *HashTable) Len() int {
	return t.nItems
}

func (t *HashTable) bucketsOffset() int {
	return hashHeaderSize + 4*int(t.nBloom)
}

func (t *HashTable) itemsOffset() int {
	return t.bucketsOffset() + 4*int(t.nBuckets)
}

func (t *HashTable) bucketStart(b int) uint32 {
	off := t.bucketsOffset() + 4*b
	return binary.LittleEndian.Uint32(t.data[off : off+4])
}

func (t *HashTable) bucketEnd(b int) uint32 {
	if b == int(t.nBuckets)-1 {
		return uint32(t.nItems)
	}
	end := t.bucketStart(b + 1)
	if end > uint32(t.nItems) {
		end = uint32(t.nItems)
	}
	return end
}

func (t *HashTable) itemAt(i int) hashItem {
	return hashItemAt(t.data, t.itemsOffset()+hashItemSize*i)
}

func (t *HashTable) bloomWord(i int) uint32 {
	off := hashHeaderSize + 4*i
	return binary.LittleEndian.Uint32(t.data[off : off+4])
}

// bloomFilter reports whether hash might be present.  The writer
// emits zero bloom words, so tables we wrote always answer true; for
// foreign tables any content is tolerated.
func (t *HashTable) bloomFilter(hash uint32) bool {
	if t.nBloom == 0 {
		return true
	}
	word := (hash / 32) % t.nBloom
	mask := uint32(1)<<(hash&31) | uint32(1)<<((hash>>t.bloomShift)&31)
	return t.bloomWord(int(word))&mask == mask
}

// Keys reconstructs the full key of every item by walking parent
// chains, in item-array order.
func (t *HashTable) Keys() ([]string, error) {
	names := make([]string, t.nItems)
	resolved := make([]bool, t.nItems)

	inserted := 0
	for inserted < t.nItems {
		lastInserted := inserted
		for i := 0; i < t.nItems; i++ {
			if resolved[i] {
				continue
			}
			it := t.itemAt(i)
			suffix, err := t.file.itemKey(it)
			if err != nil {
				return nil, err
			}
			switch {
			case it.parent == noParent:
				names[i] = suffix
				resolved[i] = true
				inserted++
			case int(it.parent) < t.nItems:
				if resolved[it.parent] {
					names[i] = names[it.parent] + suffix
					resolved[i] = true
					inserted++
				}
			default:
				return nil, dataErrorf("item %d references parent %d outside item array", i, it.parent)
			}
		}
		if lastInserted == inserted {
			// no progress means the parent links form a loop
			return nil, DataError("error resolving parent items: the file appears to have a loop")
		}
	}
	return names, nil
}

// checkName reports whether item's reconstructed full key equals key.
func (t *HashTable) checkName(it hashItem, key string) bool {
	// depth-bounded so that cyclic parent links in trusted files
	// can't hang a lookup
	for steps := 0; steps <= t.nItems; steps++ {
		suffix, err := t.file.itemKey(it)
		if err != nil {
			return false
		}
		if !strings.HasSuffix(key, suffix) {
			return false
		}
		if it.parent == noParent {
			return len(key) == len(suffix)
		}
		if int(it.parent) >= t.nItems || len(key) == 0 {
			return false
		}
		key = key[:len(key)-len(suffix)]
		it = t.itemAt(int(it.parent))
	}
	return false
}

func (t *HashTable) lookup(key string) (hashItem, error) {
	if t.nBuckets == 0 || t.nItems == 0 {
		return hashItem{}, &KeyNotFoundError{Key: key}
	}

	hash := djbHash(key)
	if !t.bloomFilter(hash) {
		return hashItem{}, &KeyNotFoundError{Key: key}
	}

	bucket := int(hash % t.nBuckets)
	first := t.bucketStart(bucket)
	if first > uint32(t.nItems) {
		// trusted files skip the invariant sweep; bounds still hold
		first = uint32(t.nItems)
	}
	for i := first; i < t.bucketEnd(bucket); i++ {
		it := t.itemAt(int(i))
		if it.hashValue == hash && t.checkName(it, key) {
			return it, nil
		}
	}
	return hashItem{}, &KeyNotFoundError{Key: key}
}

// GetValue looks up key and returns the raw serialized GVariant bytes
// of its value.
func (t *HashTable) GetValue(key string) ([]byte, error) {
	it, err := t.lookup(key)
	if err != nil {
		return nil, err
	}
	return t.valueBytes(it)
}

func (t *HashTable) valueBytes(it hashItem) ([]byte, error) {
	if it.typ != typeValue {
		key, _ := t.file.itemKey(it)
		return nil, dataErrorf("item %q is not a value: expected type 'v', got %s", key, it.typ)
	}
	return t.file.dereference(it.value, 8)
}

// Get looks up key and decodes its value.
func (t *HashTable) Get(key string) (gvariant.Value, error) {
	data, err := t.GetValue(key)
	if err != nil {
		return gvariant.Value{}, err
	}
	v, err := gvariant.UnmarshalVariant(data, t.file.ByteOrder())
	if err != nil {
		return gvariant.Value{}, fmt.Errorf("value for key %q: %w", key, err)
	}
	return v, nil
}

// GetString looks up key and returns its value as a string.
func (t *HashTable) GetString(key string) (string, error) {
	v, err := t.Get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.Str()
	if !ok {
		return "", dataErrorf("value for key %q has signature %q, not a string", key, v.Signature())
	}
	return s, nil
}

// GetUint32 looks up key and returns its value as a uint32.
func (t *HashTable) GetUint32(key string) (uint32, error) {
	v, err := t.Get(key)
	if err != nil {
		return 0, err
	}
	u, ok := v.Uint32Value()
	if !ok {
		return 0, dataErrorf("value for key %q has signature %q, not a uint32", key, v.Signature())
	}
	return u, nil
}

// GetTable looks up key and returns the nested hash table it points
// to.  The nested table borrows from the same File.
func (t *HashTable) GetTable(key string) (*HashTable, error) {
	it, err := t.lookup(key)
	if err != nil {
		return nil, err
	}
	if it.typ != typeTable {
		return nil, dataErrorf("item %q is not a table: expected type 'H', got %s", key, it.typ)
	}
	data, err := t.file.dereference(it.value, 4)
	if err != nil {
		return nil, err
	}
	return newHashTable(t.file, data)
}

// List looks up a directory item (a key ending in the path separator)
// and returns the names of its immediate children, relative to key.
func (t *HashTable) List(key string) ([]string, error) {
	it, err := t.lookup(key)
	if err != nil {
		return nil, err
	}
	if it.typ != typeContainer {
		return nil, dataErrorf("item %q is not a directory: expected type 'L', got %s", key, it.typ)
	}
	data, err := t.file.dereference(it.value, 4)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, dataErrorf("child list for %q has invalid size %d", key, len(data))
	}

	children := make([]string, 0, len(data)/4)
	for off := 0; off < len(data); off += 4 {
		idx := binary.LittleEndian.Uint32(data[off : off+4])
		if int(idx) >= t.nItems {
			return nil, dataErrorf("child index %d of %q outside item array", idx, key)
		}
		suffix, err := t.file.itemKey(t.itemAt(int(idx)))
		if err != nil {
			return nil, err
		}
		children = append(children, suffix)
	}
	return children, nil
}
