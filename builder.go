// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gvdb-go/gvdb/gvariant"
)

// builderValue is the pending payload stored for one key: a GVariant
// value, pre-serialized bytes, a nested table builder, or the child
// list of a synthesized directory item.
type builderValue struct {
	typ      itemType
	value    gvariant.Value
	raw      []byte
	rawSig   string
	isRaw    bool
	table    *HashTableBuilder
	children []string
}

// HashTableBuilder accumulates insertions for one hash table.  Keys
// containing the path separator get interior directory items
// synthesized for every prefix, so that "/a/b" stores items for "/",
// "/a/" and "/a/b" with shared key suffixes.
type HashTableBuilder struct {
	items map[string]*builderValue
	sep   string
}

// NewHashTableBuilder returns an empty builder with the default "/"
// path separator.
func NewHashTableBuilder() *HashTableBuilder {
	return NewHashTableBuilderWithSeparator("/")
}

// NewHashTableBuilderWithSeparator returns an empty builder.  An
// empty separator disables path splitting: every key becomes a root
// item.
func NewHashTableBuilderWithSeparator(sep string) *HashTableBuilder {
	return &HashTableBuilder{
		items: make(map[string]*builderValue),
		sep:   sep,
	}
}

func (b *HashTableBuilder) insertItemValue(key string, v *builderValue) error {
	if _, exists := b.items[key]; exists {
		return consistencyErrorf("key %q already exists", key)
	}
	if b.sep == "" {
		b.items[key] = v
		return nil
	}

	var thisKey string
	var lastKey string
	for _, segment := range strings.Split(key, b.sep) {
		thisKey += segment
		if thisKey != key {
			thisKey += b.sep
		}

		if lastKey != "" {
			parent, ok := b.items[lastKey]
			switch {
			case !ok:
				b.items[lastKey] = &builderValue{typ: typeContainer, children: []string{thisKey}}
			case parent.typ == typeContainer:
				if !containsString(parent.children, thisKey) {
					parent.children = append(parent.children, thisKey)
				}
			default:
				return consistencyErrorf("parent item %q is not a directory", lastKey)
			}
		}

		if thisKey == key {
			b.items[key] = v
			break
		}
		lastKey = thisKey
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// InsertValue stores a GVariant value at key.
func (b *HashTableBuilder) InsertValue(key string, v gvariant.Value) error {
	return b.insertItemValue(key, &builderValue{typ: typeValue, value: v})
}

// Insert stores a plain Go value at key, mapping it onto a GVariant.
func (b *HashTableBuilder) Insert(key string, v interface{}) error {
	gv, err := gvariant.Of(v)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return b.InsertValue(key, gv)
}

// InsertString stores a string value at key.
func (b *HashTableBuilder) InsertString(key, s string) error {
	return b.InsertValue(key, gvariant.String(s))
}

// InsertBytes stores an already-serialized value with the given type
// signature at key.  The bytes must be encoded in the byte order the
// file will be written with.
func (b *HashTableBuilder) InsertBytes(key, signature string, data []byte) error {
	return b.insertItemValue(key, &builderValue{
		typ:    typeValue,
		raw:    data,
		rawSig: signature,
		isRaw:  true,
	})
}

// InsertTable stores sub as a nested hash table at key.  The builder
// takes ownership of sub.
func (b *HashTableBuilder) InsertTable(key string, sub *HashTableBuilder) error {
	return b.insertItemValue(key, &builderValue{typ: typeTable, table: sub})
}

// Contains reports whether key has been inserted (or synthesized as a
// directory item).
func (b *HashTableBuilder) Contains(key string) bool {
	_, ok := b.items[key]
	return ok
}

// Remove deletes key from the builder and unlinks it from its
// directory item, if any.
func (b *HashTableBuilder) Remove(key string) {
	if _, ok := b.items[key]; !ok {
		return
	}
	delete(b.items, key)
	if b.sep == "" {
		return
	}
	for _, parent := range b.items {
		if parent.typ != typeContainer {
			continue
		}
		for i, child := range parent.children {
			if child == key {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of pending items, synthesized directory
// items included.
func (b *HashTableBuilder) Len() int {
	return len(b.items)
}

// builderItem is one flattened item during a write: a key, its
// digest, and linkage inside the simple chained bucket table the
// writer lays out.
type builderItem struct {
	key      string
	hash     uint32
	value    *builderValue
	parent   *builderItem
	next     *builderItem
	assigned uint32
}

// writerTable is the chained-bucket arrangement of a builder's items,
// frozen in the exact order the file writer will emit.  One bucket
// per item, insertion at the chain head from sorted keys: this is
// what reproduces GLib's gvdb-builder layout byte for
// byte.
type writerTable struct {
	buckets []*builderItem
	byKey   map[string]*builderItem
	nItems  int
}

func (b *HashTableBuilder) build() (*writerTable, error) {
	keys := make([]string, 0, len(b.items))
	for key := range b.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	t := &writerTable{
		buckets: make([]*builderItem, len(keys)),
		byKey:   make(map[string]*builderItem, len(keys)),
	}
	for _, key := range keys {
		t.insert(key, b.items[key])
	}

	// link children of directory items to their parent
	for _, key := range keys {
		item := t.byKey[key]
		if item.value.typ != typeContainer {
			continue
		}
		for _, child := range item.value.children {
			childItem, ok := t.byKey[child]
			if !ok {
				return nil, consistencyErrorf("child %q not found for directory %q", child, key)
			}
			childItem.parent = item
		}
	}

	// parent links derive from strictly-shortening key prefixes, so a
	// loop can only mean builder state was corrupted
	for _, key := range keys {
		item := t.byKey[key]
		for p, steps := item.parent, 0; p != nil; p, steps = p.parent, steps+1 {
			if steps > t.nItems {
				return nil, consistencyErrorf("parent chain of %q forms a loop", key)
			}
		}
	}

	return t, nil
}

func (t *writerTable) insert(key string, v *builderValue) {
	item := &builderItem{
		key:   key,
		hash:  djbHash(key),
		value: v,
	}
	bucket := item.hash % uint32(len(t.buckets))
	item.next = t.buckets[bucket]
	t.buckets[bucket] = item
	t.byKey[key] = item
	t.nItems++
}
