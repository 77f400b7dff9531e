// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"encoding/binary"
)

const (
	hashItemSize = 24

	// parent index of items at the root of the key hierarchy
	noParent = uint32(0xffffffff)
)

// itemType is the single-byte tag describing what an item's value
// pointer references.
type itemType byte

const (
	typeValue     itemType = 'v' // a serialized GVariant
	typeTable     itemType = 'H' // a nested hash table region
	typeContainer itemType = 'L' // a list of child item indices
)

func (t itemType) valid() bool {
	return t == typeValue || t == typeTable || t == typeContainer
}

func (t itemType) String() string {
	switch t {
	case typeValue:
		return "value"
	case typeTable:
		return "hash table"
	case typeContainer:
		return "container"
	default:
		return "invalid"
	}
}

// hashItem is one decoded 24-byte entry of a hash table's item array.
type hashItem struct {
	hashValue uint32
	parent    uint32
	keyStart  uint32
	keySize   uint16
	typ       itemType
	value     pointer
}

func hashItemAt(b []byte, off int) hashItem {
	return hashItem{
		hashValue: binary.LittleEndian.Uint32(b[off : off+4]),
		parent:    binary.LittleEndian.Uint32(b[off+4 : off+8]),
		keyStart:  binary.LittleEndian.Uint32(b[off+8 : off+12]),
		keySize:   binary.LittleEndian.Uint16(b[off+12 : off+14]),
		typ:       itemType(b[off+14]),
		value:     pointerAt(b, off+16),
	}
}

func (it hashItem) keyPointer() pointer {
	return pointer{start: it.keyStart, end: it.keyStart + uint32(it.keySize)}
}

func (it hashItem) marshalTo(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], it.hashValue)
	binary.LittleEndian.PutUint32(b[4:8], it.parent)
	binary.LittleEndian.PutUint32(b[8:12], it.keyStart)
	binary.LittleEndian.PutUint16(b[12:14], it.keySize)
	b[14] = byte(it.typ)
	b[15] = 0
	it.value.marshalTo(b[16:24])
}
