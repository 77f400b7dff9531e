// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"encoding/binary"
	"math/bits"
)

const (
	// "GVar" and "iant" read as little-endian words.  A big-endian
	// file spells the words byteswapped ("raVGtnai" on disk).
	signature0 = uint32(1918981703)
	signature1 = uint32(1953390953)

	fileHeaderSize = 24
)

type fileHeader struct {
	sig0, sig1 uint32
	version    uint32
	options    uint32
	root       pointer
}

func newFileHeader(byteswapped bool, root pointer) fileHeader {
	h := fileHeader{
		sig0: signature0,
		sig1: signature1,
		root: root,
	}
	if byteswapped {
		h.sig0 = bits.ReverseBytes32(h.sig0)
		h.sig1 = bits.ReverseBytes32(h.sig1)
	}
	return h
}

// byteswapped reports whether the signature spells the non-native
// (big-endian) byte order.  An unrecognized signature is
// ErrInvalidMagic.
func (h *fileHeader) byteswapped() (bool, error) {
	if h.sig0 == signature0 && h.sig1 == signature1 {
		return false, nil
	}
	if h.sig0 == bits.ReverseBytes32(signature0) && h.sig1 == bits.ReverseBytes32(signature1) {
		return true, nil
	}
	return false, ErrInvalidMagic
}

func (h *fileHeader) unmarshalBytes(b []byte) error {
	if len(b) < fileHeaderSize {
		return dataErrorf("file too short for header: %d < %d bytes", len(b), fileHeaderSize)
	}
	h.sig0 = binary.LittleEndian.Uint32(b[0:4])
	h.sig1 = binary.LittleEndian.Uint32(b[4:8])
	h.version = binary.LittleEndian.Uint32(b[8:12])
	h.options = binary.LittleEndian.Uint32(b[12:16])
	h.root = pointerAt(b, 16)
	return nil
}

func (h *fileHeader) marshalTo(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], h.sig0)
	binary.LittleEndian.PutUint32(b[4:8], h.sig1)
	binary.LittleEndian.PutUint32(b[8:12], h.version)
	binary.LittleEndian.PutUint32(b[12:16], h.options)
	h.root.marshalTo(b[16:24])
}
