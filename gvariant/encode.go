// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvariant

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Marshal serializes the value itself (not boxed in a variant) with
// the given byte order for numeric payloads.
func (v Value) Marshal(order binary.ByteOrder) ([]byte, error) {
	return marshal(v, order)
}

// MarshalVariant serializes the value boxed as a variant: the child's
// serialization, a zero separator byte, then the type string.  This
// is the form GVDB value chunks store.
func (v Value) MarshalVariant(order binary.ByteOrder) ([]byte, error) {
	data, err := marshal(v, order)
	if err != nil {
		return nil, err
	}
	return wrapVariant(data, v.sig), nil
}

// VariantBytes boxes an already-serialized value with signature sig
// the way MarshalVariant would.
func VariantBytes(sig string, data []byte) ([]byte, error) {
	if !validSignature(sig) {
		return nil, fmt.Errorf("invalid signature %q", sig)
	}
	return wrapVariant(data, sig), nil
}

func wrapVariant(data []byte, sig string) []byte {
	out := make([]byte, 0, len(data)+1+len(sig))
	out = append(out, data...)
	out = append(out, 0)
	out = append(out, sig...)
	return out
}

func marshal(v Value, order binary.ByteOrder) ([]byte, error) {
	if v.sig == "" {
		return nil, fmt.Errorf("cannot marshal the zero Value")
	}
	switch v.sig[0] {
	case 'b', 'y':
		return []byte{byte(v.num)}, nil
	case 'n', 'q':
		var buf [2]byte
		order.PutUint16(buf[:], uint16(v.num))
		return buf[:], nil
	case 'i', 'u':
		var buf [4]byte
		order.PutUint32(buf[:], uint32(v.num))
		return buf[:], nil
	case 'x', 't', 'd':
		var buf [8]byte
		order.PutUint64(buf[:], v.num)
		return buf[:], nil
	case 's', 'o', 'g':
		if strings.IndexByte(v.str, 0) >= 0 {
			return nil, fmt.Errorf("string contains a NUL byte")
		}
		out := make([]byte, 0, len(v.str)+1)
		out = append(out, v.str...)
		return append(out, 0), nil
	case 'a':
		return marshalArray(v, order)
	case '(':
		return marshalTuple(v, order)
	case 'v':
		if len(v.children) != 1 {
			return nil, fmt.Errorf("variant value without a child")
		}
		return v.children[0].MarshalVariant(order)
	}
	return nil, fmt.Errorf("unsupported signature %q", v.sig)
}

func marshalArray(v Value, order binary.ByteOrder) ([]byte, error) {
	if v.sig == "ay" {
		out := make([]byte, len(v.raw))
		copy(out, v.raw)
		return out, nil
	}
	elemSig := v.sig[1:]

	if _, fixed := fixedSizeOf(elemSig); fixed {
		// fixed-size elements pack back to back; fixed sizes are
		// multiples of their alignment so no padding is needed
		var body []byte
		for _, c := range v.children {
			data, err := marshal(c, order)
			if err != nil {
				return nil, err
			}
			body = append(body, data...)
		}
		return body, nil
	}

	// variable-size elements carry end offsets after the last element
	var body []byte
	ends := make([]int, 0, len(v.children))
	elemAlign := alignmentOf(elemSig)
	for _, c := range v.children {
		body = pad(body, elemAlign)
		data, err := marshal(c, order)
		if err != nil {
			return nil, err
		}
		body = append(body, data...)
		ends = append(ends, len(body))
	}
	if len(ends) == 0 {
		return body, nil
	}
	offSize := offsetSize(len(body), len(ends))
	for _, end := range ends {
		body = appendOffset(body, uint64(end), offSize)
	}
	return body, nil
}

func marshalTuple(v Value, order binary.ByteOrder) ([]byte, error) {
	members, err := tupleMembers(v.sig)
	if err != nil {
		return nil, err
	}
	if len(members) != len(v.children) {
		return nil, fmt.Errorf("tuple %q has %d children, want %d", v.sig, len(v.children), len(members))
	}
	if len(members) == 0 {
		// the unit tuple
		return []byte{0}, nil
	}

	var body []byte
	var ends []int
	allFixed := true
	for i, m := range members {
		body = pad(body, alignmentOf(m))
		data, err := marshal(v.children[i], order)
		if err != nil {
			return nil, err
		}
		body = append(body, data...)
		if _, fixed := fixedSizeOf(m); !fixed {
			allFixed = false
			if i != len(members)-1 {
				ends = append(ends, len(body))
			}
		}
	}
	if allFixed {
		return pad(body, alignmentOf(v.sig)), nil
	}
	if len(ends) == 0 {
		return body, nil
	}
	// tuple framing offsets are appended in reverse member order
	offSize := offsetSize(len(body), len(ends))
	for i := len(ends) - 1; i >= 0; i-- {
		body = appendOffset(body, uint64(ends[i]), offSize)
	}
	return body, nil
}

func pad(b []byte, alignment int) []byte {
	for alignment > 1 && len(b)%alignment != 0 {
		b = append(b, 0)
	}
	return b
}

// offsetSize picks the smallest width that can express every framing
// offset once n of them are appended to a body of the given size.
func offsetSize(body, n int) int {
	for _, c := range []int{1, 2, 4} {
		if uint64(body+n*c) <= (uint64(1)<<(8*c))-1 {
			return c
		}
	}
	return 8
}

func appendOffset(b []byte, v uint64, size int) []byte {
	// framing offsets are little-endian in either byte order
	for i := 0; i < size; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
