// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package gvariant serializes and deserializes values in the GVariant
// binary format, in either byte order.  It implements the subset of
// the type system that occurs in GVDB files: fixed-size basics,
// strings, arrays, tuples and boxed variants.
//
// The format is positional: fixed-size values are stored padded to
// their alignment, variable-size values inside containers are located
// through framing offsets appended to the container.  Framing offsets
// are always little-endian; the chosen byte order applies to numeric
// payloads only.
package gvariant

import (
	"fmt"
	"math"
)

// Value is an immutable typed GVariant value.
type Value struct {
	sig      string
	num      uint64
	str      string
	raw      []byte
	children []Value
}

// Signature returns the value's type string, e.g. "(uuay)".
func (v Value) Signature() string { return v.sig }

// Bool returns a boolean value.
func Bool(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{sig: "b", num: n}
}

// Byte returns a uint8 value.
func Byte(b byte) Value { return Value{sig: "y", num: uint64(b)} }

// Int16 returns an int16 value.
func Int16(n int16) Value { return Value{sig: "n", num: uint64(uint16(n))} }

// Uint16 returns a uint16 value.
func Uint16(n uint16) Value { return Value{sig: "q", num: uint64(n)} }

// Int32 returns an int32 value.
func Int32(n int32) Value { return Value{sig: "i", num: uint64(uint32(n))} }

// Uint32 returns a uint32 value.
func Uint32(n uint32) Value { return Value{sig: "u", num: uint64(n)} }

// Int64 returns an int64 value.
func Int64(n int64) Value { return Value{sig: "x", num: uint64(n)} }

// Uint64 returns a uint64 value.
func Uint64(n uint64) Value { return Value{sig: "t", num: n} }

// Double returns a float64 value.
func Double(f float64) Value { return Value{sig: "d", num: math.Float64bits(f)} }

// String returns a string value.
func String(s string) Value { return Value{sig: "s", str: s} }

// ObjectPath returns a D-Bus object path value.
func ObjectPath(s string) Value { return Value{sig: "o", str: s} }

// Bytes returns an "ay" value.  The slice is not copied.
func Bytes(b []byte) Value { return Value{sig: "ay", raw: b} }

// Strv returns an "as" value.
func Strv(ss []string) Value {
	children := make([]Value, len(ss))
	for i, s := range ss {
		children[i] = String(s)
	}
	return Value{sig: "as", children: children}
}

// Tuple returns a tuple of the given values.
func Tuple(vs ...Value) Value {
	sig := "("
	for _, v := range vs {
		sig += v.sig
	}
	sig += ")"
	return Value{sig: sig, children: vs}
}

// Variant boxes child into a "v" value.
func Variant(child Value) Value {
	return Value{sig: "v", children: []Value{child}}
}

// Of maps a plain Go value onto a Value.
func Of(v interface{}) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case byte:
		return Byte(x), nil
	case int16:
		return Int16(x), nil
	case uint16:
		return Uint16(x), nil
	case int32:
		return Int32(x), nil
	case uint32:
		return Uint32(x), nil
	case int64:
		return Int64(x), nil
	case uint64:
		return Uint64(x), nil
	case float64:
		return Double(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case []string:
		return Strv(x), nil
	default:
		return Value{}, fmt.Errorf("no GVariant mapping for %T", v)
	}
}

// BoolValue returns the value as a bool.
func (v Value) BoolValue() (bool, bool) {
	if v.sig != "b" {
		return false, false
	}
	return v.num != 0, true
}

// ByteValue returns the value as a byte.
func (v Value) ByteValue() (byte, bool) {
	if v.sig != "y" {
		return 0, false
	}
	return byte(v.num), true
}

// Int16Value returns the value as an int16.
func (v Value) Int16Value() (int16, bool) {
	if v.sig != "n" {
		return 0, false
	}
	return int16(v.num), true
}

// Uint16Value returns the value as a uint16.
func (v Value) Uint16Value() (uint16, bool) {
	if v.sig != "q" {
		return 0, false
	}
	return uint16(v.num), true
}

// Int32Value returns the value as an int32.
func (v Value) Int32Value() (int32, bool) {
	if v.sig != "i" {
		return 0, false
	}
	return int32(v.num), true
}

// Uint32Value returns the value as a uint32.
func (v Value) Uint32Value() (uint32, bool) {
	if v.sig != "u" {
		return 0, false
	}
	return uint32(v.num), true
}

// Int64Value returns the value as an int64.
func (v Value) Int64Value() (int64, bool) {
	if v.sig != "x" {
		return 0, false
	}
	return int64(v.num), true
}

// Uint64Value returns the value as a uint64.
func (v Value) Uint64Value() (uint64, bool) {
	if v.sig != "t" {
		return 0, false
	}
	return v.num, true
}

// DoubleValue returns the value as a float64.
func (v Value) DoubleValue() (float64, bool) {
	if v.sig != "d" {
		return 0, false
	}
	return math.Float64frombits(v.num), true
}

// Str returns the value as a string for "s", "o" and "g" values.
func (v Value) Str() (string, bool) {
	switch v.sig {
	case "s", "o", "g":
		return v.str, true
	}
	return "", false
}

// ByteSlice returns the payload of an "ay" value.
func (v Value) ByteSlice() ([]byte, bool) {
	if v.sig != "ay" {
		return nil, false
	}
	return v.raw, true
}

// StrvValue returns the elements of an "as" value.
func (v Value) StrvValue() ([]string, bool) {
	if v.sig != "as" {
		return nil, false
	}
	ss := make([]string, len(v.children))
	for i, c := range v.children {
		ss[i] = c.str
	}
	return ss, true
}

// NumChildren returns the child count of a container value.
func (v Value) NumChildren() int { return len(v.children) }

// ChildValue returns the i'th child of a container value.
func (v Value) ChildValue(i int) (Value, bool) {
	if i < 0 || i >= len(v.children) {
		return Value{}, false
	}
	return v.children[i], true
}

// Children returns the children of a container value.
func (v Value) Children() []Value { return v.children }
