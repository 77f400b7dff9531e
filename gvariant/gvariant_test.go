// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvariant

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasics(t *testing.T) {
	data, err := Uint32(42).Marshal(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2a, 0, 0, 0}, data)

	data, err = Uint32(42).Marshal(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0x2a}, data)

	data, err = String("hi").Marshal(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{'h', 'i', 0}, data)

	data, err = Bool(true).Marshal(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	data, err = Bytes([]byte{1, 2, 3}).Marshal(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	data, err = Uint16(0x1234).Marshal(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, data)
}

func TestMarshalStrv(t *testing.T) {
	// elements followed by their end offsets
	data, err := Strv([]string{"a", "bc"}).Marshal(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 0, 'b', 'c', 0, 2, 5}, data)

	// framing offsets stay little-endian in big-endian serialization
	data, err = Strv([]string{"a", "bc"}).Marshal(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 0, 'b', 'c', 0, 2, 5}, data)

	data, err = Strv(nil).Marshal(binary.LittleEndian)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMarshalTuple(t *testing.T) {
	// (uus): two fixed members, the trailing string needs no offset
	v := Tuple(Uint32(1234), Uint32(98765), String("TEST_STRING_VALUE"))
	require.Equal(t, "(uus)", v.Signature())

	data, err := v.Marshal(binary.LittleEndian)
	require.NoError(t, err)
	require.Len(t, data, 26)
	assert.Equal(t, uint32(1234), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(98765), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "TEST_STRING_VALUE\x00", string(data[8:]))

	// (su): the non-last string member needs padding and an offset
	v = Tuple(String("ab"), Uint32(7))
	data, err = v.Marshal(binary.LittleEndian)
	require.NoError(t, err)
	// "ab\0" + 1 pad + u32 + 1 offset byte
	assert.Equal(t, []byte{'a', 'b', 0, 0, 7, 0, 0, 0, 3}, data)
}

func TestMarshalUnitTuple(t *testing.T) {
	data, err := Tuple().Marshal(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, data)

	v, err := Unmarshal(data, binary.LittleEndian, "()")
	require.NoError(t, err)
	assert.Equal(t, "()", v.Signature())
}

func TestMarshalVariant(t *testing.T) {
	data, err := Uint32(42).MarshalVariant(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2a, 0, 0, 0, 0, 'u'}, data)

	v, err := UnmarshalVariant(data, binary.LittleEndian)
	require.NoError(t, err)
	n, ok := v.Uint32Value()
	require.True(t, ok)
	assert.Equal(t, uint32(42), n)
}

func TestRoundTrip(t *testing.T) {
	values := []Value{
		Bool(true),
		Byte(0xfe),
		Int16(-2),
		Uint16(65535),
		Int32(-70000),
		Uint32(1 << 31),
		Int64(-1),
		Uint64(1 << 63),
		Double(3.25),
		String("test string"),
		Bytes([]byte{0, 1, 2, 0}),
		Strv([]string{"one", "two", "three"}),
		Tuple(Uint32(1390), Uint32(0), Bytes([]byte("svg content\x00"))),
		Tuple(String("nested"), Tuple(Uint32(1), String("deep"))),
		Variant(Uint32(9)),
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, v := range values {
			data, err := v.Marshal(order)
			require.NoError(t, err, "marshal %q", v.Signature())

			got, err := Unmarshal(data, order, v.Signature())
			require.NoError(t, err, "unmarshal %q", v.Signature())
			assert.Equal(t, v, got, "round trip %q with %v", v.Signature(), order)

			boxed, err := v.MarshalVariant(order)
			require.NoError(t, err)
			got, err = UnmarshalVariant(boxed, order)
			require.NoError(t, err)
			assert.Equal(t, v, got, "variant round trip %q", v.Signature())
		}
	}
}

func TestUnmarshalUUAY(t *testing.T) {
	payload := append([]byte("content"), 0)
	v := Tuple(Uint32(7), Uint32(0), Bytes(payload))
	data, err := v.MarshalVariant(binary.LittleEndian)
	require.NoError(t, err)

	got, err := UnmarshalVariant(data, binary.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, "(uuay)", got.Signature())

	size, _ := got.Children()[0].Uint32Value()
	flags, _ := got.Children()[1].Uint32Value()
	content, ok := got.Children()[2].ByteSlice()
	require.True(t, ok)
	assert.Equal(t, uint32(7), size)
	assert.Equal(t, uint32(0), flags)
	assert.Equal(t, payload, content)
}

func TestUnmarshalErrors(t *testing.T) {
	for _, testcase := range []struct {
		name string
		data []byte
		sig  string
	}{
		{"short u", []byte{1, 2}, "u"},
		{"long y", []byte{1, 2}, "y"},
		{"string without NUL", []byte{'h', 'i'}, "s"},
		{"string interior NUL", []byte{'h', 0, 'i', 0}, "s"},
		{"string invalid utf8", []byte{0xff, 0xfe, 0}, "s"},
		{"bad bool", []byte{2}, "b"},
		{"array of u odd size", []byte{1, 2, 3}, "au"},
		{"unit tuple wrong", []byte{1}, "()"},
		{"bad signature", []byte{0}, "m"},
		{"dict signature", []byte{0}, "a{sv}"},
	} {
		_, err := Unmarshal(testcase.data, binary.LittleEndian, testcase.sig)
		assert.Error(t, err, testcase.name)
	}

	_, err := UnmarshalVariant([]byte{1, 2, 3}, binary.LittleEndian)
	assert.Error(t, err, "variant without separator")

	_, err = UnmarshalVariant(nil, binary.LittleEndian)
	assert.Error(t, err, "empty variant")
}

func TestUnmarshalFramingBounds(t *testing.T) {
	// a two-string array whose offsets point out of range
	data := []byte{'a', 0, 'b', 0, 9, 9}
	_, err := Unmarshal(data, binary.LittleEndian, "as")
	assert.Error(t, err)

	// a (su) tuple whose offset points past the body
	data = []byte{'a', 0, 0, 0, 7, 0, 0, 0, 200}
	_, err = Unmarshal(data, binary.LittleEndian, "(su)")
	assert.Error(t, err)
}

func TestOf(t *testing.T) {
	v, err := Of(uint32(5))
	require.NoError(t, err)
	assert.Equal(t, "u", v.Signature())

	v, err = Of("hello")
	require.NoError(t, err)
	assert.Equal(t, "s", v.Signature())

	v, err = Of([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "as", v.Signature())

	_, err = Of(3.5)
	require.NoError(t, err)

	_, err = Of(struct{}{})
	assert.Error(t, err)
}

func TestSignatureHelpers(t *testing.T) {
	assert.True(t, validSignature("(uuay)"))
	assert.True(t, validSignature("aas"))
	assert.True(t, validSignature("v"))
	assert.False(t, validSignature(""))
	assert.False(t, validSignature("(u"))
	assert.False(t, validSignature("uu"))
	assert.False(t, validSignature("z"))

	size, fixed := fixedSizeOf("(uu)")
	assert.True(t, fixed)
	assert.Equal(t, 8, size)

	size, fixed = fixedSizeOf("(uy)")
	assert.True(t, fixed)
	assert.Equal(t, 8, size, "fixed tuples pad to their alignment")

	_, fixed = fixedSizeOf("(uus)")
	assert.False(t, fixed)

	assert.Equal(t, 4, alignmentOf("au"))
	assert.Equal(t, 8, alignmentOf("(ut)"))
	assert.Equal(t, 1, alignmentOf("s"))
}
