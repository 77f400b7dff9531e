// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytesInvalidMagic(t *testing.T) {
	data := buildTestFile1(t, binary.LittleEndian)
	data[0] = 'X'

	_, err := FromBytes(data)
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestFromBytesInvalidVersion(t *testing.T) {
	data := buildTestFile1(t, binary.LittleEndian)
	binary.LittleEndian.PutUint32(data[8:12], 666)

	_, err := FromBytes(data)
	require.ErrorIs(t, err, ErrInvalidVersion)
}

func TestFromBytesTooShort(t *testing.T) {
	_, err := FromBytes(nil)
	require.Error(t, err)

	_, err = FromBytes([]byte("GVar"))
	require.Error(t, err)
}

// openOrFail exercises every reader entry point on data and fails the
// test only by panicking, never on returned errors.
func openOrFail(data []byte) {
	f, err := FromBytes(data)
	if err != nil {
		return
	}
	_ = f.IsValid()
	table, err := f.HashTable()
	if err != nil {
		return
	}
	if _, err := table.Keys(); err == nil {
		keys, _ := table.Keys()
		for _, key := range keys {
			_, _ = table.Get(key)
			_, _ = table.GetTable(key)
			_, _ = table.List(key)
		}
	}
	_, _ = table.Get("some key")
}

func TestTruncatedFile(t *testing.T) {
	data := buildTestFile1(t, binary.LittleEndian)
	require.Greater(t, len(data), 64)

	// every truncation either fails to open or fails on access
	for size := 0; size < len(data); size++ {
		truncated := data[:size]
		f, err := FromBytes(truncated)
		if err != nil {
			continue
		}
		_, err = f.HashTable()
		if err != nil {
			continue
		}
		// the root table fit; lookups must still stay in bounds
		openOrFail(truncated)
	}
}

func TestCorruptedFiles(t *testing.T) {
	valid := buildTestFile2(t, binary.LittleEndian)
	rng := rand.New(rand.NewSource(0x6776_6462))

	for round := 0; round < 20000; round++ {
		data := make([]byte, len(valid))
		copy(data, valid)

		// corrupt a handful of random bytes
		for n := rng.Intn(8) + 1; n > 0; n-- {
			data[rng.Intn(len(data))] = byte(rng.Intn(256))
		}
		if rng.Intn(4) == 0 {
			data = data[:rng.Intn(len(data)+1)]
		}
		openOrFail(data)
	}
}

func TestRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 20000; round++ {
		data := make([]byte, rng.Intn(4096))
		_, _ = rng.Read(data)
		// sometimes keep a plausible signature so parsing gets past
		// the header
		if rng.Intn(2) == 0 && len(data) >= 8 {
			copy(data, "GVariant")
		}
		openOrFail(data)
	}
}

func TestParentLoopDetected(t *testing.T) {
	data := buildTestFile2(t, binary.LittleEndian)
	f, err := FromBytes(data)
	require.NoError(t, err)
	table, err := f.HashTable()
	require.NoError(t, err)

	// point the first item's parent at itself
	itemOff := int(f.root.start) + table.itemsOffset()
	binary.LittleEndian.PutUint32(data[itemOff+4:itemOff+8], 0)

	f2, err := FromBytes(data)
	require.NoError(t, err)
	_, err = f2.HashTable()
	var dataErr DataError
	require.ErrorAs(t, err, &dataErr)
}

func TestTrustedSkipsSweepNotBounds(t *testing.T) {
	data := buildTestFile2(t, binary.LittleEndian)
	f, err := FromBytes(data)
	require.NoError(t, err)
	table, err := f.HashTable()
	require.NoError(t, err)

	// same self-parent corruption as above
	itemOff := int(f.root.start) + table.itemsOffset()
	binary.LittleEndian.PutUint32(data[itemOff+4:itemOff+8], 0)

	trusted, err := FromBytesTrusted(data)
	require.NoError(t, err)
	tt, err := trusted.HashTable()
	require.NoError(t, err, "trusted mode skips the invariant sweep")

	// the loop is still caught where it matters
	_, err = tt.Keys()
	require.Error(t, err)
}

func TestFromFile(t *testing.T) {
	data := buildTestFile1(t, binary.LittleEndian)
	path := filepath.Join(t.TempDir(), "test1.gvdb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := FromFile(path)
	require.NoError(t, err)
	assertIsTestFile1(t, f)

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.gvdb"))
	require.Error(t, err)
}

func TestFromFileMmap(t *testing.T) {
	data := buildTestFile1(t, binary.LittleEndian)
	path := filepath.Join(t.TempDir(), "test1.gvdb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := FromFileMmap(path)
	require.NoError(t, err)
	assertIsTestFile1(t, f)
	require.NoError(t, f.Close())
	// Close is idempotent
	require.NoError(t, f.Close())
}

func TestIsValid(t *testing.T) {
	data := buildTestFile1(t, binary.LittleEndian)
	f, err := FromBytes(data)
	require.NoError(t, err)
	assert.True(t, f.IsValid())

	// a root pointer past EOF is invalid
	binary.LittleEndian.PutUint32(data[20:24], uint32(len(data)+100))
	f2, err := FromBytes(data)
	require.NoError(t, err)
	assert.False(t, f2.IsValid())
	_, err = f2.HashTable()
	require.ErrorIs(t, err, ErrDataOffset)
}

func TestKeyNotFound(t *testing.T) {
	data := buildTestFile1(t, binary.LittleEndian)
	f, err := FromBytes(data)
	require.NoError(t, err)
	table, err := f.HashTable()
	require.NoError(t, err)

	_, err = table.Get("no such key")
	var notFound *KeyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "no such key", notFound.Key)
}
