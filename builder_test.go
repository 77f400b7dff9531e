// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvdb-go/gvdb/gvariant"
)

func TestBuilderDuplicateKey(t *testing.T) {
	tb := NewHashTableBuilder()
	require.NoError(t, tb.InsertString("key", "one"))

	err := tb.InsertString("key", "two")
	var consistency ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestBuilderParentMustBeDirectory(t *testing.T) {
	tb := NewHashTableBuilder()
	require.NoError(t, tb.InsertString("a/", "not a directory"))

	err := tb.InsertString("a/b", "value")
	var consistency ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestBuilderContainsAndRemove(t *testing.T) {
	tb := NewHashTableBuilder()
	require.NoError(t, tb.InsertString("a/b", "value"))

	// interior directory items are synthesized
	assert.True(t, tb.Contains("a/"))
	assert.True(t, tb.Contains("a/b"))
	assert.False(t, tb.Contains("a"))
	assert.Equal(t, 2, tb.Len())

	tb.Remove("a/b")
	assert.False(t, tb.Contains("a/b"))
	assert.True(t, tb.Contains("a/"))

	// the directory no longer references the removed child
	table, err := tb.build()
	require.NoError(t, err)
	assert.Empty(t, table.byKey["a/"].value.children)
}

func TestBuilderNoSeparator(t *testing.T) {
	tb := NewHashTableBuilderWithSeparator("")
	require.NoError(t, tb.InsertString("a/b", "value"))

	// no directory synthesis without a separator
	assert.Equal(t, 1, tb.Len())
	assert.False(t, tb.Contains("a/"))
}

func TestBuilderInsertConversions(t *testing.T) {
	tb := NewHashTableBuilder()
	require.NoError(t, tb.Insert("string", "s"))
	require.NoError(t, tb.Insert("uint", uint32(7)))
	require.NoError(t, tb.Insert("bytes", []byte{1, 2}))
	require.NoError(t, tb.InsertValue("tuple", gvariant.Tuple(gvariant.Uint32(1))))

	err := tb.Insert("bad", struct{}{})
	require.Error(t, err)
}

func TestBuilderMissingChildAtFlush(t *testing.T) {
	tb := NewHashTableBuilder()
	require.NoError(t, tb.InsertString("dir/file", "value"))
	// corrupt the builder: drop the child but keep the directory entry
	delete(tb.items, "dir/file")

	_, err := NewFileWriter().Bytes(tb)
	var consistency ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestBuilderParentLoopAtFlush(t *testing.T) {
	tb := NewHashTableBuilder()
	require.NoError(t, tb.InsertString("a/b", "value"))
	// corrupt the builder into a parent cycle: make the directory its
	// own child
	tb.items["a/"].children = append(tb.items["a/"].children, "a/")

	_, err := NewFileWriter().Bytes(tb)
	var consistency ConsistencyError
	require.ErrorAs(t, err, &consistency)
}
