// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package gvdb reads and writes files in the GVDB ("GVariant database")
// format: a read-optimized, on-disk key/value store whose values are
// serialized GVariants.  GVDB is the container format behind GLib's
// dconf databases and GResource bundles.
//
// A GVDB file generally looks like:
//
//	┌────────────────────────┐
//	│ file header (24 bytes) │ signature, version, root pointer
//	├────────────────────────┤
//	│ root hash table        │ bloom words, bucket array, items
//	├────────────────────────┤
//	│ key strings and        │ one chunk per item, 8-byte aligned
//	│ value chunks           │ values, interleaved in item order
//	│ (and nested tables)    │
//	└────────────────────────┘
//
// Every region is addressed by an 8-byte pointer: a pair of 32-bit
// file offsets (start, end).  A hash table region holds an 8-byte
// header, n_bloom_words bloom filter words, n_buckets bucket start
// indices and a flat array of 24-byte items.  Items carry the djb2
// hash of their full key, a parent index for path-structured keys,
// and a pointer to either a serialized GVariant ('v'), a nested hash
// table ('H') or a child-index list ('L').
//
// Readers are immutable after construction and safe for concurrent
// use.  Writers produce a deterministic, byte-for-byte reproducible
// layout compatible with the GLib reference implementation.
package gvdb
