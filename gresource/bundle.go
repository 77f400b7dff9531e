// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package gresource builds GResource bundles: GVDB files whose values
// describe a tree of (optionally compressed) file contents under
// virtual paths, loadable by GLib's resource machinery.
package gresource

import (
	"bytes"
	"compress/zlib"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/gvdb-go/gvdb"
	"github.com/gvdb-go/gvdb/gvariant"
)

const (
	// flag bit 0 of a file entry: the payload is a zlib stream
	FlagCompressed = uint32(1) << 0

	preprocessXMLStripBlanks  = "xml-stripblanks"
	preprocessJSONStripBlanks = "json-stripblanks"
	preprocessToPixdata       = "to-pixdata"
)

// defaults for NewBuilderFromDirectory, both matched as name
// suffixes: what the compress flag compresses, and walked files that
// never belong in a bundle
var (
	compressExtensionsDefault = []string{".ui", ".css"}
	skippedFileNamesDefault   = []string{"meson.build", "gresource.xml", ".gitignore", ".license"}
)

// UnsupportedPreprocessorError is returned for preprocessors the
// builder refuses to run, like the long-deprecated to-pixdata.
type UnsupportedPreprocessorError struct {
	Name string
}

func (e *UnsupportedPreprocessorError) Error() string {
	return fmt.Sprintf("unsupported preprocessor %q", e.Name)
}

// StripPrefixError is returned when a directory walk yields a path
// outside the declared root.
type StripPrefixError struct {
	Path string
}

func (e *StripPrefixError) Error() string {
	return fmt.Sprintf("path %q lies outside the bundle root", e.Path)
}

// fileData is one fully-preprocessed bundle entry.  size is the
// uncompressed payload length; data carries the trailing zero pad
// byte for uncompressed entries.
type fileData struct {
	key   string
	data  []byte
	size  uint32
	flags uint32
}

func newFileData(key string, data []byte, path string, compressed bool, preprocess []string) (fileData, error) {
	for _, name := range preprocess {
		var err error
		switch name {
		case preprocessXMLStripBlanks:
			data, err = xmlStripBlanks(data)
		case preprocessJSONStripBlanks:
			data, err = jsonStripBlanks(data)
		default:
			err = &UnsupportedPreprocessorError{Name: name}
		}
		if err != nil {
			return fileData{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	fd := fileData{
		key:  key,
		size: uint32(len(data)),
	}
	if compressed {
		deflated, err := compressZlib(data)
		if err != nil {
			return fileData{}, fmt.Errorf("%s: %w", path, err)
		}
		fd.data = deflated
		fd.flags |= FlagCompressed
	} else {
		// uncompressed payloads get one zero byte of padding that is
		// not counted in size
		fd.data = append(append(make([]byte, 0, len(data)+1), data...), 0)
	}
	return fd, nil
}

// xmlStripBlanks re-serializes XML with blank-only text nodes and
// comments removed.
func xmlStripBlanks(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml-stripblanks: %w", err)
		}
		switch t := tok.(type) {
		case xml.Comment:
			continue
		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
		}
		if err := enc.EncodeToken(tok); err != nil {
			return nil, fmt.Errorf("xml-stripblanks: %w", err)
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("xml-stripblanks: %w", err)
	}
	return buf.Bytes(), nil
}

// jsonStripBlanks minifies JSON, keeping the conventional trailing
// newline.
func jsonStripBlanks(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("json-stripblanks: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return buf.Bytes(), nil
}

// Builder assembles a GResource bundle from file entries.
type Builder struct {
	files []fileData
}

// NewBuilderFromManifest reads every file a manifest names, applies
// its preprocessors and compression settings, and returns a builder
// ready to Build.
func NewBuilderFromManifest(m *Manifest) (*Builder, error) {
	b := &Builder{}
	for _, res := range m.Resources {
		for _, f := range res.Files {
			path := filepath.Join(m.Dir, filepath.FromSlash(f.Path))
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("os.ReadFile(%s): %w", path, err)
			}
			fd, err := newFileData(f.Key(res.Prefix), data, path, f.Compressed, f.Preprocess)
			if err != nil {
				return nil, err
			}
			b.files = append(b.files, fd)
		}
	}
	return b, nil
}

// NewBuilderFromDirectory walks dir and bundles every regular file
// beneath it under prefix.  When stripBlanks is set, .xml, .ui and
// .svg files get xml-stripblanks and .json files json-stripblanks.
// The compress flag compresses only files matching the default
// extension list (.ui, .css); everything else is stored uncompressed.
func NewBuilderFromDirectory(prefix, dir string, stripBlanks, compress bool) (*Builder, error) {
	var compressExtensions []string
	if compress {
		compressExtensions = compressExtensionsDefault
	}
	return NewBuilderFromDirectoryWithExtensions(prefix, dir, stripBlanks, compressExtensions, skippedFileNamesDefault)
}

// NewBuilderFromDirectoryWithExtensions is NewBuilderFromDirectory
// with explicit name-suffix lists: files ending in one of
// compressExtensions are zlib-compressed, files ending in one of
// skippedFileNames are left out of the bundle.
func NewBuilderFromDirectoryWithExtensions(prefix, dir string, stripBlanks bool, compressExtensions, skippedFileNames []string) (*Builder, error) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	b := &Builder{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if hasAnySuffix(d.Name(), skippedFileNames) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return &StripPrefixError{Path: path}
		}

		var preprocess []string
		if stripBlanks {
			switch filepath.Ext(path) {
			case ".xml", ".ui", ".svg":
				preprocess = []string{preprocessXMLStripBlanks}
			case ".json":
				preprocess = []string{preprocessJSONStripBlanks}
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("os.ReadFile(%s): %w", path, err)
		}
		compressThis := hasAnySuffix(d.Name(), compressExtensions)
		fd, err := newFileData(prefix+filepath.ToSlash(rel), data, path, compressThis, preprocess)
		if err != nil {
			return err
		}
		b.files = append(b.files, fd)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Build produces the bundle file contents: one (uuay) value per file
// entry plus directory items synthesized for every path prefix.
func (b *Builder) Build() ([]byte, error) {
	tb, err := b.table()
	if err != nil {
		return nil, err
	}
	return gvdb.NewFileWriter().Bytes(tb)
}

// BuildTo streams the bundle to out.
func (b *Builder) BuildTo(out io.Writer) error {
	tb, err := b.table()
	if err != nil {
		return err
	}
	_, err = gvdb.NewFileWriter().WriteTo(tb, out)
	return err
}

func (b *Builder) table() (*gvdb.HashTableBuilder, error) {
	tb := gvdb.NewHashTableBuilder()
	for _, fd := range b.files {
		value := gvariant.Tuple(
			gvariant.Uint32(fd.size),
			gvariant.Uint32(fd.flags),
			gvariant.Bytes(fd.data),
		)
		if err := tb.InsertValue(fd.key, value); err != nil {
			return nil, err
		}
	}
	return tb, nil
}
