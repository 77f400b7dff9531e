// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gresource

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manifest is a parsed GResource XML manifest.  Dir is the directory
// source paths are resolved against, normally the manifest's own.
type Manifest struct {
	Dir       string
	Resources []Resource
}

// Resource is one <gresource> group: a virtual path prefix and the
// files bundled beneath it.
type Resource struct {
	Prefix string
	Files  []File
}

// File is one <file> entry.  Alias, when set, replaces Path in the
// virtual key; Preprocess lists preprocessor names in application
// order.
type File struct {
	Path       string
	Alias      string
	Compressed bool
	Preprocess []string
}

// Key returns the file's virtual path under prefix.
func (f *File) Key(prefix string) string {
	key := prefix
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	if f.Alias != "" {
		return key + f.Alias
	}
	return key + f.Path
}

// SchemaError reports manifest content that doesn't conform to the
// GResource XML schema.
type SchemaError string

func (e SchemaError) Error() string {
	return fmt.Sprintf("manifest schema: %s", string(e))
}

type xmlDoc struct {
	XMLName   xml.Name      `xml:"gresources"`
	Resources []xmlResource `xml:"gresource"`
}

type xmlResource struct {
	Prefix string    `xml:"prefix,attr"`
	Files  []xmlFile `xml:"file"`
}

type xmlFile struct {
	Path       string `xml:",chardata"`
	Alias      string `xml:"alias,attr"`
	Compressed string `xml:"compressed,attr"`
	Preprocess string `xml:"preprocess,attr"`
}

// ManifestFromFile parses the manifest at path.  Relative source
// paths resolve against the manifest's directory.
func ManifestFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s): %w", path, err)
	}
	return ManifestFromBytes(filepath.Dir(path), data)
}

// ManifestFromBytes parses manifest XML.  Relative source paths
// resolve against dir.
func ManifestFromBytes(dir string, data []byte) (*Manifest, error) {
	var doc xmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	m := &Manifest{Dir: dir}
	for _, res := range doc.Resources {
		r := Resource{Prefix: res.Prefix}
		for _, f := range res.Files {
			path := strings.TrimSpace(f.Path)
			if path == "" {
				return nil, SchemaError("<file> element with empty path")
			}
			compressed, err := parseBoolAttr(f.Compressed)
			if err != nil {
				return nil, err
			}
			preprocess, err := parsePreprocessAttr(f.Preprocess)
			if err != nil {
				return nil, err
			}
			r.Files = append(r.Files, File{
				Path:       path,
				Alias:      f.Alias,
				Compressed: compressed,
				Preprocess: preprocess,
			})
		}
		m.Resources = append(m.Resources, r)
	}
	return m, nil
}

func parseBoolAttr(s string) (bool, error) {
	switch s {
	case "":
		return false, nil
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, SchemaError(fmt.Sprintf("got %q, but expected one of 'true', 't', 'yes', 'y', '1', 'false', 'f', 'no', 'n', '0'", s))
	}
}

func parsePreprocessAttr(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var names []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case preprocessXMLStripBlanks, preprocessJSONStripBlanks, preprocessToPixdata:
			names = append(names, name)
		default:
			return nil, SchemaError(fmt.Sprintf("got %q, but expected any of 'xml-stripblanks', 'json-stripblanks', 'to-pixdata'", name))
		}
	}
	return names, nil
}
