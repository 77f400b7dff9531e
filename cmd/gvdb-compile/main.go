// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// gvdb-compile turns a GResource XML manifest into a .gresource
// bundle, in the vein of glib-compile-resources.
package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/zerodha/logf"

	"github.com/gvdb-go/gvdb/gresource"
)

func main() {
	f := flag.NewFlagSet("gvdb-compile", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println("usage: gvdb-compile [flags] MANIFEST")
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	var (
		target    = f.String("target", "", "Name of the output file (defaults to the manifest name with a .gresource suffix).")
		sourceDir = f.String("sourcedir", "", "Directory to resolve source files against (defaults to the manifest's directory).")
		debug     = f.Bool("debug", false, "Enable debug logging.")
	)
	if err := f.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	opts := logf.Opts{}
	if *debug {
		opts.Level = logf.DebugLevel
		opts.EnableColor = true
	}
	lo := logf.New(opts)

	if f.NArg() != 1 {
		lo.Fatal("expected exactly one manifest argument")
	}
	manifestPath := f.Arg(0)

	manifest, err := gresource.ManifestFromFile(manifestPath)
	if err != nil {
		lo.Fatal("error parsing manifest", "path", manifestPath, "error", err)
	}
	if *sourceDir != "" {
		manifest.Dir = *sourceDir
	}

	builder, err := gresource.NewBuilderFromManifest(manifest)
	if err != nil {
		lo.Fatal("error reading bundle sources", "error", err)
	}

	out := *target
	if out == "" {
		out = strings.TrimSuffix(manifestPath, ".gresource.xml")
		out = strings.TrimSuffix(out, ".xml") + ".gresource"
	}

	outFile, err := os.Create(out)
	if err != nil {
		lo.Fatal("error creating output file", "path", out, "error", err)
	}
	if err := builder.BuildTo(outFile); err != nil {
		_ = outFile.Close()
		_ = os.Remove(out)
		lo.Fatal("error writing bundle", "error", err)
	}
	if err := outFile.Close(); err != nil {
		lo.Fatal("error closing output file", "path", out, "error", err)
	}

	lo.Debug("bundle written", "path", out)
}
