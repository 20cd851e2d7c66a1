// Package config holds the small value object the CLI populates from
// flags and passes into the compiler pipeline.
package config

import (
	"path/filepath"
	"strings"
)

// Build carries everything a single `nemet build <path>` invocation
// needs. It has no on-disk file-format counterpart, only CLI flags;
// it's shaped this way so a future layered-config source could
// populate it without changing any caller.
type Build struct {
	SourcePath  string
	OutputDir   string // defaults to "./build"
	EntrySymbol string // defaults to "_start"
	LogJSON     bool
	AsLibrary   bool // compile without an entry-point symbol
}

// Default returns a Build for sourcePath with the CLI's defaults.
func Default(sourcePath string) Build {
	return Build{
		SourcePath:  sourcePath,
		OutputDir:   "./build",
		EntrySymbol: "_start",
	}
}

// OutputPath returns the ELF object path for this build:
// <OutputDir>/<basename-without-ext>.o
func (b Build) OutputPath() string {
	base := filepath.Base(b.SourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(b.OutputDir, base+".o")
}
