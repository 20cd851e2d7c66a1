package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPopulatesCLIDefaults(t *testing.T) {
	b := Default("/tmp/prog.nmt")
	assert.Equal(t, "/tmp/prog.nmt", b.SourcePath)
	assert.Equal(t, "./build", b.OutputDir)
	assert.Equal(t, "_start", b.EntrySymbol)
	assert.False(t, b.LogJSON)
	assert.False(t, b.AsLibrary)
}

func TestOutputPathStripsExtensionAndJoinsDir(t *testing.T) {
	b := Default("/src/prog.nmt")
	b.OutputDir = "/out"
	assert.Equal(t, "/out/prog.o", b.OutputPath())
}

func TestOutputPathHandlesNoExtension(t *testing.T) {
	b := Default("/src/prog")
	b.OutputDir = "./build"
	assert.Equal(t, "build/prog.o", b.OutputPath())
}
