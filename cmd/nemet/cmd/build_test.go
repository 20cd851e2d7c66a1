package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBuildWritesObjectFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.nmt")
	require.NoError(t, os.WriteFile(src, []byte(`func main() {
		return;
	}`), 0644))

	outputDir = filepath.Join(dir, "build")
	entrySymbol = "_start"
	logJSON = false
	asLibrary = false
	t.Cleanup(func() {
		outputDir, entrySymbol, logJSON, asLibrary = "./build", "_start", false, false
	})

	require.NoError(t, runBuild(src))

	out := filepath.Join(outputDir, "prog.o")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, data[0:4])
}

func TestRunBuildReportsParseErrorForInvalidSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.nmt")
	require.NoError(t, os.WriteFile(src, []byte(`func main() { return 1 }`), 0644))

	outputDir = filepath.Join(dir, "build")
	entrySymbol = "_start"
	t.Cleanup(func() {
		outputDir, entrySymbol, logJSON, asLibrary = "./build", "_start", false, false
	})

	assert.Error(t, runBuild(src))
}

func TestRunBuildMissingSourceFileIsAnIOError(t *testing.T) {
	outputDir = t.TempDir()
	t.Cleanup(func() {
		outputDir, entrySymbol, logJSON, asLibrary = "./build", "_start", false, false
	})
	assert.Error(t, runBuild(filepath.Join(outputDir, "nope.nmt")))
}
