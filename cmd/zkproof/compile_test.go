package zkproof

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstExisting(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.pk")
	require.NoError(t, os.WriteFile(present, []byte{1}, 0644))

	assert.Equal(t, present, firstExisting(filepath.Join(dir, "a.ccs"), present))
	assert.Empty(t, firstExisting(filepath.Join(dir, "a.ccs"), filepath.Join(dir, "a.vk")))
}

func TestSetGnarkLogger(t *testing.T) {
	require.NoError(t, setGnarkLogger("disabled"))
	require.NoError(t, setGnarkLogger("warn"))
	require.Error(t, setGnarkLogger("loud"))
}

func TestRunCompileSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sod-embedded-hash-1.ccs"), []byte{1}, 0644))

	var out bytes.Buffer
	cfg := &compileConfig{outputDir: dir, circuits: []string{"sod-embedded-hash", "unknown"}, curve: "bn254", logLevel: "disabled"}
	require.NoError(t, runCompile(&out, cfg))
	assert.Contains(t, out.String(), "already exists")
	assert.Contains(t, out.String(), "Circuit unknown not found")
}

func TestRunCompileCurve(t *testing.T) {
	err := runCompile(&bytes.Buffer{}, &compileConfig{outputDir: t.TempDir(), curve: "bls12-381", logLevel: "disabled"})
	require.Error(t, err)
}
