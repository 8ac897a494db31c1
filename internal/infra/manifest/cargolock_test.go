package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLock = `# This file is automatically @generated by Cargo.
version = 3

[[package]]
name = "myproject"
version = "0.1.0"
dependencies = [
 "rand",
 "serde",
]

[[package]]
name = "rand"
version = "0.8.5"
source = "registry+https://github.com/rust-lang/crates.io-index"
dependencies = [
 "libc 0.2.150",
]

[[package]]
name = "serde"
version = "1.0.190"
source = "registry+https://github.com/rust-lang/crates.io-index"
`

func writeProject(t *testing.T, lock string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.lock"), []byte(lock), 0o644))
	return dir
}

func TestUnitsSkipsWorkspacePackage(t *testing.T) {
	units, err := Units(writeProject(t, sampleLock))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "rand", units[0].Name)
	assert.Equal(t, "0.8.5", units[0].Version)
	assert.Equal(t, []string{"libc"}, units[0].Dependencies, "version qualifier stripped")
	assert.Equal(t, "serde", units[1].Name)
}

func TestUnitsContentIsStable(t *testing.T) {
	dir := writeProject(t, sampleLock)
	first, err := Units(dir)
	require.NoError(t, err)
	second, err := Units(dir)
	require.NoError(t, err)
	assert.Equal(t, first[0].Content, second[0].Content)
}

func TestUnitsMissingLockfile(t *testing.T) {
	_, err := Units(t.TempDir())
	assert.Error(t, err)
}

func TestSourceUnitsWalksRustFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.rs"), []byte("fn main() {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target", "gen.rs"), []byte("// generated"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644))

	units, err := SourceUnits(dir)
	require.NoError(t, err)
	require.Len(t, units, 1, "target/ and non-rust files are excluded")
	assert.Equal(t, filepath.Join("src", "main.rs"), units[0].Name)
	assert.Len(t, units[0].Version, 12)
}
