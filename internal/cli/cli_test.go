package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommandPrintsVersion(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), version)
}

func TestParseArgsCSV(t *testing.T) {
	vals, err := parseArgs("1, 2,3")
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, vals)

	vals, err = parseArgs("")
	require.NoError(t, err)
	require.Nil(t, vals)

	_, err = parseArgs("not-a-number")
	require.Error(t, err)
}

// minimalWasm is the empty module header, the smallest valid binary the
// decoder accepts (internal/binary.TestDecodeMinimalModule).
var minimalWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestCompileCommandSummarizesModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wasm")
	require.NoError(t, os.WriteFile(path, minimalWasm, 0o644))

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"compile", path})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "module[funcs=0")
}

func TestCompileCommandMissingFileFails(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"compile", filepath.Join(t.TempDir(), "missing.wasm")})
	require.Error(t, root.Execute())
}

func TestCheckpointCommandRequiresImageDirAndDispatchLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wasm")
	require.NoError(t, os.WriteFile(path, minimalWasm, 0o644))

	root := NewRootCommand()
	root.SetArgs([]string{"checkpoint", path})
	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "--image-dir")

	root = NewRootCommand()
	root.SetArgs([]string{"checkpoint", "--image-dir", t.TempDir(), path})
	err = root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "--dispatch-limit")
}
