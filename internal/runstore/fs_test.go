package runstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBytes_ReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, WriteBytes(path, []byte("first")))
	require.NoError(t, WriteBytes(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteJSONReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	in := map[string]int{"a": 1}
	require.NoError(t, WriteJSON(path, in))

	var out map[string]int
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)
}

func TestScopedCookieFile_ReleaseRemovesFile(t *testing.T) {
	path, release, err := ScopedCookieFile("# Netscape HTTP Cookie File\n")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	release()
	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestScopedCookieFile_RejectsEmptyPayload(t *testing.T) {
	_, release, err := ScopedCookieFile("  \n")
	assert.Error(t, err)
	release()
}

func TestTempWorkDir_UniqueAndRemoved(t *testing.T) {
	a, releaseA, err := TempWorkDir("ytaudio-")
	require.NoError(t, err)
	b, releaseB, err := TempWorkDir("ytaudio-")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	require.NoError(t, os.WriteFile(filepath.Join(a, "x.m4a"), []byte("x"), 0o644))
	releaseA()
	releaseB()
	_, err = os.Stat(a)
	assert.True(t, os.IsNotExist(err))
}
