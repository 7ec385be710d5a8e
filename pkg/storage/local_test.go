package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDisk_PutCreatesDirectoriesAndOverwrites(t *testing.T) {
	root := t.TempDir()
	disk := NewLocal(root)

	require.NoError(t, disk.Put("logs/nested/out.txt", []byte("first")))
	require.NoError(t, disk.Put("logs/nested/out.txt", []byte("second")))

	data, err := os.ReadFile(filepath.Join(root, "logs", "nested", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "logs", "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalDisk_Metadata(t *testing.T) {
	disk := NewLocal(t.TempDir())
	require.NoError(t, disk.Put("a.txt", []byte("12345")))

	assert.False(t, disk.Missing("a.txt"))
	assert.True(t, disk.Missing("b.txt"))

	size, err := disk.Size("a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	mod, err := disk.LastModified("a.txt")
	require.NoError(t, err)
	assert.False(t, mod.IsZero())
}

func TestLocalDisk_GetMissing(t *testing.T) {
	disk := NewLocal(t.TempDir())

	_, err := disk.Get("nope.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLocalDisk_Delete(t *testing.T) {
	disk := NewLocal(t.TempDir())
	require.NoError(t, disk.Put("a.txt", []byte("x")))

	require.NoError(t, disk.Delete("a.txt"))
	assert.True(t, disk.Missing("a.txt"))
	assert.NoError(t, disk.Delete("a.txt"), "deleting a missing file is not an error")
}

func TestManager_RegisterAndResolve(t *testing.T) {
	disk := NewLocal(t.TempDir())
	RegisterDisk("manager-test", disk)

	got, err := Resolve("manager-test")
	require.NoError(t, err)
	assert.Same(t, disk, got)

	_, err = Resolve("not-a-disk")
	assert.ErrorIs(t, err, ErrDiskNotConfigured)
	assert.Panics(t, func() { Use("not-a-disk") })

	_, ok := Lookup("local")
	assert.True(t, ok, "local disk is always booted")
}
