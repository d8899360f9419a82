package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"http://127.0.0.1:8080", true},
		{"https://sync.example.com/base", true},
		{"ftp://example.com", false},
		{"localhost:8080", false},
		{"", false},
		{"http://", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidURL(tt.in), tt.in)
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "*****", MaskSecret("abc"))
	assert.Equal(t, "abcd*****", MaskSecret("abcdefgh"))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "notes.json")

	require.NoError(t, WriteFileAtomic(path, []byte("v1"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("v2"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCopyFile_PreservesModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.md")
	dst := filepath.Join(dir, "backup", "dst.md")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	mtime := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestEnsureParentAndFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c.txt")

	assert.False(t, FileExists(path))
	require.NoError(t, EnsureParent(path))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Dir(path)))
}

func TestProjectIDFromDir(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "one", "My Project")
	b := filepath.Join(base, "two", "My Project")

	idA, err := ProjectIDFromDir(a)
	require.NoError(t, err)
	idB, err := ProjectIDFromDir(b)
	require.NoError(t, err)

	assert.Regexp(t, `^my-project-[0-9a-f]{8}$`, idA)
	assert.NotEqual(t, idA, idB, "same name in different places")

	again, err := ProjectIDFromDir(a)
	require.NoError(t, err)
	assert.Equal(t, idA, again)
	assert.True(t, IsValidProjectID(idA))

	_, err = ProjectIDFromDir("")
	assert.Error(t, err)
}

func TestIsValidProjectID(t *testing.T) {
	assert.True(t, IsValidProjectID("syftsync-1a2b3c4d"))
	assert.True(t, IsValidProjectID("p"))
	assert.False(t, IsValidProjectID(""))
	assert.False(t, IsValidProjectID("../etc"))
	assert.False(t, IsValidProjectID("a/b"))
	assert.False(t, IsValidProjectID("-leading"))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "application/json", DetectContentType("p1/notes.json"))
	assert.Equal(t, "text/plain; charset=utf-8", DetectContentType("p1/context.md"))
	assert.Equal(t, "application/octet-stream", DetectContentType("p1/blob"))
}
