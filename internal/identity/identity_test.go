package identity

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientID_CreatesAndReuses(t *testing.T) {
	base := filepath.Join(t.TempDir(), "syftsync")

	first := GetClientID(base)
	require.NotEmpty(t, first)
	assert.FileExists(t, filepath.Join(base, FileName))

	second := GetClientID(base)
	assert.Equal(t, first, second)
}

func TestGetClientID_ReadsExisting(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, FileName), []byte("laptop-1234abcd\n"), 0o600))

	assert.Equal(t, "laptop-1234abcd", GetClientID(base))
}

func TestGetClientID_ReplacesGarbage(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, FileName), []byte("   \n"), 0o600))

	id := GetClientID(base)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, GetClientID(base))
}

func TestGetClientID_UnwritableBaseStillReturnsID(t *testing.T) {
	// a regular file where the base directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	base := filepath.Join(blocker, "syftsync")

	first := GetClientID(base)
	second := GetClientID(base)
	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second, "nothing persisted, so every call generates")
}

func TestGetClientID_ConcurrentCallersAgree(t *testing.T) {
	base := t.TempDir()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = GetClientID(base)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestNewClientID_Shape(t *testing.T) {
	id := NewClientID()
	idx := strings.LastIndex(id, "-")
	require.Positive(t, idx)
	assert.Len(t, id[idx+1:], suffixLen)
	assert.True(t, validID.MatchString(id))
	assert.NotEqual(t, id, NewClientID())
}

func TestSanitizeLabel(t *testing.T) {
	tests := map[string]string{
		"MacBook-Pro.local":     "macbook-pro",
		"build_box_01":          "build-box-01",
		"  ws  ":                "ws",
		"---":                   "",
		strings.Repeat("a", 40): strings.Repeat("a", maxLabelLen),
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeLabel(in), in)
	}
}
