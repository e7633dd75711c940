package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesEnsureRemovesStaleLocks(t *testing.T) {
	p := NewProfiles(t.TempDir())

	dir, err := p.Ensure("work")
	require.NoError(t, err)

	// a crashed browser leaves a dangling symlink plus regular files
	require.NoError(t, os.Symlink("host-12345", filepath.Join(dir, "SingletonLock")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SingletonCookie"), nil, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cookies"), []byte("keep"), 0600))

	again, err := p.Ensure("work")
	require.NoError(t, err)
	assert.Equal(t, dir, again)

	_, err = os.Lstat(filepath.Join(dir, "SingletonLock"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "SingletonCookie"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "Cookies"))
	assert.NoError(t, err, "profile data must survive")
}

func TestProfilesRejectsTraversal(t *testing.T) {
	p := NewProfiles(t.TempDir())
	for _, name := range []string{"..", "a/b", `a\b`} {
		_, err := p.Ensure(name)
		require.Error(t, err, name)
		assert.True(t, IsKind(err, KindInvalidParams))
	}
}

func TestProfilesListAndClear(t *testing.T) {
	p := NewProfiles(t.TempDir())

	list, err := p.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, name := range []string{"zeta", "alpha"} {
		dir, err := p.Ensure(name)
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "Default"), 0750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Default", "Cookies"), make([]byte, 2048), 0600))
	}

	list, err = p.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, int64(2048), list[0].Size)
	assert.False(t, list[0].LastUsed.IsZero())

	require.NoError(t, p.Clear("alpha"))
	entries, err := os.ReadDir(list[0].Path)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Error(t, p.Clear("missing"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "2.0 KB", FormatSize(2048))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
}
