package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
}

func TestDiscover_EmptyArgs(t *testing.T) {
	files, err := Discover(nil, DiscoverOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_ExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "a.png")
	jpg := filepath.Join(dir, "b.jpg")
	touch(t, png, jpg)

	files, err := Discover([]string{jpg, png, jpg}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{jpg, png}, files)
}

func TestDiscover_UnsupportedExplicitFile(t *testing.T) {
	txt := filepath.Join(t.TempDir(), "notes.txt")
	touch(t, txt)

	_, err := Discover([]string{txt}, DiscoverOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image file")
}

func TestDiscover_MissingPath(t *testing.T) {
	_, err := Discover([]string{filepath.Join(t.TempDir(), "nope.png")}, DiscoverOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestDiscover_Directory(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.jpeg")
	nested := filepath.Join(dir, "sub", "c.png")
	touch(t, a, b, nested, filepath.Join(dir, "notes.txt"))

	files, err := Discover([]string{dir}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)

	files, err = Discover([]string{dir}, DiscoverOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, nested}, files)
}

func TestDiscover_Patterns(t *testing.T) {
	dir := t.TempDir()
	chat := filepath.Join(dir, "chat_1.png")
	chatJpg := filepath.Join(dir, "chat_2.jpg")
	other := filepath.Join(dir, "photo.png")
	touch(t, chat, chatJpg, other)

	tests := []struct {
		name string
		opts DiscoverOptions
		want []string
	}{
		{"include", DiscoverOptions{Include: []string{"chat_*"}}, []string{chat, chatJpg}},
		{"exclude", DiscoverOptions{Exclude: []string{"*.jpg"}}, []string{chat, other}},
		{"exclude wins", DiscoverOptions{Include: []string{"chat_*"}, Exclude: []string{"*_2.*"}}, []string{chat}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := Discover([]string{dir}, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, files)
		})
	}
}
