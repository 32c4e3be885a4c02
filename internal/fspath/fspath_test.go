package fspath_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/bindings/go/modelarchive/internal/fspath"
)

func TestHasTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/../escaped", true},
		{"../model.mar", true},
		{`models\..\..\etc`, true},
		{"a/b/../c", true},
		{"..", true},
		{"noop.mar", false},
		{"a/..b/c", false},
		{"/tmp/models/noop.mar", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, fspath.HasTraversal(tt.path))
		})
	}
}

func TestEnsurePathInDirectory(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()
	outside := t.TempDir()

	r.NoError(os.WriteFile(filepath.Join(dir, "model.mar"), []byte("x"), 0o600))
	r.NoError(os.WriteFile(filepath.Join(outside, "other.mar"), []byte("x"), 0o600))

	t.Run("relative inside", func(t *testing.T) {
		path, err := fspath.EnsurePathInDirectory("model.mar", dir)
		require.NoError(t, err)
		resolvedDir, err := fspath.ResolveDir(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(resolvedDir, "model.mar"), path)
	})

	t.Run("not yet existing inside", func(t *testing.T) {
		_, err := fspath.EnsurePathInDirectory("new.mar", dir)
		assert.NoError(t, err)
	})

	t.Run("absolute outside", func(t *testing.T) {
		_, err := fspath.EnsurePathInDirectory(filepath.Join(outside, "other.mar"), dir)
		assert.ErrorIs(t, err, fspath.ErrOutsideDirectory)
	})

	t.Run("symlink escaping", func(t *testing.T) {
		link := filepath.Join(dir, "link.mar")
		if err := os.Symlink(filepath.Join(outside, "other.mar"), link); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
		_, err := fspath.EnsurePathInDirectory("link.mar", dir)
		assert.ErrorIs(t, err, fspath.ErrOutsideDirectory)
	})

	t.Run("any directory", func(t *testing.T) {
		path, err := fspath.EnsurePathInAnyDirectory(filepath.Join(outside, "other.mar"), dir, dir, outside)
		require.NoError(t, err)
		assert.Equal(t, "other.mar", filepath.Base(path))

		_, err = fspath.EnsurePathInAnyDirectory(filepath.Join(outside, "other.mar"), dir, dir)
		assert.ErrorIs(t, err, fspath.ErrOutsideDirectory)
	})
}

func TestSanitizeName(t *testing.T) {
	for _, name := range []string{"noop", "resnet-18", "model_v1.2"} {
		got, err := fspath.SanitizeName(name)
		assert.NoError(t, err, name)
		assert.Equal(t, name, got)
	}
	for _, name := range []string{"", ".", "..", ".hidden", "a/b", `a\b`} {
		_, err := fspath.SanitizeName(name)
		assert.ErrorIs(t, err, fspath.ErrInvalidName, name)
	}
}

func TestCleanEntryName(t *testing.T) {
	r := require.New(t)

	name, err := fspath.CleanEntryName("MAR-INF/MANIFEST.json")
	r.NoError(err)
	r.Equal("MAR-INF/MANIFEST.json", name)

	name, err = fspath.CleanEntryName("./weights//model.pt")
	r.NoError(err)
	r.Equal("weights/model.pt", name)

	name, err = fspath.CleanEntryName("./")
	r.NoError(err)
	r.Empty(name)

	for _, bad := range []string{"/etc/passwd", "../escape", "a/../../b", `..\windows`, ""} {
		_, err := fspath.CleanEntryName(bad)
		r.Error(err, bad)
	}
}
