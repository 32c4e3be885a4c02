package v1alpha1_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/bindings/go/modelarchive/config/v1alpha1"
)

func TestLoad(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	r.NoError(os.WriteFile(path, []byte(`
type: modelarchive.config.ocm.software/v1alpha1
storeRoot: /var/lib/models
allowedRoots:
  - /mnt/shared
versionedDirectories: true
download:
  timeout: 1m30s
`), 0o600))

	cfg, err := v1alpha1.Load(path)
	r.NoError(err)
	r.Equal("/var/lib/models", cfg.StoreRoot)
	r.Equal([]string{"/mnt/shared"}, cfg.AllowedRoots)
	r.True(cfg.Versioned())
	r.Equal(v1alpha1.Duration(90*time.Second), cfg.Download.Timeout)
	r.NoError(cfg.Validate())
}

func TestDecode(t *testing.T) {
	t.Run("defaults type", func(t *testing.T) {
		cfg, err := v1alpha1.Decode([]byte(`{"storeRoot":"models"}`))
		require.NoError(t, err)
		assert.Equal(t, v1alpha1.VersionedType, cfg.Type)
		assert.False(t, cfg.Versioned())
	})
	t.Run("unknown type", func(t *testing.T) {
		_, err := v1alpha1.Decode([]byte(`type: filesystem.config.ocm.software/v1alpha1`))
		assert.ErrorIs(t, err, v1alpha1.ErrUnsupportedType)
	})
	t.Run("unknown field", func(t *testing.T) {
		_, err := v1alpha1.Decode([]byte(`storeroot: models`))
		assert.Error(t, err)
	})
	t.Run("invalid duration", func(t *testing.T) {
		_, err := v1alpha1.Decode([]byte("download:\n  timeout: soon\n"))
		assert.Error(t, err)
	})
	t.Run("negative duration", func(t *testing.T) {
		cfg, err := v1alpha1.Decode([]byte("download:\n  timeout: -1s\n"))
		require.NoError(t, err)
		assert.Error(t, cfg.Validate())
	})
}

func TestMerge(t *testing.T) {
	r := require.New(t)
	versioned := true

	r.Nil(v1alpha1.Merge())

	merged := v1alpha1.Merge(
		&v1alpha1.Config{StoreRoot: "/a", AllowedRoots: []string{"/x"}, VersionedDirectories: &versioned},
		nil,
		&v1alpha1.Config{StoreRoot: "/b", AllowedRoots: []string{"/x", "/y"}, Download: v1alpha1.Download{Timeout: v1alpha1.Duration(time.Minute)}},
	)
	r.Equal("/b", merged.StoreRoot)
	r.Equal([]string{"/x", "/y"}, merged.AllowedRoots)
	r.True(merged.Versioned())
	r.Equal(v1alpha1.Duration(time.Minute), merged.Download.Timeout)
	r.Equal(v1alpha1.VersionedType, merged.Type)
}
