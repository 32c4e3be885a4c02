package modelarchive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/bindings/go/modelarchive"
)

func TestClassify(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "noop.mar"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "noop_v1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shared, "mnist1.tar.gz"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(shared, "mnist1.tar.gz"), filepath.Join(root, "linked.mar")))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.mar"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.mar"), filepath.Join(root, "escape.mar")))

	store, err := modelarchive.Open(root, modelarchive.WithAllowedRoots(shared), modelarchive.WithWorkingDirectory(shared))
	require.NoError(t, err)

	tests := []struct {
		reference string
		kind      modelarchive.SourceKind
		name      string
		fileName  string
		err       error
	}{
		{reference: "noop.mar", kind: modelarchive.StoreLocal, name: "noop", fileName: "noop.mar"},
		{reference: "noop_v1", kind: modelarchive.StoreLocal, name: "noop_v1", fileName: "noop_v1"},
		{reference: "linked.mar", err: modelarchive.ErrInvalidReference},
		{reference: "escape.mar", err: modelarchive.ErrInvalidReference},
		{reference: "mnist1.tar.gz", kind: modelarchive.LocalPath, name: "mnist1", fileName: "mnist1.tar.gz"},
		{reference: filepath.Join(shared, "mnist1.tar.gz"), kind: modelarchive.LocalPath, name: "mnist1", fileName: "mnist1.tar.gz"},
		{reference: "file://" + filepath.ToSlash(filepath.Join(shared, "mnist1.tar.gz")), kind: modelarchive.FileURI, name: "mnist1", fileName: "mnist1.tar.gz"},
		{reference: "https://example.com/models/squeezenet_v1.1.mar", kind: modelarchive.RemoteURL, name: "squeezenet_v1.1", fileName: "squeezenet_v1.1.mar"},
		{reference: "HTTP://example.com:8080/resnet-18.tgz?sig=abc", kind: modelarchive.RemoteURL, name: "resnet-18", fileName: "resnet-18.tgz"},
		{reference: "https://example.com/.hidden.mar", err: modelarchive.ErrInvalidReference},
		{reference: "https://example.com:99999/noop.mar", err: modelarchive.ErrDownloadFailed},
		{reference: "ftp://example.com/noop.mar", err: modelarchive.ErrInvalidReference},
		{reference: "", err: modelarchive.ErrInvalidReference},
		{reference: "   ", err: modelarchive.ErrInvalidReference},
		{reference: ".", err: modelarchive.ErrInvalidReference},
		{reference: "/../escaped", err: modelarchive.ErrInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			src, err := store.Classify(tt.reference)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, src.Kind)
			assert.Equal(t, tt.name, src.Name)
			assert.Equal(t, tt.fileName, src.FileName)
			assert.Equal(t, tt.reference, src.Reference)
			if tt.kind == modelarchive.RemoteURL {
				assert.NotNil(t, src.URL)
				assert.Empty(t, src.Path)
			} else {
				assert.True(t, filepath.IsAbs(src.Path))
			}
		})
	}
}

func TestSourceKindString(t *testing.T) {
	assert.Equal(t, "StoreLocal", modelarchive.StoreLocal.String())
	assert.Equal(t, "RemoteURL", modelarchive.RemoteURL.String())
	assert.Equal(t, "SourceKind(0)", modelarchive.SourceKind(0).String())
}
