package archive_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/bindings/go/modelarchive/archive"
)

const manifestJSON = `{"model":{"modelName":"noop","modelVersion":"1.0"},"runtime":"python"}`

func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "MAR-INF"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MAR-INF", "MANIFEST.json"), []byte(manifestJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "service.py"), []byte("def handle(data, ctx):\n    return data\n"), 0o644))
	return dir
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		format archive.Format
		trim   string
	}{
		{"noop.mar", archive.FormatZIP, "noop"},
		{"noop.ZIP", archive.FormatZIP, "noop"},
		{"legacy.model", archive.FormatZIP, "legacy"},
		{"resnet.tar", archive.FormatTAR, "resnet"},
		{"resnet.tar.gz", archive.FormatTGZ, "resnet"},
		{"resnet.tgz", archive.FormatTGZ, "resnet"},
		{"resnet.tar.zst", archive.FormatTZST, "resnet"},
		{"plain", archive.FormatUnknown, "plain"},
		{".mar", archive.FormatZIP, ".mar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.format, archive.FormatFromExtension(tt.name))
			assert.Equal(t, tt.trim, archive.TrimExtension(tt.name))
		})
	}
	assert.Equal(t, "tgz", archive.FormatTGZ.String())
	assert.Equal(t, "Format(42)", archive.Format(42).String())
}

func TestPackUnpackRoundTrip(t *testing.T) {
	ctx := t.Context()
	src := writeModelDir(t)

	for _, tc := range []struct {
		file   string
		format archive.Format
	}{
		{"noop.mar", archive.FormatZIP},
		{"noop.tar", archive.FormatTAR},
		{"noop.tgz", archive.FormatTGZ},
		{"noop.tar.zst", archive.FormatTZST},
	} {
		t.Run(tc.format.String(), func(t *testing.T) {
			r := require.New(t)
			path := filepath.Join(t.TempDir(), tc.file)
			r.NoError(archive.Pack(ctx, src, path, tc.format))

			detected, err := archive.DetectFormat(path)
			r.NoError(err)
			r.Equal(tc.format, detected)
			r.True(archive.IsArchiveFile(path))

			dest := t.TempDir()
			r.NoError(archive.Unpack(ctx, path, dest))
			data, err := os.ReadFile(filepath.Join(dest, "MAR-INF", "MANIFEST.json"))
			r.NoError(err)
			r.JSONEq(manifestJSON, string(data))
			r.FileExists(filepath.Join(dest, "service.py"))

			fsys, closer, err := archive.OpenFS(path)
			r.NoError(err)
			t.Cleanup(func() { _ = closer.Close() })
			data, err = fs.ReadFile(fsys, "MAR-INF/MANIFEST.json")
			r.NoError(err)
			r.JSONEq(manifestJSON, string(data))
		})
	}
}

func TestDetectFormat(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()

	format, err := archive.DetectFormat(dir)
	r.NoError(err)
	r.Equal(archive.FormatDirectory, format)
	r.False(archive.IsArchiveFile(dir))

	// a zip archive with a misleading extension is still detected from its content
	misnamed := filepath.Join(dir, "weights.bin")
	var buf bytes.Buffer
	r.NoError(archive.PackToWriter(t.Context(), fstest.MapFS{
		"MANIFEST.json": {Data: []byte(manifestJSON)},
	}, &buf, archive.FormatZIP))
	r.NoError(os.WriteFile(misnamed, buf.Bytes(), 0o644))
	format, err = archive.DetectFormat(misnamed)
	r.NoError(err)
	r.Equal(archive.FormatZIP, format)

	text := filepath.Join(dir, "README")
	r.NoError(os.WriteFile(text, []byte("not an archive"), 0o644))
	_, err = archive.DetectFormat(text)
	r.ErrorIs(err, archive.ErrUnsupportedFormat)
	r.False(archive.IsArchiveFile(text))

	_, err = archive.DetectFormat(filepath.Join(dir, "missing.mar"))
	r.ErrorIs(err, os.ErrNotExist)
}

func TestUnpackDirectory(t *testing.T) {
	r := require.New(t)
	src := writeModelDir(t)
	dest := t.TempDir()

	r.NoError(archive.Unpack(t.Context(), src, dest))
	r.FileExists(filepath.Join(dest, "MAR-INF", "MANIFEST.json"))
	r.FileExists(filepath.Join(dest, "service.py"))
}

func TestUnpackRejectsUnsafeEntries(t *testing.T) {
	tarWith := func(t *testing.T, headers ...*tar.Header) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "bad.tar")
		var buf bytes.Buffer
		tw := tar.NewWriter(&buf)
		for _, h := range headers {
			if h.Typeflag == tar.TypeReg {
				h.Size = int64(len("data"))
			}
			require.NoError(t, tw.WriteHeader(h))
			if h.Typeflag == tar.TypeReg {
				_, err := tw.Write([]byte("data"))
				require.NoError(t, err)
			}
		}
		require.NoError(t, tw.Close())
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
		return path
	}

	tests := []struct {
		name    string
		headers []*tar.Header
	}{
		{"parent traversal", []*tar.Header{{Name: "../escaped", Typeflag: tar.TypeReg, Mode: 0o644}}},
		{"nested traversal", []*tar.Header{{Name: "a/../../escaped", Typeflag: tar.TypeReg, Mode: 0o644}}},
		{"absolute", []*tar.Header{{Name: "/escaped", Typeflag: tar.TypeReg, Mode: 0o644}}},
		{"absolute symlink", []*tar.Header{{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}}},
		{"escaping symlink", []*tar.Header{{Name: "a/link", Typeflag: tar.TypeSymlink, Linkname: "../../outside"}}},
		{"escaping hardlink", []*tar.Header{{Name: "link", Typeflag: tar.TypeLink, Linkname: "../outside"}}},
		{"device", []*tar.Header{{Name: "dev", Typeflag: tar.TypeChar}}},
		{"duplicate", []*tar.Header{
			{Name: "file", Typeflag: tar.TypeReg, Mode: 0o644},
			{Name: "file", Typeflag: tar.TypeReg, Mode: 0o644},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dest := filepath.Join(parent, "dest")
			require.NoError(t, os.Mkdir(dest, 0o755))

			err := archive.Unpack(t.Context(), tarWith(t, tt.headers...), dest)
			require.Error(t, err)
			assert.NoFileExists(t, filepath.Join(parent, "escaped"))
			assert.NoFileExists(t, filepath.Join(parent, "outside"))
		})
	}
}

func TestUnpackZIPValidatesBeforeWriting(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "bad.mar")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"MANIFEST.json", "../escaped"} {
		w, err := zw.Create(name)
		r.NoError(err)
		_, err = w.Write([]byte(manifestJSON))
		r.NoError(err)
	}
	r.NoError(zw.Close())
	r.NoError(os.WriteFile(path, buf.Bytes(), 0o644))

	dest := t.TempDir()
	r.Error(archive.Unpack(t.Context(), path, dest))

	entries, err := os.ReadDir(dest)
	r.NoError(err)
	r.Empty(entries, "no entry must be written for an archive with an unsafe entry")
}

func TestUnpackHonoursContext(t *testing.T) {
	r := require.New(t)
	src := writeModelDir(t)
	path := filepath.Join(t.TempDir(), "noop.tgz")
	r.NoError(archive.Pack(t.Context(), src, path, archive.FormatTGZ))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := archive.Unpack(ctx, path, t.TempDir())
	r.ErrorIs(err, context.Canceled)
}
