package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Pack writes the directory tree at src as an archive of the given format to dest.
// dest is created or truncated. Entries are written in lexical order so that
// packing the same tree twice yields the same entry sequence.
func Pack(ctx context.Context, src, dest string, format Format) (err error) {
	if format == FormatDirectory || format == FormatUnknown {
		return fmt.Errorf("%w: cannot pack into %s", ErrUnsupportedFormat, format)
	}

	srcRoot, err := os.OpenRoot(src)
	if err != nil {
		return fmt.Errorf("unable to open source directory: %w", err)
	}
	defer func() {
		err = errors.Join(err, srcRoot.Close())
	}()

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("unable to open file for writing archive: %w", err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return PackToWriter(ctx, srcRoot.FS(), file, format)
}

// PackToWriter writes the content of fsys as an archive of the given format to w.
func PackToWriter(ctx context.Context, fsys fs.FS, w io.Writer, format Format) (err error) {
	switch format {
	case FormatZIP:
		zw := zip.NewWriter(w)
		defer func() {
			err = errors.Join(err, zw.Close())
		}()
		return walkFiles(ctx, fsys, func(name string, fi fs.FileInfo) error {
			header, err := zip.FileInfoHeader(fi)
			if err != nil {
				return err
			}
			header.Name = name
			if fi.IsDir() {
				header.Name += "/"
				_, err = zw.CreateHeader(header)
				return err
			}
			header.Method = zip.Deflate
			entry, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			return copyFrom(fsys, name, entry)
		})
	case FormatTAR, FormatTGZ, FormatTZST:
		var out io.Writer = w
		switch format {
		case FormatTGZ:
			gz := gzip.NewWriter(w)
			defer func() {
				err = errors.Join(err, gz.Close())
			}()
			out = gz
		case FormatTZST:
			zw, zerr := zstd.NewWriter(w)
			if zerr != nil {
				return fmt.Errorf("unable to create zstd writer: %w", zerr)
			}
			defer func() {
				err = errors.Join(err, zw.Close())
			}()
			out = zw
		}
		tw := tar.NewWriter(out)
		defer func() {
			err = errors.Join(err, tw.Close())
		}()
		return walkFiles(ctx, fsys, func(name string, fi fs.FileInfo) error {
			header, err := tar.FileInfoHeader(fi, "")
			if err != nil {
				return err
			}
			header.Name = name
			if fi.IsDir() {
				header.Name += "/"
			}
			if err := tw.WriteHeader(header); err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			return copyFrom(fsys, name, tw)
		})
	default:
		return fmt.Errorf("%w: cannot pack into %s", ErrUnsupportedFormat, format)
	}
}

func walkFiles(ctx context.Context, fsys fs.FS, fn func(name string, fi fs.FileInfo) error) error {
	return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		fi, err := fs.Stat(fsys, name)
		if err != nil {
			return err
		}
		if !fi.IsDir() && !fi.Mode().IsRegular() {
			return fmt.Errorf("%w: %s is not a regular file", ErrUnsafeEntry, name)
		}
		if err := fn(name, fi); err != nil {
			return fmt.Errorf("unable to pack %s: %w", name, err)
		}
		return nil
	})
}

func copyFrom(fsys fs.FS, name string, w io.Writer) (err error) {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	_, err = io.Copy(w, f)
	return err
}
