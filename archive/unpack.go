package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"ocm.software/open-component-model/bindings/go/modelarchive/internal/fspath"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/iox"
)

// ErrUnsafeEntry is returned when an archive contains an entry that would be
// written outside of the destination directory.
var ErrUnsafeEntry = errors.New("unsafe archive entry")

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Unpack extracts the archive at src into the existing directory dest.
// All writes happen through an os.Root opened on dest, and every entry is checked
// before it is written. A single unsafe entry aborts the extraction; the caller owns
// dest and is responsible for removing partially extracted content.
// For FormatDirectory, src is copied into dest.
func Unpack(ctx context.Context, src, dest string) (err error) {
	format, err := DetectFormat(src)
	if err != nil {
		return err
	}
	return UnpackFormat(ctx, src, dest, format)
}

// UnpackFormat is Unpack with an explicitly given format.
func UnpackFormat(ctx context.Context, src, dest string, format Format) (err error) {
	root, err := os.OpenRoot(dest)
	if err != nil {
		return fmt.Errorf("unable to open extraction root: %w", err)
	}
	defer func() {
		err = errors.Join(err, root.Close())
	}()

	switch format {
	case FormatDirectory:
		return copyDirectory(ctx, src, root)
	case FormatZIP:
		return unpackZIP(ctx, src, root)
	case FormatTAR, FormatTGZ, FormatTZST:
		return unpackTAR(ctx, src, root, format)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// decompress returns a reader over the TAR stream contained in r.
func decompress(r io.Reader, format Format) (io.Reader, func() error, error) {
	switch format {
	case FormatTAR:
		return r, func() error { return nil }, nil
	case FormatTGZ:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create gzip reader: %w", err)
		}
		return gz, gz.Close, nil
	case FormatTZST:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create zstd reader: %w", err)
		}
		return zr, func() error { zr.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s is not a tar format", ErrUnsupportedFormat, format)
	}
}

func unpackTAR(ctx context.Context, src string, root *os.Root, format Format) (err error) {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("unable to open tar file: %w", err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	stream, closeStream, err := decompress(iox.NewContextReader(ctx, file), format)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeStream())
	}()

	reader := tar.NewReader(stream)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("unable to read tar entry: %w", err)
		}
		name, err := entryName(header.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, dirPerm); err != nil {
				return fmt.Errorf("unable to create directory %s: %w", name, err)
			}
		case tar.TypeReg:
			if err := writeFile(root, name, reader, header.Size, header.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := symlink(root, name, header.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			if err := hardlink(root, name, header.Linkname); err != nil {
				return err
			}
		case tar.TypeXGlobalHeader:
			// pax global headers carry no content
		default:
			return fmt.Errorf("%w: %s has unsupported type %q", ErrUnsafeEntry, header.Name, header.Typeflag)
		}
	}
}

func unpackZIP(ctx context.Context, src string, root *os.Root) (err error) {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("unable to open zip file: %w", err)
	}
	defer func() {
		err = errors.Join(err, reader.Close())
	}()

	// validate all names up front so that nothing is written for an archive with a bad entry
	names := make([]string, len(reader.File))
	for i, f := range reader.File {
		if names[i], err = entryName(f.Name); err != nil {
			return err
		}
	}

	for i, f := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := names[i]
		if name == "" {
			continue
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := root.MkdirAll(name, dirPerm); err != nil {
				return fmt.Errorf("unable to create directory %s: %w", name, err)
			}
		case mode&fs.ModeSymlink != 0:
			target, err := readZIPEntry(f, 4096)
			if err != nil {
				return err
			}
			if err := symlink(root, name, string(target)); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := writeZIPEntry(ctx, root, name, f); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s has unsupported mode %s", ErrUnsafeEntry, f.Name, mode)
		}
	}
	return nil
}

func writeZIPEntry(ctx context.Context, root *os.Root, name string, f *zip.File) (err error) {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("unable to open zip entry %s: %w", f.Name, err)
	}
	defer func() {
		err = errors.Join(err, rc.Close())
	}()
	return writeFile(root, name, iox.NewContextReader(ctx, rc), int64(f.UncompressedSize64), f.Mode())
}

func readZIPEntry(f *zip.File, limit int64) (_ []byte, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open zip entry %s: %w", f.Name, err)
	}
	defer func() {
		err = errors.Join(err, rc.Close())
	}()
	return io.ReadAll(io.LimitReader(rc, limit))
}

func entryName(name string) (string, error) {
	cleaned, err := fspath.CleanEntryName(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsafeEntry, err)
	}
	return cleaned, nil
}

// writeFile creates name below root and copies exactly size bytes from r into it.
// Existing files are never overwritten, duplicate entries fail the extraction.
func writeFile(root *os.Root, name string, r io.Reader, size int64, mode fs.FileMode) (err error) {
	if dir := path.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("unable to create directory %s: %w", dir, err)
		}
	}
	perm := mode.Perm() | 0o600
	if perm == 0o600 {
		perm = filePerm
	}
	file, err := root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("unable to create file %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	written, err := io.CopyN(file, r, size)
	if err != nil {
		return fmt.Errorf("unable to write file %s (%d of %d bytes): %w", name, written, size, err)
	}
	return nil
}

// symlink creates a link at name pointing to target, provided the target
// stays within the extraction root when resolved relative to the link.
func symlink(root *os.Root, name, target string) error {
	if target == "" || path.IsAbs(strings.ReplaceAll(target, `\`, "/")) {
		return fmt.Errorf("%w: symlink %s points to %q", ErrUnsafeEntry, name, target)
	}
	if _, err := fspath.CleanEntryName(path.Join(path.Dir(name), target)); err != nil {
		return fmt.Errorf("%w: symlink %s points to %q outside of the archive", ErrUnsafeEntry, name, target)
	}
	if dir := path.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("unable to create directory %s: %w", dir, err)
		}
	}
	if err := root.Symlink(target, name); err != nil {
		return fmt.Errorf("unable to create symlink %s: %w", name, err)
	}
	return nil
}

func hardlink(root *os.Root, name, target string) error {
	cleaned, err := entryName(target)
	if err != nil || cleaned == "" {
		return fmt.Errorf("%w: hardlink %s points to %q", ErrUnsafeEntry, name, target)
	}
	if dir := path.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("unable to create directory %s: %w", dir, err)
		}
	}
	if err := root.Link(cleaned, name); err != nil {
		return fmt.Errorf("unable to create hardlink %s: %w", name, err)
	}
	return nil
}

// copyDirectory copies the tree at src into root. Symbolic links are followed
// as long as they resolve within src; links leaving src fail the copy.
func copyDirectory(ctx context.Context, src string, root *os.Root) (err error) {
	srcRoot, err := os.OpenRoot(src)
	if err != nil {
		return fmt.Errorf("unable to open source directory: %w", err)
	}
	defer func() {
		err = errors.Join(err, srcRoot.Close())
	}()
	fsys := srcRoot.FS()

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
		if d.IsDir() {
			return root.MkdirAll(name, dirPerm)
		}
		fi, err := fs.Stat(fsys, name)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUnsafeEntry, name, err)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("%w: %s is not a regular file", ErrUnsafeEntry, name)
		}
		return copyFile(ctx, fsys, root, name, fi)
	})
}

func copyFile(ctx context.Context, fsys fs.FS, root *os.Root, name string, fi fs.FileInfo) (err error) {
	in, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, in.Close())
	}()
	return writeFile(root, name, iox.NewContextReader(ctx, in), fi.Size(), fi.Mode())
}
