package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zip"
	"github.com/nlepage/go-tarfs"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// OpenFS gives read access to the content of the archive at path without extracting it.
// The returned closer must be called once the file system is no longer used.
// TAR based archives are indexed completely on open.
func OpenFS(path string) (fs.FS, io.Closer, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, nil, err
	}

	switch format {
	case FormatDirectory:
		root, err := os.OpenRoot(path)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open directory: %w", err)
		}
		return root.FS(), root, nil
	case FormatZIP:
		reader, err := zip.OpenReader(path)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open zip file: %w", err)
		}
		return reader, reader, nil
	case FormatTAR, FormatTGZ, FormatTZST:
		fsys, err := openTARFS(path, format)
		if err != nil {
			return nil, nil, err
		}
		return fsys, closerFunc(func() error { return nil }), nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func openTARFS(path string, format Format) (_ fs.FS, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open tar file: %w", err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	stream, closeStream, err := decompress(file, format)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, closeStream())
	}()

	fsys, err := tarfs.New(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to create tarfs: %w", err)
	}
	return fsys, nil
}
