package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format is the on-disk layout of a model archive.
// The zero value is FormatUnknown.
type Format int

var ErrUnsupportedFormat = errors.New("unsupported archive format")

const (
	// FormatUnknown represents a file that is not recognised as an archive.
	FormatUnknown Format = iota
	// FormatDirectory represents an archive that is already laid out as a directory.
	FormatDirectory
	// FormatZIP represents a ZIP archive. Model archives (.mar) are ZIP files.
	FormatZIP
	// FormatTAR represents an uncompressed Tape (TAR) archive.
	FormatTAR
	// FormatTGZ represents a TAR archive compressed with GZip.
	FormatTGZ
	// FormatTZST represents a TAR archive compressed with Zstandard.
	FormatTZST
)

var formats = [...]string{"unknown", "directory", "zip", "tar", "tgz", "tzst"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formats) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formats[f]
}

// extensions maps known archive file suffixes to their format.
// Longer suffixes come first so that ".tar.gz" wins over ".gz".
var extensions = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTGZ},
	{".tar.zst", FormatTZST},
	{".tgz", FormatTGZ},
	{".tzst", FormatTZST},
	{".tar", FormatTAR},
	{".mar", FormatZIP},
	{".zip", FormatZIP},
	{".model", FormatZIP},
}

// FormatFromExtension determines the format from the file name alone.
func FormatFromExtension(path string) Format {
	lower := strings.ToLower(filepath.Base(path))
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext.suffix) {
			return ext.format
		}
	}
	return FormatUnknown
}

// TrimExtension strips a known archive extension from name.
// Names without a known extension are returned unchanged.
func TrimExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext.suffix) && len(name) > len(ext.suffix) {
			return name[:len(name)-len(ext.suffix)]
		}
	}
	return name
}

// DetectFormat determines the format of the archive at path.
// Directories are FormatDirectory. For files the content is sniffed first;
// if the content is not conclusive the extension decides.
func DetectFormat(path string) (Format, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FormatUnknown, err
	}
	if fi.IsDir() {
		return FormatDirectory, nil
	}
	if !fi.Mode().IsRegular() {
		return FormatUnknown, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedFormat, path)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("unable to detect media type of %s: %w", path, err)
	}
	if format := formatFromMIME(mime); format != FormatUnknown {
		return format, nil
	}
	if format := FormatFromExtension(path); format != FormatUnknown {
		return format, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s (detected %s)", ErrUnsupportedFormat, path, mime.String())
}

// formatFromMIME walks up the media type hierarchy so that ZIP based
// formats such as jar are treated like plain ZIP files.
func formatFromMIME(mime *mimetype.MIME) Format {
	for m := mime; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return FormatZIP
		case m.Is("application/x-tar"):
			return FormatTAR
		case m.Is("application/gzip"):
			return FormatTGZ
		case m.Is("application/zstd"):
			return FormatTZST
		}
	}
	return FormatUnknown
}

// IsArchiveFile reports whether path is a regular file in one of the supported archive formats.
func IsArchiveFile(path string) bool {
	format, err := DetectFormat(path)
	return err == nil && format != FormatDirectory && format != FormatUnknown
}
