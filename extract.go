package modelarchive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/bindings/go/modelarchive/archive"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/fspath"
	manifestv1 "ocm.software/open-component-model/bindings/go/modelarchive/manifest/v1"
)

// staged is an extracted and validated archive that is not yet visible under its canonical path.
type staged struct {
	// dir is the staging directory; empty for archives used in place.
	dir string
	// content is the directory holding the archive content.
	content  string
	manifest *manifestv1.Manifest
}

// extract unpacks art into a fresh staging directory in the store and validates its manifest.
// On error, the staging directory is removed again.
func (s *Store) extract(ctx context.Context, src Source, art *artifact) (_ *staged, err error) {
	if art.inPlace {
		m, err := loadManifest(art.path)
		if err != nil {
			return nil, newStageError(StageValidate, src.Reference, ErrInvalidModel, err)
		}
		return &staged{content: art.path, manifest: m}, nil
	}

	dir, err := os.MkdirTemp(s.root, ".staging-"+src.Name+"-*")
	if err != nil {
		return nil, newStageError(StageExtract, src.Reference, ErrExtractionFailed, err)
	}
	defer func() {
		if err != nil {
			if rmErr := removeAll(context.WithoutCancel(ctx), slogcontext.FromCtx(ctx), dir); rmErr != nil {
				err = errors.Join(err, rmErr)
			}
		}
	}()

	format := archive.FormatDirectory
	if !art.dir {
		if format, err = detectFormat(art.path, src.FileName); err != nil {
			return nil, newStageError(StageExtract, src.Reference, ErrExtractionFailed, err)
		}
	}
	if err := archive.UnpackFormat(ctx, art.path, dir, format); err != nil {
		return nil, newStageError(StageExtract, src.Reference, ErrExtractionFailed, err)
	}
	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "unpacked archive", slog.String("format", format.String()), slog.String("staging", dir))

	m, err := loadManifest(dir)
	if err != nil {
		return nil, newStageError(StageValidate, src.Reference, ErrInvalidModel, err)
	}
	return &staged{dir: dir, content: dir, manifest: m}, nil
}

// detectFormat sniffs the content of path. Temporary files carry no extension,
// so the original file name is consulted if the content is not conclusive.
func detectFormat(path, fileName string) (archive.Format, error) {
	format, err := archive.DetectFormat(path)
	if errors.Is(err, archive.ErrUnsupportedFormat) {
		if byName := archive.FormatFromExtension(fileName); byName != archive.FormatUnknown {
			return byName, nil
		}
	}
	return format, err
}

func loadManifest(dir string) (_ *manifestv1.Manifest, err error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, root.Close())
	}()
	return manifestv1.Load(root.FS())
}

// extractedSuffix is appended to the extraction directory of archives whose file name
// equals their canonical name, so file and directory do not share a path.
const extractedSuffix = ".d"

// targetPath is the canonical location of an extracted archive.
func (s *Store) targetPath(name string, m *manifestv1.Manifest) (string, error) {
	if !s.versioned {
		return filepath.Join(s.root, name), nil
	}
	versioned, err := fspath.SanitizeName(name + "-" + m.Version())
	if err != nil {
		return "", fmt.Errorf("%w: model version %q cannot be used in a directory name", ErrInvalidModel, m.Version())
	}
	return filepath.Join(s.root, versioned), nil
}

// removeAll removes path and logs failures. It is used on rollback paths, so ctx
// is expected to be detached from the cancellation of the caller.
func removeAll(ctx context.Context, logger *slog.Logger, path string) error {
	if err := os.RemoveAll(path); err != nil {
		logger.Log(ctx, slog.LevelWarn, "rollback failed", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("unable to remove %s: %w", path, err)
	}
	return nil
}
