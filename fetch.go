package modelarchive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/bindings/go/blob"
	"ocm.software/open-component-model/bindings/go/blob/filesystem"

	"ocm.software/open-component-model/bindings/go/modelarchive/internal/iox"
)

// artifact is the result of a fetch: the file or directory extraction reads from.
type artifact struct {
	path string
	dir  bool
	// archivePath is the location of the archive file in the store after commit.
	archivePath string
	// temp marks path as a temporary file in the store that is renamed to archivePath on commit.
	temp         bool
	alreadyLocal bool
	inPlace      bool
	digest       digest.Digest
}

// discard removes what the fetch created. Caller owned files are never touched.
func (a *artifact) discard() error {
	if a == nil || !a.temp {
		return nil
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove temporary archive: %w", err)
	}
	return nil
}

// fetch makes the archive described by src available locally.
// previous is the archive currently registered under the same name, if any.
func (s *Store) fetch(ctx context.Context, src Source, previous *ModelArchive) (*artifact, error) {
	switch src.Kind {
	case StoreLocal:
		return s.fetchStoreLocal(src.Path, previous)
	case LocalPath, FileURI:
		return s.fetchLocal(ctx, src, previous)
	case RemoteURL:
		return s.fetchRemote(ctx, src, previous)
	default:
		return nil, fmt.Errorf("unsupported source kind %s", src.Kind)
	}
}

// fetchStoreLocal uses an archive found in the store. Archive files the store fetched
// itself for previous stay owned by the store.
func (s *Store) fetchStoreLocal(path string, previous *ModelArchive) (*artifact, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if fi.IsDir() {
		return &artifact{path: path, dir: true, alreadyLocal: true, inPlace: true}, nil
	}
	dig, err := fileDigest(path)
	if err != nil {
		return nil, err
	}
	owned := previous != nil && !previous.alreadyLocal && previous.archivePath == path
	return &artifact{path: path, archivePath: path, alreadyLocal: !owned, digest: dig}, nil
}

// fetchLocal handles paths outside of the store: files are copied into the store,
// directories are extracted from where they are.
func (s *Store) fetchLocal(ctx context.Context, src Source, previous *ModelArchive) (*artifact, error) {
	if s.classifier.inStore(src) {
		return s.fetchStoreLocal(src.Path, previous)
	}
	fi, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if fi.IsDir() {
		return &artifact{path: src.Path, dir: true, alreadyLocal: true}, nil
	}

	dest, err := s.archiveDestination(src, previous)
	if err != nil {
		return nil, err
	}
	b, err := filesystem.GetBlobFromOSPath(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	tmp, dig, err := s.writeTemp(contextBlob{ctx: ctx, ReadOnlyBlob: b})
	if err != nil {
		return nil, fmt.Errorf("%w: unable to copy %s into the store: %w", ErrDownloadFailed, src.Path, err)
	}
	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "copied archive into store", slog.String("source", src.Path), slog.String("digest", dig.String()))
	return &artifact{path: tmp, archivePath: dest, temp: true, digest: dig}, nil
}

func (s *Store) fetchRemote(ctx context.Context, src Source, previous *ModelArchive) (*artifact, error) {
	dest, err := s.archiveDestination(src, previous)
	if err != nil {
		return nil, err
	}
	body, err := s.client.Fetch(ctx, src.URL.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	tmp, dig, err := s.writeTemp(streamBlob{iox.NewContextReadCloser(ctx, body)})
	if err != nil {
		return nil, fmt.Errorf("%w: unable to download %s: %w", ErrDownloadFailed, src.URL.Redacted(), err)
	}
	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "downloaded archive", slog.String("url", src.URL.Redacted()), slog.String("digest", dig.String()))
	return &artifact{path: tmp, archivePath: dest, temp: true, digest: dig}, nil
}

// archiveDestination returns the path the archive file of src takes in the store.
// A file at that path is only replaced if the store created it for the same archive name;
// files placed there by anyone else are never overwritten.
func (s *Store) archiveDestination(src Source, previous *ModelArchive) (string, error) {
	dest := filepath.Join(s.root, src.FileName)
	_, err := os.Lstat(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return dest, nil
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	case previous != nil && !previous.alreadyLocal && previous.archivePath == dest:
		return dest, nil
	default:
		return "", fmt.Errorf("%w: %s already exists in the store and is not managed by it", ErrInvalidReference, src.FileName)
	}
}

// writeTemp copies b into a hidden temporary file in the store root and returns its digest.
func (s *Store) writeTemp(b blob.ReadOnlyBlob) (_ string, _ digest.Digest, err error) {
	tmp, err := os.CreateTemp(s.root, ".download-*")
	if err != nil {
		return "", "", err
	}
	defer func() {
		err = errors.Join(err, tmp.Close())
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()

	digester := digest.Canonical.Digester()
	if err := blob.Copy(io.MultiWriter(tmp, digester.Hash()), b); err != nil {
		return "", "", err
	}
	return tmp.Name(), digester.Digest(), nil
}

// fileDigest computes the digest of a file through the blob file system.
func fileDigest(path string) (digest.Digest, error) {
	b, err := filesystem.GetBlobFromOSPath(path)
	if err != nil {
		return "", fmt.Errorf("unable to access %s: %w", path, err)
	}
	raw, ok := b.Digest()
	if !ok {
		return "", fmt.Errorf("unable to digest %s", path)
	}
	return digest.Parse(raw)
}

// contextBlob aborts reads of the wrapped blob once ctx is done.
// Size and digest of the wrapped blob are not exposed.
type contextBlob struct {
	ctx context.Context
	blob.ReadOnlyBlob
}

func (b contextBlob) ReadCloser() (io.ReadCloser, error) {
	rc, err := b.ReadOnlyBlob.ReadCloser()
	if err != nil {
		return nil, err
	}
	return iox.NewContextReadCloser(b.ctx, rc), nil
}

// streamBlob is a blob that can be read exactly once.
type streamBlob struct {
	rc io.ReadCloser
}

func (b streamBlob) ReadCloser() (io.ReadCloser, error) {
	return b.rc, nil
}
