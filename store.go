package modelarchive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"

	"ocm.software/open-component-model/bindings/go/modelarchive/download"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/fspath"
	"ocm.software/open-component-model/bindings/go/modelarchive/metrics"
)

// Store is a model store rooted at a local directory.
// All methods are safe for concurrent use.
type Store struct {
	root       string
	classifier classifier
	client     download.Client
	versioned  bool
	metrics    *metrics.Metrics
	logger     *slog.Logger
	registry   *registry
}

// Open opens the store rooted at root, which must be an existing directory.
// Archives registered by earlier stores on the same root are loaded from the index file.
func Open(root string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if root == "" {
		return nil, fmt.Errorf("%w: store root must not be empty", ErrInvalidReference)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: store root: %w", ErrInvalidReference, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: store root %s is not a directory", ErrInvalidReference, root)
	}
	resolved, err := fspath.ResolveDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}

	workingDirectory := o.workingDirectory
	if workingDirectory == "" {
		if workingDirectory, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("unable to determine working directory: %w", err)
		}
	}
	var allowed []string
	for _, dir := range o.allowedRoots {
		abs, err := fspath.Abs(dir, workingDirectory)
		if err != nil {
			return nil, fmt.Errorf("%w: allowed root %s: %w", ErrInvalidReference, dir, err)
		}
		resolvedDir, err := fspath.ResolveDir(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: allowed root %s: %w", ErrInvalidReference, dir, err)
		}
		allowed = append(allowed, resolvedDir)
	}

	client := o.client
	if client == nil {
		client = download.NewHTTPClient()
	}

	reg, err := openRegistry(resolved, o.metrics)
	if err != nil {
		return nil, err
	}

	return &Store{
		root: resolved,
		classifier: classifier{
			root:             resolved,
			workingDirectory: workingDirectory,
			allowedRoots:     allowed,
		},
		client:    client,
		versioned: o.versioned,
		metrics:   o.metrics,
		logger:    o.logger,
		registry:  reg,
	}, nil
}

// Root is the absolute path of the store root.
func (s *Store) Root() string {
	return s.root
}

// Classify determines the kind of reference without acquiring it.
func (s *Store) Classify(reference string) (Source, error) {
	return s.classifier.classify(reference, true)
}

// Acquire makes the archive behind reference available in the store and returns its handle.
//
// If an archive with the same name was already acquired from the same reference and is still
// extracted, it is returned without fetching again. If it was acquired from a different
// reference, it is replaced once the new archive validated; the previous extraction stays
// in place until then.
//
// On error, everything created by the call is removed and the store is left as it was.
// The returned error is a *StageError matching one of the package sentinels, unless the
// registry could not be persisted.
func (s *Store) Acquire(ctx context.Context, reference string) (_ *ModelArchive, err error) {
	start := time.Now()
	logger := s.log(ctx).With(slog.String("reference", reference))

	src, err := s.classifier.classify(reference, true)
	if err != nil {
		s.metrics.ObserveAcquisition("unknown", metrics.ResultFailure, time.Since(start))
		return nil, newStageError(StageClassify, reference, sentinelOf(err, ErrInvalidReference), err)
	}
	logger = logger.With(slog.String("name", src.Name), slog.String("kind", src.Kind.String()))

	unlock, err := s.registry.lock(ctx, src.Name)
	if err != nil {
		s.metrics.ObserveAcquisition(src.Kind.String(), metrics.ResultFailure, time.Since(start))
		return nil, newStageError(StageFetch, reference, ErrDownloadFailed, err)
	}
	defer unlock()

	result := metrics.ResultFailure
	defer func() {
		s.metrics.ObserveAcquisition(src.Kind.String(), result, time.Since(start))
	}()
	ctx = slogcontext.NewCtx(ctx, logger)

	previous, _ := s.registry.get(src.Name)
	if cached := s.cached(ctx, src, previous); cached != nil {
		logger.Log(ctx, slog.LevelDebug, "archive already acquired")
		result = metrics.ResultCached
		return cached, nil
	}

	archive, err := s.acquire(ctx, src, previous)
	if err != nil {
		logger.Log(ctx, slog.LevelDebug, "acquisition failed", slog.String("error", err.Error()))
		return nil, err
	}
	logger.Log(ctx, slog.LevelDebug, "archive acquired", slog.String("path", archive.extractedPath))
	result = metrics.ResultSuccess
	return archive, nil
}

// cached returns previous if it still serves src.
// Archive files kept in the store are compared by digest, as they may be replaced in place.
func (s *Store) cached(ctx context.Context, src Source, previous *ModelArchive) *ModelArchive {
	if previous == nil || !isDir(previous.extractedPath) {
		return nil
	}
	if previous.reference == src.Reference {
		if src.Kind == StoreLocal && previous.archivePath == src.Path {
			dig, err := fileDigest(src.Path)
			if err != nil || dig != previous.digest {
				s.log(ctx).Log(ctx, slog.LevelDebug, "archive file changed since acquisition", slog.String("path", src.Path))
				return nil
			}
		}
		return previous
	}
	// the reference names the extracted directory of the registered archive itself
	if src.Kind == StoreLocal && previous.extractedPath == src.Path {
		return previous
	}
	return nil
}

func (s *Store) acquire(ctx context.Context, src Source, previous *ModelArchive) (_ *ModelArchive, err error) {
	var art *artifact
	if previous != nil && previous.reference == src.Reference && previous.archivePath != "" && isFile(previous.archivePath) {
		// the extraction was cleaned up or is stale, but the archive file is still in the store
		dig, err := fileDigest(previous.archivePath)
		if err != nil {
			return nil, newStageError(StageFetch, src.Reference, ErrDownloadFailed, err)
		}
		art = &artifact{
			path:         previous.archivePath,
			archivePath:  previous.archivePath,
			alreadyLocal: previous.alreadyLocal,
			digest:       dig,
		}
	} else if art, err = s.fetch(ctx, src, previous); err != nil {
		return nil, newStageError(StageFetch, src.Reference, sentinelOf(err, ErrDownloadFailed), err)
	}
	defer func() {
		if err != nil {
			if discardErr := art.discard(); discardErr != nil {
				err = errors.Join(err, discardErr)
			}
		}
	}()

	st, err := s.extract(ctx, src, art)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil && st.dir != "" {
			if rmErr := removeAll(context.WithoutCancel(ctx), slogcontext.FromCtx(ctx), st.dir); rmErr != nil {
				err = errors.Join(err, rmErr)
			}
		}
	}()

	return s.commit(ctx, src, art, st, previous)
}

// commit promotes the staged archive to its canonical path, moves the archive file into
// place and registers the result. Replaced content of previous is moved aside first and
// only deleted once the new archive is registered; every failure restores it.
func (s *Store) commit(ctx context.Context, src Source, art *artifact, st *staged, previous *ModelArchive) (_ *ModelArchive, err error) {
	rollbackCtx := context.WithoutCancel(ctx)
	logger := slogcontext.FromCtx(ctx)

	var undo []func() error
	var asides []string
	defer func() {
		if err == nil {
			for _, aside := range asides {
				_ = removeAll(rollbackCtx, logger, aside)
			}
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			if undoErr := undo[i](); undoErr != nil {
				logger.Log(rollbackCtx, slog.LevelWarn, "rollback failed", slog.String("error", undoErr.Error()))
				err = errors.Join(err, undoErr)
			}
		}
	}()

	target := st.content
	if st.dir != "" {
		if target, err = s.targetPath(src.Name, st.manifest); err != nil {
			return nil, newStageError(StageValidate, src.Reference, ErrInvalidModel, err)
		}
		if target == art.archivePath {
			// the archive file name carries no known extension to strip
			target += extractedSuffix
		}
		owned := previous != nil && !previous.inPlace && previous.extractedPath == target
		if exists(target) && !owned {
			return nil, newStageError(StagePromote, src.Reference, ErrInvalidReference,
				fmt.Errorf("%s already exists in the store and is not managed by it", filepath.Base(target)))
		}
		aside, restore, err := s.moveAside(target)
		if err != nil {
			return nil, newStageError(StagePromote, src.Reference, ErrExtractionFailed, err)
		}
		if aside != "" {
			asides = append(asides, aside)
			undo = append(undo, restore)
		}
		if err := os.Rename(st.dir, target); err != nil {
			return nil, newStageError(StagePromote, src.Reference, ErrExtractionFailed, err)
		}
		undo = append(undo, func() error { return os.RemoveAll(target) })
	}

	if art.temp {
		aside, restore, err := s.moveAside(art.archivePath)
		if err != nil {
			return nil, newStageError(StagePromote, src.Reference, ErrExtractionFailed, err)
		}
		if aside != "" {
			asides = append(asides, aside)
			undo = append(undo, restore)
		}
		if err := os.Rename(art.path, art.archivePath); err != nil {
			return nil, newStageError(StagePromote, src.Reference, ErrExtractionFailed, err)
		}
		undo = append(undo, func() error { return os.Remove(art.archivePath) })
	}

	archive := &ModelArchive{
		name:          src.Name,
		kind:          src.Kind,
		reference:     src.Reference,
		manifest:      st.manifest,
		extractedPath: target,
		archivePath:   art.archivePath,
		alreadyLocal:  art.alreadyLocal,
		inPlace:       art.inPlace,
		digest:        art.digest,
		acquiredAt:    time.Now().UTC(),
	}
	if _, err := s.registry.put(archive); err != nil {
		return nil, newStageError(StageRegister, src.Reference, nil, err)
	}

	if previous != nil {
		s.dropReplaced(rollbackCtx, previous, archive)
	}
	return archive, nil
}

// dropReplaced deletes what previous owned and current no longer uses.
// Failures are logged only, the new archive is already registered.
func (s *Store) dropReplaced(ctx context.Context, previous, current *ModelArchive) {
	logger := slogcontext.FromCtx(ctx)
	if !previous.inPlace && previous.extractedPath != current.extractedPath {
		_ = removeAll(ctx, logger, previous.extractedPath)
	}
	if previous.archivePath != "" && !previous.alreadyLocal && previous.archivePath != current.archivePath {
		if err := os.Remove(previous.archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Log(ctx, slog.LevelWarn, "unable to remove replaced archive", slog.String("path", previous.archivePath), slog.String("error", err.Error()))
		}
	}
}

// moveAside renames path into a hidden directory in the store root. It returns the hidden
// directory and a function moving path back. Nothing happens if path does not exist.
func (s *Store) moveAside(path string) (aside string, restore func() error, err error) {
	if !exists(path) {
		return "", nil, nil
	}
	aside, err = os.MkdirTemp(s.root, ".replaced-*")
	if err != nil {
		return "", nil, err
	}
	moved := filepath.Join(aside, filepath.Base(path))
	if err := os.Rename(path, moved); err != nil {
		return "", nil, errors.Join(err, os.Remove(aside))
	}
	return aside, func() error { return os.Rename(moved, path) }, nil
}

// AcquireAll acquires references concurrently, bounded by the number of CPUs.
// The first error cancels the remaining acquisitions; archives acquired until then stay registered.
// On success, the result holds one archive per reference in the order of references.
func (s *Store) AcquireAll(ctx context.Context, references ...string) ([]*ModelArchive, error) {
	archives := make([]*ModelArchive, len(references))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())
	for i, reference := range references {
		group.Go(func() error {
			archive, err := s.Acquire(ctx, reference)
			if err != nil {
				return err
			}
			archives[i] = archive
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return archives, nil
}

// Remove unregisters the archive reference resolves to and deletes its extracted directory.
// The archive file is deleted as well, unless it was already local before it was acquired.
// The reference is resolved like in Acquire, but does not have to exist anymore.
func (s *Store) Remove(ctx context.Context, reference string) error {
	src, err := s.classifier.classify(reference, false)
	if err != nil {
		return newStageError(StageClassify, reference, sentinelOf(err, ErrInvalidReference), err)
	}
	unlock, err := s.registry.lock(ctx, src.Name)
	if err != nil {
		return newStageError(StageRemove, reference, nil, err)
	}
	defer unlock()

	archive, ok, err := s.registry.remove(src.Name)
	if err != nil {
		return newStageError(StageRemove, reference, nil, err)
	}
	if !ok {
		return newStageError(StageRemove, reference, ErrNotFound, fmt.Errorf("no archive registered as %q", src.Name))
	}

	logger := s.log(ctx)
	var errs []error
	if !archive.inPlace {
		errs = append(errs, removeAll(ctx, logger, archive.extractedPath))
	}
	if archive.archivePath != "" && !archive.alreadyLocal {
		if err := os.Remove(archive.archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("unable to remove archive file: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return newStageError(StageRemove, reference, nil, err)
	}
	logger.Log(ctx, slog.LevelDebug, "archive removed", slog.String("name", archive.name))
	return nil
}

// Cleanup deletes the extracted directory of archive to reclaim disk space.
// The archive stays registered and its archive file is kept, so a later Acquire
// of the same reference extracts it again without fetching. Archives used in place
// are never deleted.
func (s *Store) Cleanup(ctx context.Context, archive *ModelArchive) error {
	if archive == nil {
		return newStageError(StageCleanup, "", ErrNotFound, nil)
	}
	unlock, err := s.registry.lock(ctx, archive.name)
	if err != nil {
		return newStageError(StageCleanup, archive.reference, nil, err)
	}
	defer unlock()

	current, ok := s.registry.get(archive.name)
	if !ok || current.extractedPath != archive.extractedPath {
		return newStageError(StageCleanup, archive.reference, ErrNotFound, fmt.Errorf("no archive registered at %s", archive.extractedPath))
	}
	if current.inPlace {
		return nil
	}
	if err := removeAll(ctx, s.log(ctx), current.extractedPath); err != nil {
		return newStageError(StageCleanup, archive.reference, nil, err)
	}
	return nil
}

// Get returns the archive registered under name.
func (s *Store) Get(name string) (*ModelArchive, bool) {
	return s.registry.get(name)
}

// List returns all registered archives ordered by name.
func (s *Store) List() []*ModelArchive {
	return s.registry.list()
}

func (s *Store) log(ctx context.Context) *slog.Logger {
	logger := s.logger
	if logger == nil {
		logger = slogcontext.FromCtx(ctx)
	}
	return logger.With(slog.String("realm", "modelarchive"))
}

// sentinelOf returns the package sentinel err matches, or fallback.
func sentinelOf(err, fallback error) error {
	for _, sentinel := range []error{ErrInvalidReference, ErrDownloadFailed, ErrExtractionFailed, ErrInvalidModel, ErrNotFound} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return fallback
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
