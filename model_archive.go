package modelarchive

import (
	"time"

	"github.com/opencontainers/go-digest"

	indexv1 "ocm.software/open-component-model/bindings/go/modelarchive/index/v1"
	manifestv1 "ocm.software/open-component-model/bindings/go/modelarchive/manifest/v1"
)

// ModelArchive is a handle to an archive registered in a Store.
// Handles are immutable; the same handle may be shared by concurrent callers.
type ModelArchive struct {
	name          string
	kind          SourceKind
	reference     string
	manifest      *manifestv1.Manifest
	extractedPath string
	archivePath   string
	alreadyLocal  bool
	inPlace       bool
	digest        digest.Digest
	acquiredAt    time.Time
}

// Name is the canonical archive name the archive is registered under.
func (a *ModelArchive) Name() string { return a.name }

// ModelName is the model name declared in the manifest.
func (a *ModelArchive) ModelName() string { return a.manifest.Name() }

// ModelVersion is the model version declared in the manifest.
func (a *ModelArchive) ModelVersion() string { return a.manifest.Version() }

// Manifest returns a copy of the validated manifest.
func (a *ModelArchive) Manifest() *manifestv1.Manifest { return a.manifest.DeepCopy() }

// Path is the absolute path of the extracted archive.
func (a *ModelArchive) Path() string { return a.extractedPath }

// ArchivePath is the absolute path of the archive file in the store.
// It is empty for archives acquired from directories.
func (a *ModelArchive) ArchivePath() string { return a.archivePath }

// AlreadyLocal reports whether the archive existed locally before it was acquired.
// The store never deletes such archives.
func (a *ModelArchive) AlreadyLocal() bool { return a.alreadyLocal }

// InPlace reports whether the archive is a directory in the store that is used as is.
func (a *ModelArchive) InPlace() bool { return a.inPlace }

func (a *ModelArchive) Kind() SourceKind { return a.kind }

// Reference is the reference the archive was acquired from.
func (a *ModelArchive) Reference() string { return a.reference }

// Digest is the digest of the archive file, if the archive was acquired from a file.
func (a *ModelArchive) Digest() digest.Digest { return a.digest }

func (a *ModelArchive) AcquiredAt() time.Time { return a.acquiredAt }

func (a *ModelArchive) toEntry() indexv1.Entry {
	return indexv1.Entry{
		Name:          a.name,
		Reference:     a.reference,
		Kind:          a.kind.String(),
		ExtractedPath: a.extractedPath,
		ArchivePath:   a.archivePath,
		AlreadyLocal:  a.alreadyLocal,
		InPlace:       a.inPlace,
		Digest:        a.digest.String(),
		Manifest:      a.manifest,
		AcquiredAt:    a.acquiredAt,
	}
}

func fromEntry(e indexv1.Entry) *ModelArchive {
	return &ModelArchive{
		name:          e.Name,
		kind:          parseSourceKind(e.Kind),
		reference:     e.Reference,
		manifest:      e.Manifest,
		extractedPath: e.ExtractedPath,
		archivePath:   e.ArchivePath,
		alreadyLocal:  e.AlreadyLocal,
		inPlace:       e.InPlace,
		digest:        digest.Digest(e.Digest),
		acquiredAt:    e.AcquiredAt,
	}
}

func parseSourceKind(s string) SourceKind {
	for _, kind := range []SourceKind{StoreLocal, LocalPath, FileURI, RemoteURL} {
		if kind.String() == s {
			return kind
		}
	}
	return 0
}
