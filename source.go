package modelarchive

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ocm.software/open-component-model/bindings/go/modelarchive/archive"
	"ocm.software/open-component-model/bindings/go/modelarchive/download"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/fspath"
)

// SourceKind is the kind of location a reference points to.
type SourceKind int

const (
	// StoreLocal is a file or directory that already exists in the store.
	StoreLocal SourceKind = iota + 1
	// LocalPath is a path on the local file system outside of the store.
	LocalPath
	// FileURI is a file:// URI.
	FileURI
	// RemoteURL is an http:// or https:// URL.
	RemoteURL
)

func (k SourceKind) String() string {
	switch k {
	case StoreLocal:
		return "StoreLocal"
	case LocalPath:
		return "LocalPath"
	case FileURI:
		return "FileURI"
	case RemoteURL:
		return "RemoteURL"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

const (
	fileScheme  = "file://"
	httpScheme  = "http://"
	httpsScheme = "https://"
)

// Source is a classified reference.
type Source struct {
	// Reference is the reference as given by the caller.
	Reference string
	Kind      SourceKind
	// Path is the absolute, symlink resolved location for all kinds but RemoteURL.
	// It may not exist when the source was classified for removal.
	Path string
	// URL is set for RemoteURL sources.
	URL *url.URL
	// FileName is the file name the archive has in the store.
	FileName string
	// Name is the canonical archive name: FileName without its archive extension.
	Name string
}

// classifier holds the state classification depends on.
type classifier struct {
	root             string
	workingDirectory string
	allowedRoots     []string
}

// classify determines the kind of reference. With mustExist unset, local
// sources that no longer exist are classified anyway, which is what removal needs.
// Traversing references are rejected before the file system is consulted.
func (c *classifier) classify(reference string, mustExist bool) (Source, error) {
	src := Source{Reference: reference}
	if strings.TrimSpace(reference) == "" {
		return src, fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}

	lower := strings.ToLower(reference)
	isURL := strings.HasPrefix(lower, fileScheme) || strings.HasPrefix(lower, httpScheme) || strings.HasPrefix(lower, httpsScheme)
	if !isURL && fspath.HasTraversal(reference) {
		return src, fmt.Errorf("%w: %q contains a path traversal", ErrInvalidReference, reference)
	}

	if !isURL {
		if storePath, ok, err := c.storeLocal(reference, mustExist); err != nil {
			return src, err
		} else if ok {
			src.Kind, src.Path = StoreLocal, storePath
			return src, src.name(filepath.Base(storePath))
		}
	}

	switch {
	case strings.HasPrefix(lower, fileScheme):
		src.Kind = FileURI
		return src, c.fileURI(&src, mustExist)
	case strings.HasPrefix(lower, httpScheme), strings.HasPrefix(lower, httpsScheme):
		src.Kind = RemoteURL
		return src, c.remoteURL(&src)
	default:
		src.Kind = LocalPath
		return src, c.localPath(&src, reference, mustExist, ErrInvalidReference)
	}
}

// storeLocal resolves reference against the store root and reports whether it exists there.
// Without mustExist, relative references that exist neither in the store nor in the
// working directory are taken as store local, so archives whose file is gone can be removed.
func (c *classifier) storeLocal(reference string, mustExist bool) (string, bool, error) {
	candidate := filepath.Join(c.root, filepath.FromSlash(reference))
	if _, err := os.Lstat(candidate); err != nil {
		if mustExist || filepath.IsAbs(reference) {
			return "", false, nil
		}
		if _, err := os.Lstat(filepath.Join(c.workingDirectory, filepath.FromSlash(reference))); err == nil {
			return "", false, nil
		}
		return candidate, true, nil
	}
	resolved, err := fspath.EnsurePathInDirectory(candidate, c.root)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if resolved == c.root {
		return "", false, fmt.Errorf("%w: %q is the store root", ErrInvalidReference, reference)
	}
	return resolved, true, nil
}

func (c *classifier) fileURI(src *Source, mustExist bool) error {
	u, err := url.Parse(src.Reference)
	if err != nil {
		return fmt.Errorf("%w: malformed file uri: %w", ErrDownloadFailed, err)
	}
	// file://models/noop.mar parses with "models" as host, which is not a local file uri
	if u.Host != "" && u.Host != "localhost" {
		return fmt.Errorf("%w: file uri %q has non local host %q", ErrDownloadFailed, src.Reference, u.Host)
	}
	if u.Path == "" {
		return fmt.Errorf("%w: file uri %q has no path", ErrDownloadFailed, src.Reference)
	}
	if fspath.HasTraversal(u.Path) {
		return fmt.Errorf("%w: %q contains a path traversal", ErrInvalidReference, src.Reference)
	}
	return c.localPath(src, filepath.FromSlash(u.Path), mustExist, ErrDownloadFailed)
}

func (c *classifier) remoteURL(src *Source) error {
	u, err := download.ParseURL(src.Reference)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	src.URL = u
	fileName := path.Base(u.Path)
	if fileName == "/" || fileName == "." {
		return fmt.Errorf("%w: url %q does not name an archive file", ErrInvalidReference, src.Reference)
	}
	return src.name(fileName)
}

// localPath checks that p is located in the store or an allowed root.
// missing is the sentinel reported when p does not exist.
func (c *classifier) localPath(src *Source, p string, mustExist bool, missing error) error {
	abs, err := fspath.Abs(p, c.workingDirectory)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if mustExist {
		if _, err := os.Stat(abs); err != nil {
			return fmt.Errorf("%w: %w", missing, err)
		}
	}
	resolved, err := fspath.EnsurePathInAnyDirectory(abs, c.workingDirectory, append([]string{c.root}, c.allowedRoots...)...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if resolved == c.root {
		return fmt.Errorf("%w: %q is the store root", ErrInvalidReference, src.Reference)
	}
	src.Path = resolved
	return src.name(filepath.Base(resolved))
}

// name derives the canonical name from the archive file name.
func (src *Source) name(fileName string) error {
	if _, err := fspath.SanitizeName(fileName); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	name, err := fspath.SanitizeName(archive.TrimExtension(fileName))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	src.FileName, src.Name = fileName, name
	return nil
}

// inStore reports whether the source is located inside the store root.
func (c *classifier) inStore(src Source) bool {
	return src.Path != "" && fspath.IsWithin(src.Path, c.root)
}
