package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	manifestv1 "ocm.software/open-component-model/bindings/go/modelarchive/manifest/v1"
)

const (
	SchemaVersion = 1
	// IndexFileName is the name of the index file in the root of a model store.
	IndexFileName = ".modelarchive-index.json"
)

var ErrSchemaVersionMismatch = fmt.Errorf("schema version mismatch, only %v is supported", SchemaVersion)

type Versioned struct {
	SchemaVersion int `json:"schemaVersion"`
}

// Index records the archives registered in a model store, keyed by their canonical name.
// It is safe for concurrent use. Entries returned from the index are copies.
type Index interface {
	// Put records e under e.Name and returns the entry it replaced, if any.
	Put(e Entry) (previous Entry, replaced bool)
	// Get returns the entry registered under name.
	Get(name string) (Entry, bool)
	// Remove deletes the entry registered under name and returns it.
	Remove(name string) (Entry, bool)
	// Entries returns a snapshot of all entries sorted by name.
	Entries() []Entry
	Len() int
}

// Entry is the persisted form of a registered model archive.
type Entry struct {
	// Name is the canonical archive name.
	Name string `json:"name"`
	// Reference is the reference the archive was acquired from, verbatim.
	Reference string `json:"reference"`
	// Kind is the classified source kind of Reference.
	Kind string `json:"kind"`
	// ExtractedPath is the absolute path of the extracted and validated archive.
	ExtractedPath string `json:"extractedPath"`
	// ArchivePath is the absolute path of the archive file inside the store, if the
	// archive was acquired from a file.
	ArchivePath string `json:"archivePath,omitempty"`
	// AlreadyLocal is set when the archive existed in the store before it was acquired.
	// Such archives are owned by the caller and never deleted by the store.
	AlreadyLocal bool `json:"alreadyLocal,omitempty"`
	// InPlace is set when ExtractedPath is the archive source itself.
	InPlace bool `json:"inPlace,omitempty"`
	// Digest is the digest of the archive file.
	Digest     string               `json:"digest,omitempty"`
	Manifest   *manifestv1.Manifest `json:"manifest,omitempty"`
	AcquiredAt time.Time            `json:"acquiredAt"`
}

func (e Entry) deepCopy() Entry {
	e.Manifest = e.Manifest.DeepCopy()
	return e
}

type index struct {
	mu        sync.RWMutex
	Versioned `json:",inline"`
	Archives  map[string]Entry `json:"archives"`
}

// DecodeIndex reads an Index from the provided reader.
func DecodeIndex(data io.Reader) (Index, error) {
	var d index

	decoder := json.NewDecoder(data)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&d); err != nil {
		return nil, err
	}

	if d.SchemaVersion != SchemaVersion {
		return nil, ErrSchemaVersionMismatch
	}
	if d.Archives == nil {
		d.Archives = map[string]Entry{}
	}
	for name, e := range d.Archives {
		if e.Name != name {
			return nil, fmt.Errorf("index entry %q has mismatching name %q", name, e.Name)
		}
	}

	return &d, nil
}

// Encode serializes the Index to a byte slice.
func Encode(d Index) ([]byte, error) {
	idx, ok := d.(*index)
	if !ok {
		return nil, fmt.Errorf("unsupported index implementation %T", d)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return json.MarshalIndent(idx, "", "  ")
}

// NewIndex creates a new Index instance defaulted to SchemaVersion.
func NewIndex() Index {
	return &index{
		Versioned: Versioned{
			SchemaVersion: SchemaVersion,
		},
		Archives: map[string]Entry{},
	}
}

// ReadFile loads the index stored at path. A missing file yields an empty index.
func ReadFile(path string) (_ Index, err error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open index: %w", err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	idx, err := DecodeIndex(file)
	if err != nil {
		return nil, fmt.Errorf("unable to decode index %s: %w", path, err)
	}
	return idx, nil
}

// WriteFile persists idx at path by writing a temporary sibling and renaming it over path,
// so readers never observe a partially written index. An empty index removes the file.
func WriteFile(path string, idx Index) (err error) {
	if idx.Len() == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to remove empty index: %w", err)
		}
		return nil
	}

	data, err := Encode(idx)
	if err != nil {
		return fmt.Errorf("unable to encode index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), strings.TrimSuffix(filepath.Base(path), ".json")+"-*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create temporary index: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Join(fmt.Errorf("unable to write temporary index: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to close temporary index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to replace index: %w", err)
	}
	return nil
}

func (i *index) Put(e Entry) (Entry, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	previous, replaced := i.Archives[e.Name]
	i.Archives[e.Name] = e.deepCopy()
	return previous, replaced
}

func (i *index) Get(name string) (Entry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.Archives[name]
	return e.deepCopy(), ok
}

func (i *index) Remove(name string) (Entry, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	e, ok := i.Archives[name]
	delete(i.Archives, name)
	return e, ok
}

func (i *index) Entries() []Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := slices.Sorted(maps.Keys(i.Archives))
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, i.Archives[name].deepCopy())
	}
	return entries
}

func (i *index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.Archives)
}
