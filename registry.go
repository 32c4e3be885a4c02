package modelarchive

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	indexv1 "ocm.software/open-component-model/bindings/go/modelarchive/index/v1"
	ocmsync "ocm.software/open-component-model/bindings/go/modelarchive/internal/sync"
	"ocm.software/open-component-model/bindings/go/modelarchive/metrics"
)

// registry records the archives of a store.
// Mutations of one name happen while holding the lock of that name; the index file
// is rewritten after each mutation.
type registry struct {
	path     string
	archives ocmsync.Map[string, *ModelArchive]
	locks    ocmsync.KeyedMutex[string]
	metrics  *metrics.Metrics

	// persistMu orders index file writes so the last write reflects the latest state.
	persistMu sync.Mutex
}

func openRegistry(root string, m *metrics.Metrics) (*registry, error) {
	r := &registry{
		path:    filepath.Join(root, indexv1.IndexFileName),
		metrics: m,
	}
	idx, err := indexv1.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	for _, e := range idx.Entries() {
		r.archives.Store(e.Name, fromEntry(e))
	}
	m.SetRegistered(r.archives.Len())
	return r, nil
}

// lock enters the exclusive section of name.
func (r *registry) lock(ctx context.Context, name string) (func(), error) {
	return r.locks.Lock(ctx, name)
}

func (r *registry) get(name string) (*ModelArchive, bool) {
	return r.archives.Load(name)
}

// put registers a. If the index cannot be written, the previous state is restored.
// Callers must hold the lock of a.name.
func (r *registry) put(a *ModelArchive) (previous *ModelArchive, err error) {
	previous, replaced := r.archives.Load(a.name)
	r.archives.Store(a.name, a)
	if err := r.persist(); err != nil {
		if replaced {
			r.archives.Store(a.name, previous)
		} else {
			r.archives.Delete(a.name)
		}
		return nil, err
	}
	return previous, nil
}

// remove unregisters name. If the index cannot be written, the entry is restored.
// Callers must hold the lock of name.
func (r *registry) remove(name string) (*ModelArchive, bool, error) {
	previous, ok := r.archives.LoadAndDelete(name)
	if !ok {
		return nil, false, nil
	}
	if err := r.persist(); err != nil {
		r.archives.Store(name, previous)
		return nil, false, err
	}
	return previous, true, nil
}

// list returns all archives ordered by name.
func (r *registry) list() []*ModelArchive {
	var archives []*ModelArchive
	r.archives.Range(func(_ string, a *ModelArchive) bool {
		archives = append(archives, a)
		return true
	})
	slices.SortFunc(archives, func(a, b *ModelArchive) int {
		return cmp.Compare(a.name, b.name)
	})
	return archives
}

func (r *registry) persist() error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	idx := indexv1.NewIndex()
	r.archives.Range(func(_ string, a *ModelArchive) bool {
		idx.Put(a.toEntry())
		return true
	})
	if err := indexv1.WriteFile(r.path, idx); err != nil {
		return fmt.Errorf("unable to persist registry: %w", err)
	}
	r.metrics.SetRegistered(idx.Len())
	return nil
}
