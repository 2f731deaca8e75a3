package storage

import (
	"fmt"
	"sync"
)

// FileStore is one filesystem volume touched by at least one target path
type FileStore struct {
	Volume          string // volume identity, the deduplication key
	MountPoint      string
	InitialUsable   int64 // usable bytes when first registered
	PotentialChange int64 // accumulated expected size change, in bytes
}

// VolumeReport describes how the usable space of a volume evolved
type VolumeReport struct {
	Volume     string `json:"volume"`
	MountPoint string `json:"mount_point"`
	Initial    int64  `json:"initial"`
	Current    int64  `json:"current"`
	Delta      int64  `json:"delta"`    // Initial - Current: bytes consumed
	Expected   int64  `json:"expected"` // accumulated potential change
}

// volumeInfo is what a platform lookup learns about a path
type volumeInfo struct {
	id         string
	mountPoint string
	usable     int64
}

// volumeLookup resolves the volume of an existing path
type volumeLookup func(path string) (volumeInfo, error)

// VolumeRegistry tracks the usable space of every volume targets live on.
// It is safe for concurrent use.
type VolumeRegistry struct {
	mu     sync.Mutex
	lookup volumeLookup
	stores map[string]*FileStore
	byPath map[string]*FileStore
	order  []*FileStore
}

// NewVolumeRegistry creates a registry using the platform volume lookup
func NewVolumeRegistry() *VolumeRegistry {
	return newVolumeRegistry(lookupVolume)
}

func newVolumeRegistry(lookup volumeLookup) *VolumeRegistry {
	return &VolumeRegistry{
		lookup: lookup,
		stores: make(map[string]*FileStore),
		byPath: make(map[string]*FileStore),
	}
}

// Register resolves the volume of path, which need not exist yet. The first
// path seen on a volume records its usable space as the baseline; later
// registrations on the same volume return the same FileStore.
func (r *VolumeRegistry) Register(path string) (*FileStore, error) {
	normalized, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.byPath[normalized]; ok {
		return store, nil
	}

	existing := ClosestExistingAncestor(normalized)
	if existing == "" {
		return nil, fmt.Errorf("no existing ancestor for %s", normalized)
	}

	info, err := r.lookup(existing)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve volume of %s: %w", existing, err)
	}

	store, ok := r.stores[info.id]
	if !ok {
		store = &FileStore{
			Volume:        info.id,
			MountPoint:    info.mountPoint,
			InitialUsable: info.usable,
		}
		r.stores[info.id] = store
		r.order = append(r.order, store)
	}
	r.byPath[normalized] = store
	return store, nil
}

// AddPotentialChange registers path if needed and accumulates delta on its volume
func (r *VolumeRegistry) AddPotentialChange(path string, delta int64) error {
	store, err := r.Register(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	store.PotentialChange += delta
	r.mu.Unlock()
	return nil
}

// Stores returns the registered volumes in registration order
func (r *VolumeRegistry) Stores() []FileStore {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]FileStore, 0, len(r.order))
	for _, store := range r.order {
		out = append(out, *store)
	}
	return out
}

// Report looks up every registered volume again and reports its evolution
func (r *VolumeRegistry) Report() ([]VolumeReport, error) {
	stores := r.Stores()
	reports := make([]VolumeReport, 0, len(stores))
	var firstErr error

	for _, store := range stores {
		report := VolumeReport{
			Volume:     store.Volume,
			MountPoint: store.MountPoint,
			Initial:    store.InitialUsable,
			Current:    store.InitialUsable,
			Expected:   store.PotentialChange,
		}
		info, err := r.lookup(store.MountPoint)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to look up %s: %w", store.MountPoint, err)
			}
		} else {
			report.Current = info.usable
		}
		report.Delta = report.Initial - report.Current
		reports = append(reports, report)
	}

	return reports, firstErr
}

// Reset forgets every registered volume
func (r *VolumeRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]*FileStore)
	r.byPath = make(map[string]*FileStore)
	r.order = nil
}
