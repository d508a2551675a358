package store

import (
	"path/filepath"
	"sync"

	domain "github.com/itechstro/lime/internal/domain"
)

const bundleFile = "bundles.json"

// BundleFileStore caches pre-key bundles registered with, or fetched from,
// a relay, keyed by device id.
type BundleFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewBundleFileStore returns a BundleFileStore rooted at dir.
func NewBundleFileStore(dir string) *BundleFileStore {
	return &BundleFileStore{dir: dir}
}

// SavePreKeyBundle writes b to the cache, keyed by its device id.
func (s *BundleFileStore) SavePreKeyBundle(b domain.PreKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, bundleFile)
	m := map[domain.Username]domain.PreKeyBundle{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[b.DeviceID] = b
	return writeJSON(path, m, 0o600)
}

// LoadPreKeyBundle returns the cached bundle for deviceID and whether it was present.
func (s *BundleFileStore) LoadPreKeyBundle(deviceID domain.Username) (domain.PreKeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, bundleFile)
	m := map[domain.Username]domain.PreKeyBundle{}
	if err := readJSON(path, &m); err != nil {
		return domain.PreKeyBundle{}, false, err
	}
	b, ok := m[deviceID]
	return b, ok, nil
}

// Compile-time assertion that BundleFileStore implements domain.PreKeyBundleStore.
var _ domain.PreKeyBundleStore = (*BundleFileStore)(nil)
