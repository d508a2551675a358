package store

import (
	"path/filepath"
	"sync"

	domain "github.com/itechstro/lime/internal/domain"
)

const (
	spkPairsFile   = "spk_pairs.json"
	opkPairsFile   = "opk_pairs.json"
	prekeyMetaFile = "prekey_meta.json"
)

// PrekeyFileStore persists Signed Pre-Key and One-Time Pre-Key state to disk.
type PrekeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPrekeyFileStore returns a PrekeyFileStore rooted at dir.
func NewPrekeyFileStore(dir string) *PrekeyFileStore {
	return &PrekeyFileStore{dir: dir}
}

type prekeyMeta struct {
	CurrentSignedPreKeyID domain.SignedPreKeyID `json:"current_signed_pre_key_id"`
	HasCurrent            bool                  `json:"has_current"`
}

// SaveSignedPreKey stores a signed pre-key pair, keyed by its id. Older
// pairs are kept around (spec.md §3's SPK grace period); callers prune via
// DeleteSignedPreKey once spk_lifetime+spk_grace has elapsed.
func (s *PrekeyFileStore) SaveSignedPreKey(pair domain.SignedPreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]domain.SignedPreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[pair.ID] = pair
	return writeJSON(path, m, 0o600)
}

// LoadSignedPreKey retrieves a signed pre-key pair by id.
func (s *PrekeyFileStore) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]domain.SignedPreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return domain.SignedPreKeyPair{}, false, err
	}
	p, ok := m[id]
	return p, ok, nil
}

// ListSignedPreKeys returns every signed pre-key pair currently retained,
// in no particular order; callers filter by age for rotation/pruning.
func (s *PrekeyFileStore) ListSignedPreKeys() ([]domain.SignedPreKeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]domain.SignedPreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}
	out := make([]domain.SignedPreKeyPair, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out, nil
}

// DeleteSignedPreKey erases a signed pre-key pair, e.g. once it falls
// outside spk_lifetime+spk_grace (spec.md §3).
func (s *PrekeyFileStore) DeleteSignedPreKey(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]domain.SignedPreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	delete(m, id)
	return writeJSON(path, m, 0o600)
}

// SaveOneTimePreKeys merges the provided one-time pre-key pairs into the store.
func (s *PrekeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	for _, p := range pairs {
		m[p.ID] = p
	}
	return writeJSON(path, m, 0o600)
}

// ConsumeOneTimePreKey removes and returns a single one-time pre-key by id.
// Erasing it here, on first read, is what gives OPKs their single-use
// property (spec.md §3 / P3).
func (s *PrekeyFileStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	p, ok := m[id]
	if !ok {
		return domain.OneTimePreKeyPair{}, false, nil
	}
	delete(m, id)
	if err := writeJSON(path, m, 0o600); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	return p, true, nil
}

// ListOneTimePreKeyPublics exposes only the public halves for bundling.
func (s *PrekeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}
	out := make([]domain.OneTimePreKeyPublic, 0, len(m))
	for id, p := range m {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
	}
	return out, nil
}

// CountOneTimePreKeys reports how many one-time pre-keys remain locally;
// the server-reported count drives opk_server_low_limit replenishment
// instead (spec.md §6), but this is useful for local diagnostics.
func (s *PrekeyFileStore) CountOneTimePreKeys() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readJSON(path, &m); err != nil {
		return 0, err
	}
	return len(m), nil
}

// SetCurrentSignedPreKeyID records which signed pre-key id is current.
func (s *PrekeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	meta := prekeyMeta{CurrentSignedPreKeyID: id, HasCurrent: true}
	return writeJSON(path, meta, 0o600)
}

// CurrentSignedPreKeyID returns the recorded current signed pre-key id.
func (s *PrekeyFileStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	var meta prekeyMeta
	if err := readJSON(path, &meta); err != nil {
		return 0, false, err
	}
	return meta.CurrentSignedPreKeyID, meta.HasCurrent, nil
}

// Compile-time assertion that PrekeyFileStore implements domain.PreKeyStore.
var _ domain.PreKeyStore = (*PrekeyFileStore)(nil)
