package store

import (
	"bytes"
	"path/filepath"
	"sync"

	domain "github.com/itechstro/lime/internal/domain"
)

const peerDevicesFile = "peer_devices.json"

// peerDeviceRecord mirrors domain.PeerDevice for on-disk storage; RowID is
// assigned from a monotonic counter kept alongside the records.
type peerDeviceRecord struct {
	RowID       int64                  `json:"row_id"`
	IdentityKey domain.DHPublicKey     `json:"identity_key"`
	Status      domain.PeerDeviceStatus `json:"status"`
}

type peerDeviceTable struct {
	NextRowID int64                                  `json:"next_row_id"`
	Devices   map[domain.Username]peerDeviceRecord `json:"devices"`
}

// PeerDeviceFileStore pins peer identities on first encounter, persisted
// to disk (spec.md §3 trust-on-first-use).
type PeerDeviceFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPeerDeviceFileStore returns a PeerDeviceFileStore rooted at dir.
func NewPeerDeviceFileStore(dir string) *PeerDeviceFileStore {
	return &PeerDeviceFileStore{dir: dir}
}

func (s *PeerDeviceFileStore) load() (peerDeviceTable, error) {
	path := filepath.Join(s.dir, peerDevicesFile)
	t := peerDeviceTable{Devices: map[domain.Username]peerDeviceRecord{}}
	if err := readJSON(path, &t); err != nil {
		return peerDeviceTable{}, err
	}
	if t.Devices == nil {
		t.Devices = map[domain.Username]peerDeviceRecord{}
	}
	return t, nil
}

func (s *PeerDeviceFileStore) save(t peerDeviceTable) error {
	path := filepath.Join(s.dir, peerDevicesFile)
	return writeJSON(path, t, 0o600)
}

// PinPeerDevice inserts the peer record on first encounter, or checks the
// pinned identity key against the stored one on subsequent calls. A
// mismatch marks the device PeerUntrustedMismatch but leaves the
// originally pinned identity key untouched (spec.md §3 / P7).
func (s *PeerDeviceFileStore) PinPeerDevice(deviceID domain.Username, identityKey domain.DHPublicKey) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return 0, false, err
	}

	rec, ok := t.Devices[deviceID]
	if !ok {
		t.NextRowID++
		rec = peerDeviceRecord{RowID: t.NextRowID, IdentityKey: identityKey, Status: domain.PeerTrusted}
		t.Devices[deviceID] = rec
		if err := s.save(t); err != nil {
			return 0, false, err
		}
		return rec.RowID, false, nil
	}

	if !bytes.Equal(rec.IdentityKey.Slice(), identityKey.Slice()) {
		rec.Status = domain.PeerUntrustedMismatch
		t.Devices[deviceID] = rec
		if err := s.save(t); err != nil {
			return 0, true, err
		}
		return rec.RowID, true, nil
	}
	return rec.RowID, false, nil
}

// LoadPeerDevice retrieves the pinned record for deviceID.
func (s *PeerDeviceFileStore) LoadPeerDevice(deviceID domain.Username) (domain.PeerDevice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return domain.PeerDevice{}, false, err
	}
	rec, ok := t.Devices[deviceID]
	if !ok {
		return domain.PeerDevice{}, false, nil
	}
	return domain.PeerDevice{
		RowID:       rec.RowID,
		DeviceID:    deviceID,
		IdentityKey: rec.IdentityKey,
		Status:      rec.Status,
	}, true, nil
}

// DeletePeerDevice erases the pinned record for deviceID, per spec.md §3's
// "destroyed when the peer-device record is deleted" session lifecycle rule.
func (s *PeerDeviceFileStore) DeletePeerDevice(deviceID domain.Username) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	delete(t.Devices, deviceID)
	return s.save(t)
}

// Compile-time assertion that PeerDeviceFileStore implements domain.PeerDeviceStore.
var _ domain.PeerDeviceStore = (*PeerDeviceFileStore)(nil)
