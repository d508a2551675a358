package pgstore

import (
	"bytes"

	"github.com/jackc/pgx"

	domain "github.com/itechstro/lime/internal/domain"
)

// PinPeerDevice inserts the peer record on first encounter, or checks the
// pinned identity key against the stored one on subsequent calls
// (spec.md §3 trust-on-first-use / P7).
func (s *Store) PinPeerDevice(deviceID domain.Username, identityKey domain.DHPublicKey) (int64, bool, error) {
	var rowID int64
	var storedKey []byte
	var status int16

	err := s.pool.QueryRow(tagPinPeerDeviceSelect, deviceID.String()).Scan(&rowID, &storedKey, &status)
	if err == pgx.ErrNoRows {
		keyJSON, err := marshal(identityKey)
		if err != nil {
			return 0, false, err
		}
		if err := s.pool.QueryRow(tagPinPeerDeviceInsert, deviceID.String(), keyJSON, int16(domain.PeerTrusted)).Scan(&rowID); err != nil {
			return 0, false, err
		}
		return rowID, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var stored domain.DHPublicKey
	if err := unmarshal(storedKey, &stored); err != nil {
		return 0, false, err
	}
	if !bytes.Equal(stored.Slice(), identityKey.Slice()) {
		if _, err := s.pool.Exec(tagPinPeerDeviceUpdate, deviceID.String(), int16(domain.PeerUntrustedMismatch)); err != nil {
			return rowID, true, err
		}
		return rowID, true, nil
	}
	return rowID, false, nil
}

// LoadPeerDevice retrieves the pinned record for deviceID.
func (s *Store) LoadPeerDevice(deviceID domain.Username) (domain.PeerDevice, bool, error) {
	var rowID int64
	var keyJSON []byte
	var status int16

	err := s.pool.QueryRow(tagLoadPeerDevice, deviceID.String()).Scan(&rowID, &keyJSON, &status)
	if err == pgx.ErrNoRows {
		return domain.PeerDevice{}, false, nil
	}
	if err != nil {
		return domain.PeerDevice{}, false, err
	}
	var key domain.DHPublicKey
	if err := unmarshal(keyJSON, &key); err != nil {
		return domain.PeerDevice{}, false, err
	}
	return domain.PeerDevice{
		RowID:       rowID,
		DeviceID:    deviceID,
		IdentityKey: key,
		Status:      domain.PeerDeviceStatus(status),
	}, true, nil
}

// DeletePeerDevice erases the pinned record for deviceID.
func (s *Store) DeletePeerDevice(deviceID domain.Username) error {
	_, err := s.pool.Exec(tagDeletePeerDevice, deviceID.String())
	return err
}
