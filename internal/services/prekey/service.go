package prekey

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/itechstro/lime/internal/apperr"
	"github.com/itechstro/lime/internal/cryptosuite"
	domain "github.com/itechstro/lime/internal/domain"
)

// Service manages signed and one-time pre-key pairs and builds the public
// bundle a peer fetches to run the X3DH sender path (spec.md §3/§4.D).
type Service struct {
	ids domain.IdentityStore
	ps  domain.PreKeyStore
	bs  domain.PreKeyBundleStore
}

// New returns a pre-key service backed by the given stores.
func New(ids domain.IdentityStore, ps domain.PreKeyStore, bs domain.PreKeyBundleStore) *Service {
	return &Service{ids: ids, ps: ps, bs: bs}
}

func randomID() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// GenerateAndStorePreKeys creates a fresh signed pre-key pair and n one-time
// pairs, marking the new signed pre-key as current.
func (s *Service) GenerateAndStorePreKeys(passphrase string, n int) (domain.DHPublicKey, []domain.OneTimePreKeyPublic, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.DHPublicKey{}, nil, err
	}
	suite, err := cryptosuite.ForCurve(id.Curve)
	if err != nil {
		return domain.DHPublicKey{}, nil, err
	}

	spkPair, err := s.newSignedPreKey(suite, id)
	if err != nil {
		return domain.DHPublicKey{}, nil, err
	}
	if err := s.ps.SaveSignedPreKey(spkPair); err != nil {
		return domain.DHPublicKey{}, nil, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(spkPair.ID); err != nil {
		return domain.DHPublicKey{}, nil, err
	}

	publics, err := s.generateOneTimePreKeys(suite, id.Curve, n)
	if err != nil {
		return domain.DHPublicKey{}, nil, err
	}
	return spkPair.Pub, publics, nil
}

func (s *Service) newSignedPreKey(suite cryptosuite.Suite, id domain.Identity) (domain.SignedPreKeyPair, error) {
	priv, pub, err := suite.GenerateDHKeyPair(rand.Reader)
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	spkID, err := randomID()
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	sig := suite.Sign(id.SigningPriv.Slice(), pub)
	return domain.SignedPreKeyPair{
		ID:        domain.SignedPreKeyID(spkID),
		Priv:      domain.NewDHPrivateKey(id.Curve, priv),
		Pub:       domain.NewDHPublicKey(id.Curve, pub),
		Signature: sig,
		CreatedAt: time.Now().Unix(),
	}, nil
}

func (s *Service) generateOneTimePreKeys(suite cryptosuite.Suite, curve domain.CurveID, n int) ([]domain.OneTimePreKeyPublic, error) {
	pairs := make([]domain.OneTimePreKeyPair, 0, n)
	publics := make([]domain.OneTimePreKeyPublic, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := suite.GenerateDHKeyPair(rand.Reader)
		if err != nil {
			return nil, err
		}
		opkID, err := randomID()
		if err != nil {
			return nil, err
		}
		pair := domain.OneTimePreKeyPair{
			ID:   domain.OneTimePreKeyID(opkID),
			Priv: domain.NewDHPrivateKey(curve, priv),
			Pub:  domain.NewDHPublicKey(curve, pub),
		}
		pairs = append(pairs, pair)
		publics = append(publics, domain.OneTimePreKeyPublic{ID: pair.ID, Pub: pair.Pub})
	}
	if err := s.ps.SaveOneTimePreKeys(pairs); err != nil {
		return nil, err
	}
	return publics, nil
}

// LoadPreKeyBundle builds the public bundle from the current signed pre-key
// and the first one-time pre-key public that the store lists (read, not
// consumed — the OPK itself is only consumed on receiver-path use), caches
// it, and returns it.
func (s *Service) LoadPreKeyBundle(passphrase string, deviceID domain.Username) (domain.PreKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	spkID, ok, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, apperr.ErrUnknownPreKey
	}
	spkPair, found, err := s.ps.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !found {
		return domain.PreKeyBundle{}, apperr.ErrUnknownPreKey
	}

	var opk *domain.OneTimePreKeyPublic
	publics, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if len(publics) > 0 {
		opk = &publics[0]
	}

	b := domain.PreKeyBundle{
		Curve:           id.Curve,
		DeviceID:        deviceID,
		IdentityKey:     id.DHPub,
		SigningKey:      id.SigningPub,
		SignedPreKeyID:  spkPair.ID,
		SignedPreKey:    spkPair.Pub,
		SignedPreKeySig: spkPair.Signature,
		OneTimePreKey:   opk,
	}
	if err := s.bs.SavePreKeyBundle(b); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return b, nil
}

// RotateSignedPreKey issues a fresh signed pre-key and marks it current,
// leaving the previous one in place for PruneExpiredSignedPreKeys to erase
// once spk_lifetime+spk_grace has elapsed (spec.md §3/§6).
func (s *Service) RotateSignedPreKey(passphrase string) (domain.SignedPreKeyPair, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	suite, err := cryptosuite.ForCurve(id.Curve)
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	pair, err := s.newSignedPreKey(suite, id)
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	if err := s.ps.SaveSignedPreKey(pair); err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(pair.ID); err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	return pair, nil
}

// PruneExpiredSignedPreKeys erases every signed pre-key older than
// olderThanUTC, except whichever is currently marked current (so a SPK
// never erases itself out from under in-flight registration).
func (s *Service) PruneExpiredSignedPreKeys(olderThanUTC int64) error {
	current, hasCurrent, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return err
	}
	pairs, err := s.ps.ListSignedPreKeys()
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		if hasCurrent && pair.ID == current {
			continue
		}
		if pair.CreatedAt >= olderThanUTC {
			continue
		}
		if err := s.ps.DeleteSignedPreKey(pair.ID); err != nil {
			return err
		}
	}
	return nil
}

// ReplenishOneTimePreKeys tops up local one-time pre-key stock with a fresh
// batch of opkBatchSizeFor's fixed size, whatever remainingOnServer is; the
// configured opk_batch_size is not consulted. The caller decides when to
// call it (for example against opk_server_low_limit) and posts the result
// to the relay.
func (s *Service) ReplenishOneTimePreKeys(passphrase string, remainingOnServer int) ([]domain.OneTimePreKeyPublic, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	suite, err := cryptosuite.ForCurve(id.Curve)
	if err != nil {
		return nil, err
	}
	return s.generateOneTimePreKeys(suite, id.Curve, opkBatchSizeFor(remainingOnServer))
}

// opkBatchSizeFor returns the replenishment batch size: a flat 100 for any
// remainingOnServer. app.Config's OPKBatchSize does not reach it.
func opkBatchSizeFor(remainingOnServer int) int {
	const defaultBatch = 100
	return defaultBatch
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)
