package identity

import (
	"crypto/rand"
	"fmt"
	"unicode"

	"github.com/itechstro/lime/internal/cryptosuite"
	domain "github.com/itechstro/lime/internal/domain"
)

// minPassphraseLength defines the minimum number of characters required for a passphrase.
const minPassphraseLength = 12

// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
var ErrWeakPassphrase = fmt.Errorf(
	"passphrase is too weak (must be at least %d characters and include upper, lower, "+
		"number, and symbol)",
	minPassphraseLength,
)

// Service manages identity key creation and access using a backing store.
//
// The identity contains a signing key pair (IK) and the DH key pair
// deterministically derived from it via cryptosuite.Suite.ConvertSigningToDH
// (spec.md §3), for whichever curve suite the identity was created under.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a new identity under curve, saves it encrypted
// with the passphrase, and returns the identity plus a short fingerprint
// of its DH public key.
func (s *Service) GenerateIdentity(passphrase string, curve domain.CurveID) (domain.Identity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}

	suite, err := cryptosuite.ForCurve(curve)
	if err != nil {
		return domain.Identity{}, "", err
	}

	signPriv, signPub, err := suite.GenerateSigningKeyPair(rand.Reader)
	if err != nil {
		return domain.Identity{}, "", err
	}
	dhPriv, dhPub, err := suite.ConvertSigningToDH(signPriv, signPub)
	if err != nil {
		return domain.Identity{}, "", err
	}

	id := domain.Identity{
		Curve:       curve,
		SigningPub:  domain.NewSigningPublicKey(curve, signPub),
		SigningPriv: domain.NewSigningPrivateKey(curve, signPriv),
		DHPub:       domain.NewDHPublicKey(curve, dhPub),
		DHPriv:      domain.NewDHPrivateKey(curve, dhPriv),
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, domain.Fingerprint(cryptosuite.Fingerprint(id.DHPub.Slice())), nil
}

// LoadIdentity decrypts and returns the local identity.
func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

// FingerprintIdentity returns a short fingerprint of the local DH public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(cryptosuite.Fingerprint(id.DHPub.Slice())), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
