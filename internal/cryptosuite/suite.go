package cryptosuite

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

// CurveID identifies which curve suite a piece of key material belongs to.
type CurveID uint8

const (
	// Curve255 selects X25519 Diffie-Hellman and Ed25519 signing.
	Curve255 CurveID = 0x01
	// Curve448 selects X448 Diffie-Hellman and Ed448 signing.
	Curve448 CurveID = 0x02
)

// String renders the curve id for logging.
func (c CurveID) String() string {
	switch c {
	case Curve255:
		return "curve255"
	case Curve448:
		return "curve448"
	default:
		return "curve-unknown"
	}
}

var (
	// ErrInvalidKey is returned when a DH computation yields a low-order or
	// all-zero output, or a key fails to decode to a valid curve point.
	ErrInvalidKey = errors.New("cryptosuite: invalid key")
	// ErrSignatureInvalid is returned when an EdDSA verification fails.
	ErrSignatureInvalid = errors.New("cryptosuite: signature invalid")
	// ErrUnknownCurve is returned when a curve id does not name a registered suite.
	ErrUnknownCurve = errors.New("cryptosuite: unknown curve id")
)

// Suite is the capability trait implemented once per supported curve. Every
// method is pure with respect to its arguments except GenerateDHKeyPair and
// GenerateSigningKeyPair, which consume randomness from rand.
type Suite interface {
	ID() CurveID

	// Sizes, fixed per suite.
	DHPublicKeySize() int
	DHPrivateKeySize() int
	SigningPublicKeySize() int
	SigningPrivateKeySize() int
	SignatureSize() int
	SharedSecretSize() int

	// GenerateDHKeyPair returns a fresh Diffie-Hellman key pair.
	GenerateDHKeyPair(rand io.Reader) (priv, pub []byte, err error)
	// DH computes the shared secret between a local private and a remote
	// public key. Returns ErrInvalidKey if the remote point is low-order.
	DH(priv, pub []byte) ([]byte, error)

	// GenerateSigningKeyPair returns a fresh EdDSA-style signing key pair.
	GenerateSigningKeyPair(rand io.Reader) (priv, pub []byte, err error)
	// Sign produces a signature over message under priv.
	Sign(priv, message []byte) []byte
	// Verify reports whether sig is a valid signature over message under pub.
	Verify(pub, message, sig []byte) bool

	// ConvertSigningToDH deterministically derives the DH key pair
	// equivalent to a signing key pair. Called once by the key owner at
	// identity-generation time; the resulting DH public key is published
	// alongside the signing public key rather than re-derived by peers.
	ConvertSigningToDH(priv, pub []byte) (dhPriv, dhPub []byte, err error)
}

// Fingerprint returns a short hex fingerprint of a public key: SHA-256,
// truncated to 10 bytes (20 hex chars), curve-independent.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// ForCurve resolves the Suite implementation for a curve id.
func ForCurve(id CurveID) (Suite, error) {
	switch id {
	case Curve255:
		return suite255{}, nil
	case Curve448:
		return suite448{}, nil
	default:
		return nil, ErrUnknownCurve
	}
}
