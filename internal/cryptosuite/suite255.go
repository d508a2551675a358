package cryptosuite

import (
	"crypto/ed25519"
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/curve25519"
)

// suite255 implements Suite over X25519 and Ed25519, grounded on the
// clamping and DH shape of the teacher's internal/crypto/x25519.go and
// internal/crypto/ed25519.go.
type suite255 struct{}

const (
	size255DHPublic        = 32
	size255DHPrivate       = 32
	size255SigningPublic   = 32
	size255SigningPrivate  = 64 // crypto/ed25519.PrivateKey layout (seed||pub)
	size255Signature       = ed25519.SignatureSize
	size255SharedSecret    = 32
)

func (suite255) ID() CurveID                  { return Curve255 }
func (suite255) DHPublicKeySize() int         { return size255DHPublic }
func (suite255) DHPrivateKeySize() int        { return size255DHPrivate }
func (suite255) SigningPublicKeySize() int    { return size255SigningPublic }
func (suite255) SigningPrivateKeySize() int   { return size255SigningPrivate }
func (suite255) SignatureSize() int           { return size255Signature }
func (suite255) SharedSecretSize() int         { return size255SharedSecret }

func (suite255) GenerateDHKeyPair(rand io.Reader) (priv, pub []byte, err error) {
	priv = make([]byte, size255DHPrivate)
	if _, err = io.ReadFull(rand, priv); err != nil {
		return nil, nil, err
	}
	clamp255(priv)
	pubBytes, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pubBytes, nil
}

func (suite255) DH(priv, pub []byte) ([]byte, error) {
	out, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if isAllZero(out) {
		return nil, ErrInvalidKey
	}
	return out, nil
}

func (suite255) GenerateSigningKeyPair(rand io.Reader) (priv, pub []byte, err error) {
	pk, sk, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, nil, err
	}
	return []byte(sk), []byte(pk), nil
}

func (suite255) Sign(priv, message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv), message)
}

func (suite255) Verify(pub, message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

// ConvertSigningToDH performs the classical birational map between the
// Ed25519 curve and Curve25519: the DH private scalar is clamp(SHA-512(seed)[0:32])
// and the DH public is the corresponding basepoint multiple, matching the
// conversion used by XEdDSA-style designs.
func (suite255) ConvertSigningToDH(priv, pub []byte) (dhPriv, dhPub []byte, err error) {
	if len(priv) != size255SigningPrivate {
		return nil, nil, ErrInvalidKey
	}
	seed := priv[:32]
	h := sha512.Sum512(seed)
	dhPriv = make([]byte, 32)
	copy(dhPriv, h[:32])
	clamp255(dhPriv)

	pubBytes, err := curve25519.X25519(dhPriv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return dhPriv, pubBytes, nil
}

func clamp255(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

func isAllZero(b []byte) bool {
	var v byte
	for _, c := range b {
		v |= c
	}
	return v == 0
}
