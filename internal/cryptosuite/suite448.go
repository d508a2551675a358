package cryptosuite

import (
	"crypto/sha512"
	"io"

	"github.com/cloudflare/circl/dh/x448"
	"github.com/cloudflare/circl/sign/ed448"
)

// suite448 implements Suite over X448 and Ed448, sourced from
// github.com/cloudflare/circl (a confirmed direct dependency of the
// gematik-zero-lab example repo's go/asl and go/vau submodules).
type suite448 struct{}

const (
	size448DHPublic      = x448.Size
	size448DHPrivate     = x448.Size
	size448SigningPublic = ed448.PublicKeySize
	size448Signature     = ed448.SignatureSize
	size448SharedSecret  = x448.Size
)

func (suite448) ID() CurveID                { return Curve448 }
func (suite448) DHPublicKeySize() int       { return size448DHPublic }
func (suite448) DHPrivateKeySize() int      { return size448DHPrivate }
func (suite448) SigningPublicKeySize() int  { return size448SigningPublic }
func (suite448) SigningPrivateKeySize() int { return ed448.PrivateKeySize }
func (suite448) SignatureSize() int         { return size448Signature }
func (suite448) SharedSecretSize() int      { return size448SharedSecret }

func (suite448) GenerateDHKeyPair(rand io.Reader) (priv, pub []byte, err error) {
	var sk, pk x448.Key
	if _, err = io.ReadFull(rand, sk[:]); err != nil {
		return nil, nil, err
	}
	x448.KeyGen(&pk, &sk)
	return sk[:], pk[:], nil
}

func (suite448) DH(priv, pub []byte) ([]byte, error) {
	var sk, pk, shared x448.Key
	copy(sk[:], priv)
	copy(pk[:], pub)
	if ok := x448.Shared(&shared, &sk, &pk); !ok {
		return nil, ErrInvalidKey
	}
	return shared[:], nil
}

func (suite448) GenerateSigningKeyPair(rand io.Reader) (priv, pub []byte, err error) {
	pk, sk, err := ed448.GenerateKey(rand)
	if err != nil {
		return nil, nil, err
	}
	return []byte(sk), []byte(pk), nil
}

func (suite448) Sign(priv, message []byte) []byte {
	return ed448.Sign(ed448.PrivateKey(priv), message, "")
}

func (suite448) Verify(pub, message, sig []byte) bool {
	return ed448.Verify(ed448.PublicKey(pub), message, sig, "")
}

// ConvertSigningToDH derives a Curve448 DH key pair from an Ed448 signing key
// pair. Ed448 and Curve448 are related by a 4-isogeny rather than a clean
// birational map, so unlike the 255-bit suite this is not a reversible
// change of coordinates: it is a deterministic hash-to-scalar derivation
// over the Ed448 private seed, run only by the key owner at
// identity-generation time. Peers always consume the resulting DH public
// key as published in the identity bundle; they never re-derive it from a
// bare Ed448 public key.
func (suite448) ConvertSigningToDH(priv, pub []byte) (dhPriv, dhPub []byte, err error) {
	seed := ed448.PrivateKey(priv).Seed()
	wide := sha512.Sum512(append([]byte("lime-x448-dh-convert"), seed...))
	sk := make([]byte, x448.Size)
	copy(sk, wide[:x448.Size])

	var skArr, pkArr x448.Key
	copy(skArr[:], sk)
	x448.KeyGen(&pkArr, &skArr)
	return skArr[:], pkArr[:], nil
}
