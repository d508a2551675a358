package types

import (
	"encoding/base64"
	"encoding/json"

	"github.com/itechstro/lime/internal/cryptosuite"
	"github.com/itechstro/lime/internal/util/memzero"
)

// CurveID re-exports cryptosuite.CurveID so wire/storage structs in this
// package don't need to import internal/cryptosuite directly.
type CurveID = cryptosuite.CurveID

const (
	Curve255 = cryptosuite.Curve255
	Curve448 = cryptosuite.Curve448
)

// keyBytes is the shared representation behind every key-material type
// below: a curve-tagged byte slice. Distinct named types (DHPublicKey,
// SigningPrivateKey, ...) prevent a signing key from being passed where a
// DH key is expected, even though byte-level conversion exists via
// cryptosuite.Suite.ConvertSigningToDH.
type keyBytes struct {
	Curve CurveID
	B     []byte
}

// Slice returns the raw key bytes.
func (k keyBytes) Slice() []byte { return k.B }

// clone returns a deep copy; a plain Go copy of these types shares the
// backing array, so clone is the only sanctioned way to duplicate a
// private half.
func (k keyBytes) clone() keyBytes {
	out := make([]byte, len(k.B))
	copy(out, k.B)
	return keyBytes{Curve: k.Curve, B: out}
}

// Zero overwrites the backing bytes in place.
func (k keyBytes) Zero() { memzero.Zero(k.B) }

func (k keyBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Curve CurveID `json:"curve"`
		B     string  `json:"b"`
	}{Curve: k.Curve, B: base64.StdEncoding.EncodeToString(k.B)})
}

func (k *keyBytes) UnmarshalJSON(data []byte) error {
	var aux struct {
		Curve CurveID `json:"curve"`
		B     string  `json:"b"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b, err := base64.StdEncoding.DecodeString(aux.B)
	if err != nil {
		return err
	}
	k.Curve, k.B = aux.Curve, b
	return nil
}

// DHPublicKey is a Diffie-Hellman public key in either curve suite.
type DHPublicKey struct{ keyBytes }

// DHPrivateKey is a Diffie-Hellman private key in either curve suite.
type DHPrivateKey struct{ keyBytes }

// Clone returns a deep copy of the private key.
func (k DHPrivateKey) Clone() DHPrivateKey { return DHPrivateKey{k.clone()} }

// SigningPublicKey is an EdDSA-style signing public key.
type SigningPublicKey struct{ keyBytes }

// SigningPrivateKey is an EdDSA-style signing private key.
type SigningPrivateKey struct{ keyBytes }

// Clone returns a deep copy of the private key.
func (k SigningPrivateKey) Clone() SigningPrivateKey { return SigningPrivateKey{k.clone()} }

// NewDHPublicKey wraps b as a DH public key for curve.
func NewDHPublicKey(curve CurveID, b []byte) DHPublicKey {
	return DHPublicKey{keyBytes{Curve: curve, B: b}}
}

// NewDHPrivateKey wraps b as a DH private key for curve.
func NewDHPrivateKey(curve CurveID, b []byte) DHPrivateKey {
	return DHPrivateKey{keyBytes{Curve: curve, B: b}}
}

// NewSigningPublicKey wraps b as a signing public key for curve.
func NewSigningPublicKey(curve CurveID, b []byte) SigningPublicKey {
	return SigningPublicKey{keyBytes{Curve: curve, B: b}}
}

// NewSigningPrivateKey wraps b as a signing private key for curve.
func NewSigningPrivateKey(curve CurveID, b []byte) SigningPrivateKey {
	return SigningPrivateKey{keyBytes{Curve: curve, B: b}}
}
