package cryptosuite

import (
	"crypto/hmac"
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ZeroSalt64 is the 64-byte all-zero salt mandated wherever the spec calls
// for HKDF-SHA512 with an unkeyed salt (X3DH's SK/AD derivation, the Double
// Ratchet's AEAD sub-key derivation).
var ZeroSalt64 = make([]byte, sha512.Size)

// HKDFSHA512 runs a single RFC 5869 expansion round over ikm with the given
// salt and info, returning outLen bytes. outLen must not exceed 64 (one
// HMAC-SHA512 block), matching the spec's "restricted to a single expansion
// round" constraint in component A.
func HKDFSHA512(ikm, salt, info []byte, outLen int) ([]byte, error) {
	if outLen > sha512.Size {
		panic("cryptosuite: HKDFSHA512 outLen exceeds one expansion round")
	}
	r := hkdf.New(sha512.New, ikm, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HMACSHA512 computes HMAC-SHA512(key, data).
func HMACSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}
