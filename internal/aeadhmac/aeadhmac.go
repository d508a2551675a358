// Package aeadhmac implements the encrypt-then-MAC construction the spec
// requires for the Double Ratchet's per-message AEAD: AES-256-CTR for
// confidentiality, HMAC-SHA512 for integrity. It is grounded on
// _examples/codahale-veil-go/internal/ctrhmac, whose Seal/Open/hash shape
// is kept here re-keyed to HMAC-SHA512 and to a caller-supplied key/IV/MAC
// key triple rather than deriving them internally from a single key.
package aeadhmac

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// IVSize is the AES-CTR IV length.
	IVSize = aes.BlockSize
	// MACKeySize is the HMAC-SHA512 key length.
	MACKeySize = 32
	// Overhead is the appended HMAC-SHA512 digest length.
	Overhead = sha512.Size
)

// ErrInvalidCiphertext is returned when a ciphertext's MAC does not verify,
// either due to an incorrect key or tampering. It is surfaced to callers as
// the ratchet's AuthenticationFailed error.
var ErrInvalidCiphertext = errors.New("aeadhmac: invalid ciphertext")

// AEAD is an encrypt-then-MAC cipher over AES-256-CTR and HMAC-SHA512.
type AEAD struct {
	block cipher.Block
	mac   []byte // HMAC-SHA512 key
	iv    []byte
}

// New constructs an AEAD from an already-derived key/iv/mac-key triple, as
// produced by the ratchet's KDF_CK-derived AEAD sub-key expansion.
func New(key, iv, macKey []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, errors.New("aeadhmac: bad key size")
	}
	if len(iv) != IVSize {
		return nil, errors.New("aeadhmac: bad iv size")
	}
	if len(macKey) != MACKeySize {
		return nil, errors.New("aeadhmac: bad mac key size")
	}
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{block: b, mac: macKey, iv: append([]byte(nil), iv...)}, nil
}

// Seal encrypts plaintext and appends an HMAC-SHA512 tag over the
// ciphertext, the IV, and associatedData.
func (a *AEAD) Seal(plaintext, associatedData []byte) []byte {
	out := make([]byte, len(plaintext), len(plaintext)+Overhead)
	cipher.NewCTR(a.block, a.iv).XORKeyStream(out, plaintext)
	return a.hash(out, associatedData)
}

// Open verifies the HMAC-SHA512 tag then decrypts. On tag mismatch it
// returns ErrInvalidCiphertext without touching the plaintext buffer.
func (a *AEAD) Open(ciphertext, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < Overhead {
		return nil, ErrInvalidCiphertext
	}
	n := len(ciphertext) - Overhead
	tag := ciphertext[n:]
	body := ciphertext[:n]

	expected := a.tag(body, associatedData)
	if !hmac.Equal(tag, expected) {
		return nil, ErrInvalidCiphertext
	}

	out := make([]byte, n)
	cipher.NewCTR(a.block, a.iv).XORKeyStream(out, body)
	return out, nil
}

func (a *AEAD) hash(ciphertext, associatedData []byte) []byte {
	return append(ciphertext, a.tag(ciphertext, associatedData)...)
}

func (a *AEAD) tag(ciphertext, associatedData []byte) []byte {
	h := hmac.New(sha512.New, a.mac)
	h.Write(a.iv)
	h.Write(ciphertext)
	h.Write(associatedData)
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(ciphertext))*8)
	h.Write(lenBuf[:])
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(associatedData))*8)
	h.Write(lenBuf[:])
	return h.Sum(nil)
}
