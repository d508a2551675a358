package ratchet

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/itechstro/lime/internal/aeadhmac"
	"github.com/itechstro/lime/internal/apperr"
	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/util/memzero"
)

const (
	// MaxMessageSkipPerChain bounds skipped-key entries cached per chain
	// (spec.md §4.E / §6 configuration defaults).
	MaxMessageSkipPerChain = 1024
	// MaxCachedChains bounds the number of distinct remote-DH chains whose
	// skipped keys are retained at once.
	MaxCachedChains = 5

	rkInfo      = "DR-RK"
	aeadKeyInfo = "DR-AEAD-KEYIV"
	aeadMACInfo = "DR-AEAD-MAC"
)

// InitAsSender seeds a session where the remote DH is already known (the
// X3DH sender's SPK_peer) and no local DH pair exists yet (spec.md §4.D
// step 8 / §4.F).
func InitAsSender(curve cryptosuite.CurveID, rootKey, associatedData []byte, remoteDH domaintypes.DHPublicKey, pendingInitHeader []byte) domaintypes.RatchetState {
	return domaintypes.RatchetState{
		Curve:             curve,
		RootKey:           rootKey,
		PeerDHPub:         remoteDH,
		AssociatedData:    associatedData,
		PendingInitHeader: pendingInitHeader,
		Active:            true,
	}
}

// InitAsReceiver seeds a session where the local DH pair (the SPK used to
// answer X3DH) is already known and no remote DH is known yet (spec.md
// §4.D step 5).
func InitAsReceiver(curve cryptosuite.CurveID, rootKey, associatedData []byte, localDHPriv domaintypes.DHPrivateKey, localDHPub domaintypes.DHPublicKey) domaintypes.RatchetState {
	return domaintypes.RatchetState{
		Curve:          curve,
		RootKey:        rootKey,
		DHPriv:         localDHPriv,
		DHPub:          localDHPub,
		AssociatedData: associatedData,
		Active:         true,
	}
}

// Encrypt advances the sending chain and returns the header and AEAD
// ciphertext for plaintext (spec.md §4.E "Per outbound"). The session's
// pending X3DH-init header, if any, is returned alongside and cleared.
func Encrypt(suite cryptosuite.Suite, rand io.Reader, st *domaintypes.RatchetState, plaintext []byte) (domaintypes.RatchetHeader, []byte, []byte, error) {
	initHeader := st.PendingInitHeader
	st.PendingInitHeader = nil

	if len(st.DHPriv.Slice()) == 0 {
		priv, pub, err := suite.GenerateDHKeyPair(rand)
		if err != nil {
			return domaintypes.RatchetHeader{}, nil, nil, fmt.Errorf("ratchet: generate DH pair: %w", err)
		}
		dhOut, err := suite.DH(priv, st.PeerDHPub.Slice())
		if err != nil {
			return domaintypes.RatchetHeader{}, nil, nil, fmt.Errorf("ratchet: %w", err)
		}
		newRK, sendCK, err := kdfRK(st.RootKey, dhOut)
		memzero.Zero(dhOut)
		if err != nil {
			return domaintypes.RatchetHeader{}, nil, nil, err
		}
		st.RootKey = newRK
		st.DHPriv = domaintypes.NewDHPrivateKey(suite.ID(), priv)
		st.DHPub = domaintypes.NewDHPublicKey(suite.ID(), pub)
		st.SendChainKey = sendCK
	}

	mk, nextCK := kdfCK(st.SendChainKey)

	header := domaintypes.RatchetHeader{Curve: st.Curve, DHPublic: st.DHPub, PN: st.PN, N: st.Ns}
	ciphertext, err := seal(mk, st.AssociatedData, header, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return domaintypes.RatchetHeader{}, nil, nil, err
	}

	st.SendChainKey = nextCK
	st.Ns++
	return header, ciphertext, initHeader, nil
}

// Decrypt handles an inbound ciphertext (spec.md §4.E "State transitions").
// It operates on a working copy of *st and writes back to *st only once
// decryption has actually succeeded, so any failure — bad AEAD tag, replay,
// or an over-limit skip — leaves the persisted session state unchanged.
func Decrypt(suite cryptosuite.Suite, rand io.Reader, st *domaintypes.RatchetState, header domaintypes.RatchetHeader, ciphertext []byte) ([]byte, error) {
	work := *st
	work.SkippedChains = cloneSkippedChains(st.SkippedChains)

	remoteKnown := len(work.PeerDHPub.Slice()) != 0
	remoteChanged := !remoteKnown || !bytesEqual(work.PeerDHPub.Slice(), header.DHPublic.Slice())

	if remoteChanged {
		if remoteKnown && work.Nr < header.PN {
			if err := cacheSkipped(&work, work.PeerDHPub.Slice(), header.PN); err != nil {
				return nil, err
			}
		}

		// Whether this is the very first inbound message (no prior remote
		// DH known, receiver-path session) or a genuine DH-ratchet turn,
		// the receiving chain is seeded the same way: DH(local, new remote)
		// folded into the current root key.
		dh1, err := suite.DH(work.DHPriv.Slice(), header.DHPublic.Slice())
		if err != nil {
			return nil, fmt.Errorf("ratchet: %w", err)
		}
		newRK, recvCK, err := kdfRK(work.RootKey, dh1)
		memzero.Zero(dh1)
		if err != nil {
			return nil, err
		}

		newPriv, newPub, err := suite.GenerateDHKeyPair(rand)
		if err != nil {
			return nil, fmt.Errorf("ratchet: generate DH pair: %w", err)
		}
		dh2, err := suite.DH(newPriv, header.DHPublic.Slice())
		if err != nil {
			return nil, fmt.Errorf("ratchet: %w", err)
		}
		newRK2, sendCK, err := kdfRK(newRK, dh2)
		memzero.Zero(dh2)
		if err != nil {
			return nil, err
		}

		work.PN = work.Ns
		work.Ns, work.Nr = 0, 0
		work.RootKey = newRK2
		work.DHPriv = domaintypes.NewDHPrivateKey(suite.ID(), newPriv)
		work.DHPub = domaintypes.NewDHPublicKey(suite.ID(), newPub)
		work.PeerDHPub = header.DHPublic
		work.SendChainKey = sendCK
		work.RecvChainKey = recvCK
	}

	var mk []byte
	switch {
	case header.N < work.Nr:
		found, ok := takeSkipped(&work, header.DHPublic.Slice(), header.N)
		if !ok {
			return nil, fmt.Errorf("ratchet: %w", apperr.ErrOutOfOrderOrReplay)
		}
		// Copy: found shares its backing array with the entry still cached
		// in *st, which a failed open below must leave intact.
		mk = append([]byte(nil), found...)
	case header.N > work.Nr:
		if err := cacheSkipped(&work, header.DHPublic.Slice(), header.N); err != nil {
			return nil, err
		}
		mk, work.RecvChainKey = kdfCK(work.RecvChainKey)
		work.Nr++
	default:
		mk, work.RecvChainKey = kdfCK(work.RecvChainKey)
		work.Nr++
	}

	plaintext, err := open(mk, work.AssociatedData, header, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, fmt.Errorf("ratchet: %w", apperr.ErrAuthenticationFailed)
	}

	oldSendCK, oldRecvCK := st.SendChainKey, st.RecvChainKey
	*st = work
	if remoteChanged {
		memzero.Zero(oldSendCK)
		memzero.Zero(oldRecvCK)
	}
	return plaintext, nil
}

// EncodeHeader renders the Double Ratchet header's wire form (spec.md §4.E):
// curve_id(1) || DHs_public(L) || PN(4, BE) || N(4, BE).
func EncodeHeader(h domaintypes.RatchetHeader) []byte {
	out := make([]byte, 0, 1+len(h.DHPublic.Slice())+8)
	out = append(out, byte(h.Curve))
	out = append(out, h.DHPublic.Slice()...)
	out = binary.BigEndian.AppendUint32(out, h.PN)
	out = binary.BigEndian.AppendUint32(out, h.N)
	return out
}

// DecodeHeader parses a Double Ratchet header from the front of data,
// returning the remainder (the AEAD ciphertext).
func DecodeHeader(data []byte) (domaintypes.RatchetHeader, []byte, error) {
	if len(data) < 1 {
		return domaintypes.RatchetHeader{}, nil, fmt.Errorf("ratchet: %w: header truncated", apperr.ErrProtocolFormat)
	}
	curve := cryptosuite.CurveID(data[0])
	suite, err := cryptosuite.ForCurve(curve)
	if err != nil {
		return domaintypes.RatchetHeader{}, nil, err
	}
	keySize := suite.DHPublicKeySize()
	need := 1 + keySize + 8
	if len(data) < need {
		return domaintypes.RatchetHeader{}, nil, fmt.Errorf("ratchet: %w: header truncated", apperr.ErrProtocolFormat)
	}
	dhPub := domaintypes.NewDHPublicKey(curve, data[1:1+keySize])
	pn := binary.BigEndian.Uint32(data[1+keySize : 1+keySize+4])
	n := binary.BigEndian.Uint32(data[1+keySize+4 : need])
	return domaintypes.RatchetHeader{Curve: curve, DHPublic: dhPub, PN: pn, N: n}, data[need:], nil
}

func seal(mk, associatedData []byte, header domaintypes.RatchetHeader, plaintext []byte) ([]byte, error) {
	key, iv, macKey, err := aeadSubkeys(mk)
	if err != nil {
		return nil, err
	}
	a, err := aeadhmac.New(key, iv, macKey)
	if err != nil {
		return nil, fmt.Errorf("ratchet: %w", err)
	}
	ad := append(append([]byte{}, associatedData...), EncodeHeader(header)...)
	return a.Seal(plaintext, ad), nil
}

func open(mk, associatedData []byte, header domaintypes.RatchetHeader, ciphertext []byte) ([]byte, error) {
	key, iv, macKey, err := aeadSubkeys(mk)
	if err != nil {
		return nil, err
	}
	a, err := aeadhmac.New(key, iv, macKey)
	if err != nil {
		return nil, fmt.Errorf("ratchet: %w", err)
	}
	ad := append(append([]byte{}, associatedData...), EncodeHeader(header)...)
	return a.Open(ciphertext, ad)
}

// aeadSubkeys expands a message key into the AES-256-CTR key, IV, and
// HMAC-SHA512 MAC key consumed by internal/aeadhmac (spec.md §4.E), split
// across two single-round HKDF-SHA512 calls since the spec's HKDF primitive
// is restricted to outputs of 64 bytes or fewer (see package doc).
func aeadSubkeys(mk []byte) (key, iv, macKey []byte, err error) {
	keyIV, err := cryptosuite.HKDFSHA512(mk, cryptosuite.ZeroSalt64, []byte(aeadKeyInfo), 48)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ratchet: derive AEAD key/iv: %w", err)
	}
	mac, err := cryptosuite.HKDFSHA512(mk, cryptosuite.ZeroSalt64, []byte(aeadMACInfo), 32)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ratchet: derive AEAD mac key: %w", err)
	}
	return keyIV[:32], keyIV[32:48], mac, nil
}

// kdfRK implements KDF_RK(RK, dh_out) = HKDF-SHA512(salt=RK, ikm=dh_out,
// info="DR-RK")[0..64], split into (new RK, chain key) (spec.md §4.E).
func kdfRK(rootKey, dhOut []byte) (newRK, chainKey []byte, err error) {
	out, err := cryptosuite.HKDFSHA512(dhOut, rootKey, []byte(rkInfo), 64)
	if err != nil {
		return nil, nil, fmt.Errorf("ratchet: KDF_RK: %w", err)
	}
	newRK = append([]byte{}, out[:32]...)
	chainKey = append([]byte{}, out[32:64]...)
	return newRK, chainKey, nil
}

// kdfCK implements KDF_CK(CK) = (MK, CK') where MK = HMAC-SHA512(CK,
// 0x01)[0..32], CK' = HMAC-SHA512(CK, 0x02)[0..32] (spec.md §4.E).
func kdfCK(chainKey []byte) (messageKey, nextChainKey []byte) {
	messageKey = cryptosuite.HMACSHA512(chainKey, []byte{0x01})[:32]
	nextChainKey = cryptosuite.HMACSHA512(chainKey, []byte{0x02})[:32]
	return
}

func cloneSkippedChains(in []domaintypes.SkippedChain) []domaintypes.SkippedChain {
	out := make([]domaintypes.SkippedChain, len(in))
	for i, c := range in {
		entries := make([]domaintypes.SkippedMessageKey, len(c.Entries))
		copy(entries, c.Entries)
		remote := make([]byte, len(c.RemoteDHPublic))
		copy(remote, c.RemoteDHPublic)
		out[i] = domaintypes.SkippedChain{RemoteDHPublic: remote, Entries: entries}
	}
	return out
}

func findChain(st *domaintypes.RatchetState, remoteDHPublic []byte) int {
	for i, c := range st.SkippedChains {
		if bytesEqual(c.RemoteDHPublic, remoteDHPublic) {
			return i
		}
	}
	return -1
}

// cacheSkipped advances the receiving chain up to (but not including) toN,
// caching each derived message key under remoteDHPublic, enforcing
// MaxMessageSkipPerChain and MaxCachedChains (spec.md §4.E). On success,
// work.Nr == toN and work.RecvChainKey has been advanced accordingly.
func cacheSkipped(work *domaintypes.RatchetState, remoteDHPublic []byte, toN uint32) error {
	if toN <= work.Nr {
		return nil
	}
	idx := findChain(work, remoteDHPublic)
	if idx == -1 {
		if len(work.SkippedChains) >= MaxCachedChains {
			return fmt.Errorf("ratchet: %w: too many cached chains", apperr.ErrTooManySkipped)
		}
		remote := make([]byte, len(remoteDHPublic))
		copy(remote, remoteDHPublic)
		work.SkippedChains = append(work.SkippedChains, domaintypes.SkippedChain{RemoteDHPublic: remote})
		idx = len(work.SkippedChains) - 1
	}

	count := toN - work.Nr
	if uint32(len(work.SkippedChains[idx].Entries))+count > MaxMessageSkipPerChain {
		return fmt.Errorf("ratchet: %w: chain skip limit exceeded", apperr.ErrTooManySkipped)
	}

	for work.Nr < toN {
		mk, nextCK := kdfCK(work.RecvChainKey)
		work.SkippedChains[idx].Entries = append(work.SkippedChains[idx].Entries, domaintypes.SkippedMessageKey{N: work.Nr, MK: mk})
		work.RecvChainKey = nextCK
		work.Nr++
	}
	return nil
}

// takeSkipped removes and returns the cached message key for (remoteDHPublic, n).
func takeSkipped(work *domaintypes.RatchetState, remoteDHPublic []byte, n uint32) ([]byte, bool) {
	idx := findChain(work, remoteDHPublic)
	if idx == -1 {
		return nil, false
	}
	entries := work.SkippedChains[idx].Entries
	for i, e := range entries {
		if e.N == n {
			mk := e.MK
			work.SkippedChains[idx].Entries = append(entries[:i], entries[i+1:]...)
			return mk, true
		}
	}
	return nil, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
