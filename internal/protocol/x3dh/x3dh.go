package x3dh

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/itechstro/lime/internal/apperr"
	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/util/memzero"
)

const (
	skInfo = "X3DH-SK-info"
	adInfo = "X3DH-AD-info"
)

// SenderResult is the outcome of EstablishAsSender: the material needed to
// seed a Double Ratchet session with the remote DH already known
// (spec.md §4.D step 8 — "remote DH = SPK_peer, no local DH yet").
type SenderResult struct {
	RootKey          []byte
	AssociatedData   []byte
	RemoteDH         domaintypes.DHPublicKey
	InitHeader       []byte
	SignedPreKeyID   domaintypes.SignedPreKeyID
	OneTimePreKeyID  domaintypes.OneTimePreKeyID
	HasOneTimePreKey bool
}

// ReceiverResult is the outcome of EstablishAsReceiver: the material needed
// to seed a Double Ratchet session with the local DH pair already known
// (spec.md §4.D step 5 — "local DH = SPK pair, no remote DH yet").
type ReceiverResult struct {
	RootKey             []byte
	AssociatedData      []byte
	LocalDHPriv         domaintypes.DHPrivateKey
	LocalDHPub          domaintypes.DHPublicKey
	SenderIdentityKey   domaintypes.DHPublicKey
	SenderEphemeralKey  domaintypes.DHPublicKey
	SignedPreKeyID      domaintypes.SignedPreKeyID
	OneTimePreKeyID     domaintypes.OneTimePreKeyID
	ConsumedOneTimePreKey bool
}

// VerifySignedPreKey checks SPK_sig over SPK_peer under the peer's signing
// key (spec.md §4.D sender step 1).
func VerifySignedPreKey(suite cryptosuite.Suite, bundle domaintypes.PreKeyBundle) bool {
	return suite.Verify(bundle.SigningKey.Slice(), bundle.SignedPreKey.Slice(), bundle.SignedPreKeySig)
}

// EstablishAsSender runs the X3DH sender path (spec.md §4.D) against a
// fetched peer bundle, using a fresh ephemeral key pair drawn from rand.
func EstablishAsSender(
	suite cryptosuite.Suite,
	rand io.Reader,
	selfIdentityPriv domaintypes.DHPrivateKey,
	selfIdentityPub domaintypes.DHPublicKey,
	bundle domaintypes.PreKeyBundle,
	selfDeviceID, peerDeviceID domaintypes.Username,
) (*SenderResult, error) {
	if !VerifySignedPreKey(suite, bundle) {
		return nil, fmt.Errorf("x3dh: %w", apperr.ErrSignatureInvalid)
	}

	ephPriv, ephPub, err := suite.GenerateDHKeyPair(rand)
	if err != nil {
		return nil, fmt.Errorf("x3dh: generate ephemeral key: %w", err)
	}
	defer memzero.Zero(ephPriv)

	dh1, err := suite.DH(selfIdentityPriv.Slice(), bundle.SignedPreKey.Slice())
	if err != nil {
		return nil, fmt.Errorf("x3dh: DH1: %w", err)
	}
	dh2, err := suite.DH(ephPriv, bundle.IdentityKey.Slice())
	if err != nil {
		return nil, fmt.Errorf("x3dh: DH2: %w", err)
	}
	dh3, err := suite.DH(ephPriv, bundle.SignedPreKey.Slice())
	if err != nil {
		return nil, fmt.Errorf("x3dh: DH3: %w", err)
	}

	var dh4 []byte
	hasOPK := bundle.OneTimePreKey != nil
	if hasOPK {
		dh4, err = suite.DH(ephPriv, bundle.OneTimePreKey.Pub.Slice())
		if err != nil {
			return nil, fmt.Errorf("x3dh: DH4: %w", err)
		}
	}

	sk, err := deriveSK(suite, dh1, dh2, dh3, dh4)
	if err != nil {
		return nil, err
	}

	ad, err := deriveAD(
		suite,
		selfIdentityPub.Slice(), bundle.IdentityKey.Slice(),
		[]byte(selfDeviceID.String()), []byte(peerDeviceID.String()),
	)
	if err != nil {
		return nil, err
	}

	var opkID domaintypes.OneTimePreKeyID
	if hasOPK {
		opkID = bundle.OneTimePreKey.ID
	}
	initHeader := BuildInitHeader(selfIdentityPub, domaintypes.NewDHPublicKey(suite.ID(), ephPub), bundle.SignedPreKeyID, opkID, hasOPK)

	return &SenderResult{
		RootKey:          sk,
		AssociatedData:   ad,
		RemoteDH:         bundle.SignedPreKey,
		InitHeader:       initHeader,
		SignedPreKeyID:   bundle.SignedPreKeyID,
		OneTimePreKeyID:  opkID,
		HasOneTimePreKey: hasOPK,
	}, nil
}

// deriveSK derives the X3DH shared secret SK = HKDF-SHA512(salt=0^64,
// ikm = F || DH1 || DH2 || DH3 [|| DH4], info="X3DH-SK-info")[0:32]
// (spec.md §4.D step 5). F is a run of 0xFF bytes the length of one DH
// public key for this suite.
func deriveSK(suite cryptosuite.Suite, dh1, dh2, dh3, dh4 []byte) ([]byte, error) {
	f := make([]byte, suite.DHPublicKeySize())
	for i := range f {
		f[i] = 0xff
	}
	ikm := make([]byte, 0, len(f)+len(dh1)+len(dh2)+len(dh3)+len(dh4))
	ikm = append(ikm, f...)
	ikm = append(ikm, dh1...)
	ikm = append(ikm, dh2...)
	ikm = append(ikm, dh3...)
	if dh4 != nil {
		ikm = append(ikm, dh4...)
	}
	defer memzero.Zero(ikm)

	sk, err := cryptosuite.HKDFSHA512(ikm, cryptosuite.ZeroSalt64, []byte(skInfo), 32)
	if err != nil {
		return nil, fmt.Errorf("x3dh: derive SK: %w", err)
	}
	return sk, nil
}

// deriveAD derives AD = HKDF-SHA512(salt=0^64, ikm = IK_initiator ||
// IK_responder || DID_initiator || DID_responder, info="X3DH-AD-info")[0:32]
// (spec.md §4.D step 6). Both the sender and receiver path pass the
// initiator's and responder's material in the same order, so both sides
// arrive at the identical AD regardless of which one is computing it.
func deriveAD(
	suite cryptosuite.Suite,
	ikInitiator, ikResponder []byte,
	didInitiator, didResponder []byte,
) ([]byte, error) {
	ikm := make([]byte, 0, len(ikInitiator)+len(ikResponder)+len(didInitiator)+len(didResponder))
	ikm = append(ikm, ikInitiator...)
	ikm = append(ikm, ikResponder...)
	ikm = append(ikm, didInitiator...)
	ikm = append(ikm, didResponder...)

	ad, err := cryptosuite.HKDFSHA512(ikm, cryptosuite.ZeroSalt64, []byte(adInfo), 32)
	if err != nil {
		return nil, fmt.Errorf("x3dh: derive AD: %w", err)
	}
	return ad, nil
}

// BuildInitHeader encodes the X3DH initialization header prepended to the
// first outbound ciphertext (spec.md §4.D step 7):
// IK_self_public || EK_public || SPK_id(4,BE) || OPK_id(4,BE) || has_opk(1).
func BuildInitHeader(
	selfIdentityPub domaintypes.DHPublicKey,
	ephemeralPub domaintypes.DHPublicKey,
	spkID domaintypes.SignedPreKeyID,
	opkID domaintypes.OneTimePreKeyID,
	hasOPK bool,
) []byte {
	out := make([]byte, 0, len(selfIdentityPub.Slice())+len(ephemeralPub.Slice())+9)
	out = append(out, selfIdentityPub.Slice()...)
	out = append(out, ephemeralPub.Slice()...)
	out = binary.BigEndian.AppendUint32(out, uint32(spkID))
	if hasOPK {
		out = binary.BigEndian.AppendUint32(out, uint32(opkID))
	} else {
		out = binary.BigEndian.AppendUint32(out, 0)
	}
	if hasOPK {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

// ParsedInitHeader is the decoded form of an X3DH initialization header.
type ParsedInitHeader struct {
	SenderIdentityKey  []byte
	SenderEphemeralKey []byte
	SignedPreKeyID     domaintypes.SignedPreKeyID
	OneTimePreKeyID    domaintypes.OneTimePreKeyID
	HasOneTimePreKey   bool
	Rest               []byte
}

// ParseInitHeader decodes an X3DH initialization header from the front of
// data, returning the remainder (the Double Ratchet header and ciphertext).
func ParseInitHeader(suite cryptosuite.Suite, data []byte) (*ParsedInitHeader, error) {
	keySize := suite.DHPublicKeySize()
	need := keySize*2 + 9
	if len(data) < need {
		return nil, fmt.Errorf("x3dh: %w: init header truncated", apperr.ErrProtocolFormat)
	}
	ik := data[:keySize]
	ek := data[keySize : keySize*2]
	spkID := binary.BigEndian.Uint32(data[keySize*2 : keySize*2+4])
	opkID := binary.BigEndian.Uint32(data[keySize*2+4 : keySize*2+8])
	hasOPK := data[keySize*2+8] == 1

	return &ParsedInitHeader{
		SenderIdentityKey:  ik,
		SenderEphemeralKey: ek,
		SignedPreKeyID:     domaintypes.SignedPreKeyID(spkID),
		OneTimePreKeyID:    domaintypes.OneTimePreKeyID(opkID),
		HasOneTimePreKey:   hasOPK,
		Rest:               data[need:],
	}, nil
}

// EstablishAsReceiver runs the X3DH receiver path (spec.md §4.D) against a
// parsed initialization header, using the locally-held signed prekey pair
// and (if referenced) one-time prekey pair. The caller is responsible for
// erasing the one-time prekey from storage once this returns successfully.
func EstablishAsReceiver(
	suite cryptosuite.Suite,
	selfIdentityPriv domaintypes.DHPrivateKey,
	selfIdentityPub domaintypes.DHPublicKey,
	spk domaintypes.SignedPreKeyPair,
	opk *domaintypes.OneTimePreKeyPair,
	hdr *ParsedInitHeader,
	senderDeviceID, selfDeviceID domaintypes.Username,
) (*ReceiverResult, error) {
	if hdr.HasOneTimePreKey && opk == nil {
		return nil, fmt.Errorf("x3dh: %w: one-time prekey referenced but not supplied", apperr.ErrUnknownPreKey)
	}

	dh1, err := suite.DH(spk.Priv.Slice(), hdr.SenderIdentityKey)
	if err != nil {
		return nil, fmt.Errorf("x3dh: DH1: %w", err)
	}
	dh2, err := suite.DH(selfIdentityPriv.Slice(), hdr.SenderEphemeralKey)
	if err != nil {
		return nil, fmt.Errorf("x3dh: DH2: %w", err)
	}
	dh3, err := suite.DH(spk.Priv.Slice(), hdr.SenderEphemeralKey)
	if err != nil {
		return nil, fmt.Errorf("x3dh: DH3: %w", err)
	}

	var dh4 []byte
	consumedOPK := false
	if hdr.HasOneTimePreKey {
		dh4, err = suite.DH(opk.Priv.Slice(), hdr.SenderEphemeralKey)
		if err != nil {
			return nil, fmt.Errorf("x3dh: DH4: %w", err)
		}
		consumedOPK = true
	}

	sk, err := deriveSK(suite, dh1, dh2, dh3, dh4)
	if err != nil {
		return nil, err
	}

	ad, err := deriveAD(
		suite,
		hdr.SenderIdentityKey, selfIdentityPub.Slice(),
		[]byte(senderDeviceID.String()), []byte(selfDeviceID.String()),
	)
	if err != nil {
		return nil, err
	}

	return &ReceiverResult{
		RootKey:               sk,
		AssociatedData:        ad,
		LocalDHPriv:           spk.Priv,
		LocalDHPub:            spk.Pub,
		SenderIdentityKey:     domaintypes.NewDHPublicKey(suite.ID(), hdr.SenderIdentityKey),
		SenderEphemeralKey:    domaintypes.NewDHPublicKey(suite.ID(), hdr.SenderEphemeralKey),
		SignedPreKeyID:        hdr.SignedPreKeyID,
		OneTimePreKeyID:       hdr.OneTimePreKeyID,
		ConsumedOneTimePreKey: consumedOPK,
	}, nil
}
