package ratchet_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itechstro/lime/internal/apperr"
	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/protocol/ratchet"
)

// seedPair builds a sender/receiver RatchetState pair sharing a root key and
// AD, as X3DH would produce: the sender knows only the responder's SPK
// public (remote DH); the responder knows only its own SPK pair (local DH).
func seedPair(t *testing.T, suite cryptosuite.Suite) (sender, receiver domaintypes.RatchetState) {
	t.Helper()
	rootKey := bytes.Repeat([]byte{0x42}, 32)
	ad := bytes.Repeat([]byte{0x24}, 32)

	spkPriv, spkPub, err := suite.GenerateDHKeyPair(rand.Reader)
	require.NoError(t, err)

	sender = ratchet.InitAsSender(suite.ID(), append([]byte{}, rootKey...), append([]byte{}, ad...), domaintypes.NewDHPublicKey(suite.ID(), spkPub), nil)
	receiver = ratchet.InitAsReceiver(suite.ID(), append([]byte{}, rootKey...), append([]byte{}, ad...), domaintypes.NewDHPrivateKey(suite.ID(), spkPriv), domaintypes.NewDHPublicKey(suite.ID(), spkPub))
	return sender, receiver
}

func TestRoundTrip_SendThenReply(t *testing.T) {
	for _, curveID := range []cryptosuite.CurveID{cryptosuite.Curve255, cryptosuite.Curve448} {
		suite, err := cryptosuite.ForCurve(curveID)
		require.NoError(t, err)

		alice, bob := seedPair(t, suite)

		header, ct, initHeader, err := ratchet.Encrypt(suite, rand.Reader, &alice, []byte("hello bob"))
		require.NoError(t, err)
		require.Nil(t, initHeader)

		pt, err := ratchet.Decrypt(suite, rand.Reader, &bob, header, ct)
		require.NoError(t, err)
		require.Equal(t, "hello bob", string(pt))

		// Bob replies on the sending chain his Decrypt above derived; Alice's
		// Decrypt of the reply performs her DH-ratchet step, since the
		// header carries Bob's DH public, which she has not seen before.
		replyHeader, replyCT, _, err := ratchet.Encrypt(suite, rand.Reader, &bob, []byte("hi alice"))
		require.NoError(t, err)

		replyPT, err := ratchet.Decrypt(suite, rand.Reader, &alice, replyHeader, replyCT)
		require.NoError(t, err)
		require.Equal(t, "hi alice", string(replyPT))
	}
}

func TestOutOfOrderDelivery(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)
	alice, bob := seedPair(t, suite)

	h1, ct1, _, err := ratchet.Encrypt(suite, rand.Reader, &alice, []byte("m1"))
	require.NoError(t, err)
	h2, ct2, _, err := ratchet.Encrypt(suite, rand.Reader, &alice, []byte("m2"))
	require.NoError(t, err)
	h3, ct3, _, err := ratchet.Encrypt(suite, rand.Reader, &alice, []byte("m3"))
	require.NoError(t, err)

	// m3 arrives first: m1 and m2 get cached as skipped keys.
	pt3, err := ratchet.Decrypt(suite, rand.Reader, &bob, h3, ct3)
	require.NoError(t, err)
	require.Equal(t, "m3", string(pt3))

	pt1, err := ratchet.Decrypt(suite, rand.Reader, &bob, h1, ct1)
	require.NoError(t, err)
	require.Equal(t, "m1", string(pt1))

	pt2, err := ratchet.Decrypt(suite, rand.Reader, &bob, h2, ct2)
	require.NoError(t, err)
	require.Equal(t, "m2", string(pt2))

	// Replaying m1 again must fail: the skipped key was consumed.
	_, err = ratchet.Decrypt(suite, rand.Reader, &bob, h1, ct1)
	require.ErrorIs(t, err, apperr.ErrOutOfOrderOrReplay)
}

func TestTamperedCiphertextFailsWithoutMutatingState(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)
	alice, bob := seedPair(t, suite)

	header, ct, _, err := ratchet.Encrypt(suite, rand.Reader, &alice, []byte("hello"))
	require.NoError(t, err)

	tampered := append([]byte{}, ct...)
	tampered[len(tampered)-1] ^= 0x01

	before := bob
	_, err = ratchet.Decrypt(suite, rand.Reader, &bob, header, tampered)
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
	require.Equal(t, before.Nr, bob.Nr)
	require.Equal(t, before.RootKey, bob.RootKey)

	pt, err := ratchet.Decrypt(suite, rand.Reader, &bob, header, ct)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))
}

func TestTooManySkipped(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)
	alice, bob := seedPair(t, suite)

	var last domaintypes.RatchetHeader
	var lastCT []byte
	for i := 0; i < ratchet.MaxMessageSkipPerChain+2; i++ {
		h, ct, _, err := ratchet.Encrypt(suite, rand.Reader, &alice, []byte("x"))
		require.NoError(t, err)
		last, lastCT = h, ct
	}

	_, err = ratchet.Decrypt(suite, rand.Reader, &bob, last, lastCT)
	require.ErrorIs(t, err, apperr.ErrTooManySkipped)
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, curveID := range []cryptosuite.CurveID{cryptosuite.Curve255, cryptosuite.Curve448} {
		suite, err := cryptosuite.ForCurve(curveID)
		require.NoError(t, err)
		_, pub, err := suite.GenerateDHKeyPair(rand.Reader)
		require.NoError(t, err)

		h := domaintypes.RatchetHeader{Curve: curveID, DHPublic: domaintypes.NewDHPublicKey(curveID, pub), PN: 3, N: 7}
		wire := ratchet.EncodeHeader(h)

		got, rest, err := ratchet.DecodeHeader(wire)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.Equal(t, h.Curve, got.Curve)
		require.Equal(t, h.DHPublic.Slice(), got.DHPublic.Slice())
		require.Equal(t, h.PN, got.PN)
		require.Equal(t, h.N, got.N)
	}
}
