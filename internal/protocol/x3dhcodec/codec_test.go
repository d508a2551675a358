package x3dhcodec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itechstro/lime/internal/cryptosuite"
	"github.com/itechstro/lime/internal/protocol/x3dhcodec"
)

func fill(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestRegisterUserRoundTrip(t *testing.T) {
	for _, curve := range []cryptosuite.CurveID{cryptosuite.Curve255, cryptosuite.Curve448} {
		suite, err := cryptosuite.ForCurve(curve)
		require.NoError(t, err)

		ik := fill(suite.DHPublicKeySize(), 0x11)
		wire := x3dhcodec.EncodeRegisterUser(curve, ik)

		h, body, err := x3dhcodec.PeekHeader(wire)
		require.NoError(t, err)
		require.Equal(t, x3dhcodec.MsgRegisterUser, h.Type)
		require.Equal(t, curve, h.Curve)

		got, err := x3dhcodec.DecodeRegisterUser(h, body)
		require.NoError(t, err)
		require.Equal(t, ik, got)
	}
}

func TestDeleteUserRoundTrip(t *testing.T) {
	wire := x3dhcodec.EncodeDeleteUser(cryptosuite.Curve255)
	h, body, err := x3dhcodec.PeekHeader(wire)
	require.NoError(t, err)
	require.Equal(t, x3dhcodec.MsgDeleteUser, h.Type)
	require.NoError(t, x3dhcodec.DecodeDeleteUser(body))
}

func TestPostSPKRoundTrip(t *testing.T) {
	for _, curve := range []cryptosuite.CurveID{cryptosuite.Curve255, cryptosuite.Curve448} {
		suite, err := cryptosuite.ForCurve(curve)
		require.NoError(t, err)

		pub := fill(suite.DHPublicKeySize(), 0x22)
		sig := fill(suite.SignatureSize(), 0x33)
		wire := x3dhcodec.EncodePostSPK(curve, pub, sig, 42)

		h, body, err := x3dhcodec.PeekHeader(wire)
		require.NoError(t, err)
		gotPub, gotSig, id, err := x3dhcodec.DecodePostSPK(h, body)
		require.NoError(t, err)
		require.Equal(t, pub, gotPub)
		require.Equal(t, sig, gotSig)
		require.EqualValues(t, 42, id)
	}
}

func TestPostOPKsRoundTrip(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)

	entries := []x3dhcodec.OPKEntry{
		{Public: fill(suite.DHPublicKeySize(), 0x01), ID: 1},
		{Public: fill(suite.DHPublicKeySize(), 0x02), ID: 2},
	}
	wire := x3dhcodec.EncodePostOPKs(cryptosuite.Curve255, entries)

	h, body, err := x3dhcodec.PeekHeader(wire)
	require.NoError(t, err)
	got, err := x3dhcodec.DecodePostOPKs(h, body)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestGetPeerBundleRoundTrip(t *testing.T) {
	ids := []string{"alice-phone", "bob-laptop"}
	wire := x3dhcodec.EncodeGetPeerBundle(cryptosuite.Curve255, ids)

	h, body, err := x3dhcodec.PeekHeader(wire)
	require.NoError(t, err)
	require.Equal(t, x3dhcodec.MsgGetPeerBundle, h.Type)
	got, err := x3dhcodec.DecodeGetPeerBundle(body)
	require.NoError(t, err)
	require.Equal(t, ids, got)
}

func TestPeerBundleRoundTrip(t *testing.T) {
	for _, curve := range []cryptosuite.CurveID{cryptosuite.Curve255, cryptosuite.Curve448} {
		suite, err := cryptosuite.ForCurve(curve)
		require.NoError(t, err)

		entries := []x3dhcodec.PeerBundleEntry{
			{
				DeviceID: "alice-phone",
				HasOPK:   true,
				IK:       fill(suite.DHPublicKeySize(), 0xa1),
				SPK:      fill(suite.DHPublicKeySize(), 0xa2),
				SPKID:    7,
				SPKSig:   fill(suite.SignatureSize(), 0xa3),
				OPK:      fill(suite.DHPublicKeySize(), 0xa4),
				OPKID:    9,
			},
			{
				DeviceID: "bob-laptop",
				HasOPK:   false,
				IK:       fill(suite.DHPublicKeySize(), 0xb1),
				SPK:      fill(suite.DHPublicKeySize(), 0xb2),
				SPKID:    11,
				SPKSig:   fill(suite.SignatureSize(), 0xb3),
			},
		}
		wire := x3dhcodec.EncodePeerBundle(curve, entries)

		h, body, err := x3dhcodec.PeekHeader(wire)
		require.NoError(t, err)
		got, err := x3dhcodec.DecodePeerBundle(h, body)
		require.NoError(t, err)
		require.Equal(t, entries, got)
	}
}

func TestErrorRoundTrip(t *testing.T) {
	wire := x3dhcodec.EncodeError(0x02, "user_already_in")
	h, body, err := x3dhcodec.PeekHeader(wire)
	require.NoError(t, err)
	require.Equal(t, x3dhcodec.MsgError, h.Type)
	code, msg, err := x3dhcodec.DecodeError(body)
	require.NoError(t, err)
	require.EqualValues(t, 0x02, code)
	require.Equal(t, "user_already_in", msg)
}

func TestPeekHeaderRejectsBadVersion(t *testing.T) {
	wire := x3dhcodec.EncodeDeleteUser(cryptosuite.Curve255)
	wire[0] = 0x02
	_, _, err := x3dhcodec.PeekHeader(wire)
	require.ErrorIs(t, err, x3dhcodec.ErrBadVersion)
}

func TestPeekHeaderRejectsShortMessage(t *testing.T) {
	_, _, err := x3dhcodec.PeekHeader([]byte{0x01, 0x02})
	require.ErrorIs(t, err, x3dhcodec.ErrShortMessage)
}
