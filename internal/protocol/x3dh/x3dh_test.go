package x3dh_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/protocol/x3dh"
)

type partyKeys struct {
	identityDHPriv domaintypes.DHPrivateKey
	identityDHPub  domaintypes.DHPublicKey
	signingPriv    []byte
	signingPub     []byte
}

func newParty(t *testing.T, suite cryptosuite.Suite) partyKeys {
	t.Helper()
	signingPriv, signingPub, err := suite.GenerateSigningKeyPair(rand.Reader)
	require.NoError(t, err)
	dhPriv, dhPub, err := suite.ConvertSigningToDH(signingPriv, signingPub)
	require.NoError(t, err)
	return partyKeys{
		identityDHPriv: domaintypes.NewDHPrivateKey(suite.ID(), dhPriv),
		identityDHPub:  domaintypes.NewDHPublicKey(suite.ID(), dhPub),
		signingPriv:    signingPriv,
		signingPub:     signingPub,
	}
}

func TestSenderReceiverAgreeOnRootKeyAndAD_WithOPK(t *testing.T) {
	for _, curveID := range []cryptosuite.CurveID{cryptosuite.Curve255, cryptosuite.Curve448} {
		suite, err := cryptosuite.ForCurve(curveID)
		require.NoError(t, err)

		alice := newParty(t, suite)
		bob := newParty(t, suite)

		spkPriv, spkPub, err := suite.GenerateDHKeyPair(rand.Reader)
		require.NoError(t, err)
		spkSig := suite.Sign(bob.signingPriv, spkPub)
		spkPair := domaintypes.SignedPreKeyPair{
			ID:        7,
			Priv:      domaintypes.NewDHPrivateKey(curveID, spkPriv),
			Pub:       domaintypes.NewDHPublicKey(curveID, spkPub),
			Signature: spkSig,
		}

		opkPriv, opkPub, err := suite.GenerateDHKeyPair(rand.Reader)
		require.NoError(t, err)
		opkPair := domaintypes.OneTimePreKeyPair{
			ID:   99,
			Priv: domaintypes.NewDHPrivateKey(curveID, opkPriv),
			Pub:  domaintypes.NewDHPublicKey(curveID, opkPub),
		}

		bundle := domaintypes.PreKeyBundle{
			Curve:           curveID,
			DeviceID:        "bob-laptop",
			IdentityKey:     bob.identityDHPub,
			SigningKey:      domaintypes.NewSigningPublicKey(curveID, bob.signingPub),
			SignedPreKeyID:  spkPair.ID,
			SignedPreKey:    spkPair.Pub,
			SignedPreKeySig: spkPair.Signature,
			OneTimePreKey:   &domaintypes.OneTimePreKeyPublic{ID: opkPair.ID, Pub: opkPair.Pub},
		}

		senderResult, err := x3dh.EstablishAsSender(
			suite, rand.Reader,
			alice.identityDHPriv, alice.identityDHPub,
			bundle,
			"alice-phone", "bob-laptop",
		)
		require.NoError(t, err)
		require.True(t, senderResult.HasOneTimePreKey)
		require.Len(t, senderResult.RootKey, 32)
		require.Len(t, senderResult.AssociatedData, 32)

		parsed, err := x3dh.ParseInitHeader(suite, senderResult.InitHeader)
		require.NoError(t, err)
		require.True(t, parsed.HasOneTimePreKey)
		require.Equal(t, spkPair.ID, parsed.SignedPreKeyID)
		require.Equal(t, opkPair.ID, parsed.OneTimePreKeyID)

		receiverResult, err := x3dh.EstablishAsReceiver(
			suite,
			bob.identityDHPriv, bob.identityDHPub,
			spkPair, &opkPair,
			parsed,
			"alice-phone", "bob-laptop",
		)
		require.NoError(t, err)
		require.True(t, receiverResult.ConsumedOneTimePreKey)

		require.Equal(t, senderResult.RootKey, receiverResult.RootKey)
		require.Equal(t, senderResult.AssociatedData, receiverResult.AssociatedData)
	}
}

func TestSenderReceiverAgree_WithoutOPK(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)

	alice := newParty(t, suite)
	bob := newParty(t, suite)

	spkPriv, spkPub, err := suite.GenerateDHKeyPair(rand.Reader)
	require.NoError(t, err)
	spkSig := suite.Sign(bob.signingPriv, spkPub)
	spkPair := domaintypes.SignedPreKeyPair{
		ID:        3,
		Priv:      domaintypes.NewDHPrivateKey(cryptosuite.Curve255, spkPriv),
		Pub:       domaintypes.NewDHPublicKey(cryptosuite.Curve255, spkPub),
		Signature: spkSig,
	}

	bundle := domaintypes.PreKeyBundle{
		Curve:           cryptosuite.Curve255,
		DeviceID:        "bob-laptop",
		IdentityKey:     bob.identityDHPub,
		SigningKey:      domaintypes.NewSigningPublicKey(cryptosuite.Curve255, bob.signingPub),
		SignedPreKeyID:  spkPair.ID,
		SignedPreKey:    spkPair.Pub,
		SignedPreKeySig: spkPair.Signature,
	}

	senderResult, err := x3dh.EstablishAsSender(
		suite, rand.Reader,
		alice.identityDHPriv, alice.identityDHPub,
		bundle,
		"alice-phone", "bob-laptop",
	)
	require.NoError(t, err)
	require.False(t, senderResult.HasOneTimePreKey)

	parsed, err := x3dh.ParseInitHeader(suite, senderResult.InitHeader)
	require.NoError(t, err)
	require.False(t, parsed.HasOneTimePreKey)

	receiverResult, err := x3dh.EstablishAsReceiver(
		suite,
		bob.identityDHPriv, bob.identityDHPub,
		spkPair, nil,
		parsed,
		"alice-phone", "bob-laptop",
	)
	require.NoError(t, err)
	require.False(t, receiverResult.ConsumedOneTimePreKey)
	require.Equal(t, senderResult.RootKey, receiverResult.RootKey)
	require.Equal(t, senderResult.AssociatedData, receiverResult.AssociatedData)
}

func TestEstablishAsSenderRejectsBadSignature(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)

	alice := newParty(t, suite)
	bob := newParty(t, suite)

	_, spkPub, err := suite.GenerateDHKeyPair(rand.Reader)
	require.NoError(t, err)

	bundle := domaintypes.PreKeyBundle{
		Curve:           cryptosuite.Curve255,
		DeviceID:        "bob-laptop",
		IdentityKey:     bob.identityDHPub,
		SigningKey:      domaintypes.NewSigningPublicKey(cryptosuite.Curve255, bob.signingPub),
		SignedPreKeyID:  1,
		SignedPreKey:    domaintypes.NewDHPublicKey(cryptosuite.Curve255, spkPub),
		SignedPreKeySig: []byte("not a valid signature at all, 64 bytes padded out 00000000000000"),
	}

	_, err = x3dh.EstablishAsSender(
		suite, rand.Reader,
		alice.identityDHPriv, alice.identityDHPub,
		bundle,
		"alice-phone", "bob-laptop",
	)
	require.Error(t, err)
}
