package x3dhcodec

import (
	"encoding/binary"

	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/protocol/ratchet"
)

// Message types carrying encrypted-message traffic, extending §4.C's
// register/publish/fetch/bundle set (spec.md §6: "Request bodies are the
// X3DH codec messages... wire format of encrypted message: header (§4.E)
// followed by AEAD ciphertext").
const (
	MsgSendEnvelope  MessageType = 0x07
	MsgFetchEnvelopes MessageType = 0x08
	MsgEnvelopeList  MessageType = 0x09
	MsgAck           MessageType = 0x0a
)

// EncodePreKeyMessage builds the X3DH init header of spec.md §4.D step 7:
// IK_self_public || EK_public || SPK_id(4,BE) || OPK_id(4,BE) || has_opk(1).
func EncodePreKeyMessage(pm domaintypes.PreKeyMessage) []byte {
	out := make([]byte, 0, len(pm.InitiatorIdentityKey.Slice())+len(pm.EphemeralKey.Slice())+9)
	out = append(out, pm.InitiatorIdentityKey.Slice()...)
	out = append(out, pm.EphemeralKey.Slice()...)
	out = binary.BigEndian.AppendUint32(out, uint32(pm.SignedPreKeyID))
	out = binary.BigEndian.AppendUint32(out, uint32(pm.OneTimePreKeyID))
	if pm.HasOneTimePreKey {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

// DecodePreKeyMessage parses a PreKeyMessage from the front of data for
// curve, returning the remainder.
func DecodePreKeyMessage(curve cryptosuite.CurveID, data []byte) (domaintypes.PreKeyMessage, []byte, error) {
	suite, err := cryptosuite.ForCurve(curve)
	if err != nil {
		return domaintypes.PreKeyMessage{}, nil, err
	}
	keySize := suite.DHPublicKeySize()
	need := 2*keySize + 9
	if len(data) < need {
		return domaintypes.PreKeyMessage{}, nil, ErrTruncated
	}
	ik := domaintypes.NewDHPublicKey(curve, data[:keySize])
	ek := domaintypes.NewDHPublicKey(curve, data[keySize:2*keySize])
	rest := data[2*keySize:]
	spkID := binary.BigEndian.Uint32(rest)
	opkID := binary.BigEndian.Uint32(rest[4:8])
	hasOPK := rest[8] == 1
	return domaintypes.PreKeyMessage{
		InitiatorIdentityKey: ik,
		EphemeralKey:         ek,
		SignedPreKeyID:       domaintypes.SignedPreKeyID(spkID),
		OneTimePreKeyID:      domaintypes.OneTimePreKeyID(opkID),
		HasOneTimePreKey:     hasOPK,
	}, rest[9:], nil
}

// EncodeEnvelope serialises an Envelope: from/to (length-prefixed),
// timestamp, the Double Ratchet header (ratchet.EncodeHeader), an optional
// X3DH init header, and the AEAD ciphertext.
func EncodeEnvelope(env domaintypes.Envelope) []byte {
	out := make([]byte, 0, 64+len(env.Cipher))
	out = appendString(out, env.From.String())
	out = appendString(out, env.To.String())
	out = binary.BigEndian.AppendUint64(out, uint64(env.Timestamp))
	out = append(out, ratchet.EncodeHeader(env.Header)...)
	if env.PreKey != nil {
		out = append(out, 1)
		out = append(out, EncodePreKeyMessage(*env.PreKey)...)
	} else {
		out = append(out, 0)
	}
	out = binary.BigEndian.AppendUint32(out, uint32(len(env.Cipher)))
	out = append(out, env.Cipher...)
	return out
}

// DecodeEnvelope parses an Envelope from the front of data, returning the remainder.
func DecodeEnvelope(data []byte) (domaintypes.Envelope, []byte, error) {
	from, rest, err := readString(data)
	if err != nil {
		return domaintypes.Envelope{}, nil, err
	}
	to, rest, err := readString(rest)
	if err != nil {
		return domaintypes.Envelope{}, nil, err
	}
	if len(rest) < 8 {
		return domaintypes.Envelope{}, nil, ErrTruncated
	}
	ts := int64(binary.BigEndian.Uint64(rest))
	rest = rest[8:]

	header, rest, err := ratchet.DecodeHeader(rest)
	if err != nil {
		return domaintypes.Envelope{}, nil, err
	}
	if len(rest) < 1 {
		return domaintypes.Envelope{}, nil, ErrTruncated
	}
	hasPreKey := rest[0] == 1
	rest = rest[1:]

	var preKey *domaintypes.PreKeyMessage
	if hasPreKey {
		pm, r, err := DecodePreKeyMessage(header.Curve, rest)
		if err != nil {
			return domaintypes.Envelope{}, nil, err
		}
		preKey, rest = &pm, r
	}

	if len(rest) < 4 {
		return domaintypes.Envelope{}, nil, ErrTruncated
	}
	n := int(binary.BigEndian.Uint32(rest))
	rest = rest[4:]
	if len(rest) < n {
		return domaintypes.Envelope{}, nil, ErrTruncated
	}
	cipher := rest[:n]
	rest = rest[n:]

	return domaintypes.Envelope{
		From:      domaintypes.Username(from),
		To:        domaintypes.Username(to),
		Header:    header,
		Cipher:    cipher,
		PreKey:    preKey,
		Timestamp: ts,
	}, rest, nil
}

// EncodeSendEnvelope builds a sendEnvelope (0x07) message.
func EncodeSendEnvelope(env domaintypes.Envelope) []byte {
	out := putHeader(make([]byte, 0, headerSize), MsgSendEnvelope, env.Header.Curve)
	return append(out, EncodeEnvelope(env)...)
}

// DecodeSendEnvelope parses a sendEnvelope body.
func DecodeSendEnvelope(body []byte) (domaintypes.Envelope, error) {
	env, rest, err := DecodeEnvelope(body)
	if err != nil {
		return domaintypes.Envelope{}, err
	}
	if len(rest) != 0 {
		return domaintypes.Envelope{}, ErrTrailingBytes
	}
	return env, nil
}

// EncodeFetchEnvelopes builds a fetchEnvelopes (0x08) message: limit(4, BE).
func EncodeFetchEnvelopes(curve cryptosuite.CurveID, limit int) []byte {
	out := putHeader(make([]byte, 0, headerSize+4), MsgFetchEnvelopes, curve)
	return binary.BigEndian.AppendUint32(out, uint32(limit))
}

// DecodeFetchEnvelopes parses a fetchEnvelopes body.
func DecodeFetchEnvelopes(body []byte) (limit int, err error) {
	if len(body) != 4 {
		return 0, ErrTruncated
	}
	return int(binary.BigEndian.Uint32(body)), nil
}

// EncodeEnvelopeList builds an envelopeList (0x09) response message.
func EncodeEnvelopeList(curve cryptosuite.CurveID, envs []domaintypes.Envelope) []byte {
	out := putHeader(make([]byte, 0, headerSize+2), MsgEnvelopeList, curve)
	out = binary.BigEndian.AppendUint16(out, uint16(len(envs)))
	for _, env := range envs {
		body := EncodeEnvelope(env)
		out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
		out = append(out, body...)
	}
	return out
}

// DecodeEnvelopeList parses an envelopeList body.
func DecodeEnvelopeList(body []byte) ([]domaintypes.Envelope, error) {
	if len(body) < 2 {
		return nil, ErrTruncated
	}
	count := int(binary.BigEndian.Uint16(body))
	body = body[2:]
	out := make([]domaintypes.Envelope, 0, count)
	for i := 0; i < count; i++ {
		if len(body) < 4 {
			return nil, ErrTruncated
		}
		n := int(binary.BigEndian.Uint32(body))
		body = body[4:]
		if len(body) < n {
			return nil, ErrTruncated
		}
		env, rest, err := DecodeEnvelope(body[:n])
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, ErrTrailingBytes
		}
		out = append(out, env)
		body = body[n:]
	}
	if len(body) != 0 {
		return nil, ErrTrailingBytes
	}
	return out, nil
}

// EncodeAck builds an ack (0x0a) message: count(4, BE).
func EncodeAck(curve cryptosuite.CurveID, count int) []byte {
	out := putHeader(make([]byte, 0, headerSize+4), MsgAck, curve)
	return binary.BigEndian.AppendUint32(out, uint32(count))
}

// DecodeAck parses an ack body.
func DecodeAck(body []byte) (count int, err error) {
	if len(body) != 4 {
		return 0, ErrTruncated
	}
	return int(binary.BigEndian.Uint32(body)), nil
}

func appendString(out []byte, s string) []byte {
	out = binary.BigEndian.AppendUint16(out, uint16(len(s)))
	return append(out, s...)
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, ErrTruncated
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return "", nil, ErrTruncated
	}
	return string(data[:n]), data[n:], nil
}
