package x3dhcodec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/itechstro/lime/internal/cryptosuite"
)

// MessageType identifies the body layout following the 3-byte header.
type MessageType byte

const (
	Version byte = 0x01

	MsgRegisterUser  MessageType = 0x01
	MsgDeleteUser    MessageType = 0x02
	MsgPostSPK       MessageType = 0x03
	MsgPostOPKs      MessageType = 0x04
	MsgGetPeerBundle MessageType = 0x05
	MsgPeerBundle    MessageType = 0x06
	MsgError         MessageType = 0xff
)

const headerSize = 3

var (
	ErrShortMessage  = errors.New("x3dhcodec: message shorter than header")
	ErrBadVersion    = errors.New("x3dhcodec: unsupported version")
	ErrTruncated     = errors.New("x3dhcodec: body truncated")
	ErrTrailingBytes = errors.New("x3dhcodec: trailing bytes after body")
)

// Header is the common 3-byte prefix of every wire message.
type Header struct {
	Version byte
	Type    MessageType
	Curve   cryptosuite.CurveID
}

// PeekHeader parses and validates the 3-byte header without touching the body.
func PeekHeader(data []byte) (Header, []byte, error) {
	if len(data) < headerSize {
		return Header{}, nil, ErrShortMessage
	}
	h := Header{Version: data[0], Type: MessageType(data[1]), Curve: cryptosuite.CurveID(data[2])}
	if h.Version != Version {
		return Header{}, nil, fmt.Errorf("%w: got 0x%02x", ErrBadVersion, h.Version)
	}
	if h.Type != MsgError {
		if _, err := cryptosuite.ForCurve(h.Curve); err != nil {
			return Header{}, nil, err
		}
	}
	return h, data[headerSize:], nil
}

func putHeader(buf []byte, msgType MessageType, curve cryptosuite.CurveID) []byte {
	return append(buf, Version, byte(msgType), byte(curve))
}

// EncodeRegisterUser builds a registerUser (0x01) message.
func EncodeRegisterUser(curve cryptosuite.CurveID, identityKey []byte) []byte {
	out := putHeader(make([]byte, 0, headerSize+len(identityKey)), MsgRegisterUser, curve)
	return append(out, identityKey...)
}

// DecodeRegisterUser parses a registerUser body.
func DecodeRegisterUser(h Header, body []byte) (identityKey []byte, err error) {
	suite, err := cryptosuite.ForCurve(h.Curve)
	if err != nil {
		return nil, err
	}
	if len(body) != suite.DHPublicKeySize() {
		return nil, ErrTruncated
	}
	return body, nil
}

// EncodeDeleteUser builds a deleteUser (0x02) message; the body is empty,
// the acting device is identified by the transport's "From" header.
func EncodeDeleteUser(curve cryptosuite.CurveID) []byte {
	return putHeader(make([]byte, 0, headerSize), MsgDeleteUser, curve)
}

// DecodeDeleteUser validates that the body of a deleteUser message is empty.
func DecodeDeleteUser(body []byte) error {
	if len(body) != 0 {
		return ErrTrailingBytes
	}
	return nil
}

// EncodePostSPK builds a postSPK (0x03) message:
// SPK_public || SPK_signature || SPK_id(4, BE).
func EncodePostSPK(curve cryptosuite.CurveID, spkPublic, spkSignature []byte, spkID uint32) []byte {
	out := putHeader(make([]byte, 0, headerSize+len(spkPublic)+len(spkSignature)+4), MsgPostSPK, curve)
	out = append(out, spkPublic...)
	out = append(out, spkSignature...)
	out = binary.BigEndian.AppendUint32(out, spkID)
	return out
}

// DecodePostSPK parses a postSPK body.
func DecodePostSPK(h Header, body []byte) (spkPublic, spkSignature []byte, spkID uint32, err error) {
	suite, err := cryptosuite.ForCurve(h.Curve)
	if err != nil {
		return nil, nil, 0, err
	}
	want := suite.DHPublicKeySize() + suite.SignatureSize() + 4
	if len(body) != want {
		return nil, nil, 0, ErrTruncated
	}
	off := suite.DHPublicKeySize()
	spkPublic = body[:off]
	spkSignature = body[off : off+suite.SignatureSize()]
	spkID = binary.BigEndian.Uint32(body[off+suite.SignatureSize():])
	return spkPublic, spkSignature, spkID, nil
}

// OPKEntry is one one-time pre-key public plus its id.
type OPKEntry struct {
	Public []byte
	ID     uint32
}

// EncodePostOPKs builds a postOPKs (0x04) message:
// count(2, BE) || (OPK_public || OPK_id(4, BE)) × count.
func EncodePostOPKs(curve cryptosuite.CurveID, opks []OPKEntry) []byte {
	out := putHeader(make([]byte, 0, headerSize+2), MsgPostOPKs, curve)
	out = binary.BigEndian.AppendUint16(out, uint16(len(opks)))
	for _, o := range opks {
		out = append(out, o.Public...)
		out = binary.BigEndian.AppendUint32(out, o.ID)
	}
	return out
}

// DecodePostOPKs parses a postOPKs body.
func DecodePostOPKs(h Header, body []byte) ([]OPKEntry, error) {
	suite, err := cryptosuite.ForCurve(h.Curve)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, ErrTruncated
	}
	count := int(binary.BigEndian.Uint16(body))
	body = body[2:]
	entrySize := suite.DHPublicKeySize() + 4
	if len(body) != count*entrySize {
		return nil, ErrTruncated
	}
	out := make([]OPKEntry, count)
	for i := 0; i < count; i++ {
		chunk := body[i*entrySize : (i+1)*entrySize]
		out[i] = OPKEntry{
			Public: chunk[:suite.DHPublicKeySize()],
			ID:     binary.BigEndian.Uint32(chunk[suite.DHPublicKeySize():]),
		}
	}
	return out, nil
}

// EncodeGetPeerBundle builds a getPeerBundle (0x05) message:
// count(2, BE) || (device_id_len(2, BE) || device_id) × count.
func EncodeGetPeerBundle(curve cryptosuite.CurveID, deviceIDs []string) []byte {
	out := putHeader(make([]byte, 0, headerSize+2), MsgGetPeerBundle, curve)
	out = binary.BigEndian.AppendUint16(out, uint16(len(deviceIDs)))
	for _, id := range deviceIDs {
		out = binary.BigEndian.AppendUint16(out, uint16(len(id)))
		out = append(out, id...)
	}
	return out
}

// DecodeGetPeerBundle parses a getPeerBundle body.
func DecodeGetPeerBundle(body []byte) ([]string, error) {
	if len(body) < 2 {
		return nil, ErrTruncated
	}
	count := int(binary.BigEndian.Uint16(body))
	body = body[2:]
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(body) < 2 {
			return nil, ErrTruncated
		}
		n := int(binary.BigEndian.Uint16(body))
		body = body[2:]
		if len(body) < n {
			return nil, ErrTruncated
		}
		out = append(out, string(body[:n]))
		body = body[n:]
	}
	if len(body) != 0 {
		return nil, ErrTrailingBytes
	}
	return out, nil
}

// PeerBundleEntry is one device's pre-key bundle as carried on the wire.
type PeerBundleEntry struct {
	DeviceID  string
	HasOPK    bool
	IK        []byte
	SPK       []byte
	SPKID     uint32
	SPKSig    []byte
	OPK       []byte
	OPKID     uint32
}

// EncodePeerBundle builds a peerBundle (0x06) response message.
func EncodePeerBundle(curve cryptosuite.CurveID, entries []PeerBundleEntry) []byte {
	out := putHeader(make([]byte, 0, headerSize+2), MsgPeerBundle, curve)
	out = binary.BigEndian.AppendUint16(out, uint16(len(entries)))
	for _, e := range entries {
		out = binary.BigEndian.AppendUint16(out, uint16(len(e.DeviceID)))
		out = append(out, e.DeviceID...)
		if e.HasOPK {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		out = append(out, e.IK...)
		out = append(out, e.SPK...)
		out = binary.BigEndian.AppendUint32(out, e.SPKID)
		out = append(out, e.SPKSig...)
		if e.HasOPK {
			out = append(out, e.OPK...)
			out = binary.BigEndian.AppendUint32(out, e.OPKID)
		}
	}
	return out
}

// DecodePeerBundle parses a peerBundle body.
func DecodePeerBundle(h Header, body []byte) ([]PeerBundleEntry, error) {
	suite, err := cryptosuite.ForCurve(h.Curve)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, ErrTruncated
	}
	count := int(binary.BigEndian.Uint16(body))
	body = body[2:]
	out := make([]PeerBundleEntry, 0, count)
	ikSize, sigSize := suite.DHPublicKeySize(), suite.SignatureSize()
	for i := 0; i < count; i++ {
		if len(body) < 2 {
			return nil, ErrTruncated
		}
		n := int(binary.BigEndian.Uint16(body))
		body = body[2:]
		if len(body) < n+1 {
			return nil, ErrTruncated
		}
		var e PeerBundleEntry
		e.DeviceID = string(body[:n])
		body = body[n:]
		e.HasOPK = body[0] == 1
		body = body[1:]

		fixed := ikSize + ikSize + 4 + sigSize
		if len(body) < fixed {
			return nil, ErrTruncated
		}
		e.IK = body[:ikSize]
		body = body[ikSize:]
		e.SPK = body[:ikSize]
		body = body[ikSize:]
		e.SPKID = binary.BigEndian.Uint32(body)
		body = body[4:]
		e.SPKSig = body[:sigSize]
		body = body[sigSize:]

		if e.HasOPK {
			if len(body) < ikSize+4 {
				return nil, ErrTruncated
			}
			e.OPK = body[:ikSize]
			body = body[ikSize:]
			e.OPKID = binary.BigEndian.Uint32(body)
			body = body[4:]
		}
		out = append(out, e)
	}
	if len(body) != 0 {
		return nil, ErrTrailingBytes
	}
	return out, nil
}

// EncodeError builds an error (0xff) message: code(1) || optional message.
// curve_id is meaningless for errors but the header slot is still present;
// it is encoded as 0x00.
func EncodeError(code byte, message string) []byte {
	out := putHeader(make([]byte, 0, headerSize+1+len(message)), MsgError, 0x00)
	out = append(out, code)
	return append(out, message...)
}

// DecodeError parses an error body.
func DecodeError(body []byte) (code byte, message string, err error) {
	if len(body) < 1 {
		return 0, "", ErrTruncated
	}
	return body[0], string(body[1:]), nil
}
