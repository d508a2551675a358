package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	domain "github.com/itechstro/lime/internal/domain"
	"github.com/itechstro/lime/internal/protocol/x3dhcodec"
)

// contentType is the media type of every request/response body: a single
// x3dhcodec wire message (spec.md §6).
const contentType = "x3dh/octet-stream"

// HTTP is the net/http implementation of domain.RelayClient: every call
// posts one x3dhcodec message and, where the operation has a response,
// decodes one back (spec.md §6 EXTERNAL INTERFACES).
type HTTP struct {
	Base   string
	Client *http.Client
	Curve  domain.CurveID

	// From identifies the local device on every outgoing request via the
	// "From" header, per spec.md §6.
	From domain.Username
}

// NewHTTP returns a relay client rooted at base for device from's traffic
// under curve.
func NewHTTP(base string, from domain.Username, curve domain.CurveID) *HTTP {
	return &HTTP{Base: base, Client: http.DefaultClient, Curve: curve, From: from}
}

func (c *HTTP) do(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("From", c.From.String())
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		if h, rest, perr := x3dhcodec.PeekHeader(out); perr == nil && h.Type == x3dhcodec.MsgError {
			code, msg, derr := x3dhcodec.DecodeError(rest)
			if derr == nil {
				return nil, fmt.Errorf("relay %s: code %d: %s", path, code, msg)
			}
		}
		return nil, fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	return out, nil
}

// RegisterPreKeyBundle publishes the bundle in up to three requests, since
// the wire protocol has no combined message type: a registerUser message
// carrying the identity key, then postSPK, then, only when the bundle
// carries a one-time pre-key, postOPKs with that single key.
func (c *HTTP) RegisterPreKeyBundle(ctx context.Context, bundle domain.PreKeyBundle) error {
	if _, err := c.do(ctx, "/register", x3dhcodec.EncodeRegisterUser(bundle.Curve, bundle.IdentityKey.Slice())); err != nil {
		return err
	}
	if err := c.PostSignedPreKey(ctx, bundle.DeviceID, domain.SignedPreKeyPair{
		ID:        bundle.SignedPreKeyID,
		Pub:       bundle.SignedPreKey,
		Signature: bundle.SignedPreKeySig,
	}); err != nil {
		return err
	}
	if bundle.OneTimePreKey != nil {
		return c.PostOneTimePreKeys(ctx, bundle.DeviceID, []domain.OneTimePreKeyPublic{*bundle.OneTimePreKey})
	}
	return nil
}

// DeleteUser removes the acting device's account from the relay.
func (c *HTTP) DeleteUser(ctx context.Context, deviceID domain.Username) error {
	_, err := c.do(ctx, "/user/delete", x3dhcodec.EncodeDeleteUser(c.Curve))
	return err
}

// PostSignedPreKey publishes a fresh signed pre-key.
func (c *HTTP) PostSignedPreKey(ctx context.Context, deviceID domain.Username, pair domain.SignedPreKeyPair) error {
	body := x3dhcodec.EncodePostSPK(c.Curve, pair.Pub.Slice(), pair.Signature, uint32(pair.ID))
	_, err := c.do(ctx, "/spk", body)
	return err
}

// PostOneTimePreKeys publishes a batch of one-time pre-keys.
func (c *HTTP) PostOneTimePreKeys(ctx context.Context, deviceID domain.Username, pubs []domain.OneTimePreKeyPublic) error {
	entries := make([]x3dhcodec.OPKEntry, len(pubs))
	for i, p := range pubs {
		entries[i] = x3dhcodec.OPKEntry{Public: p.Pub.Slice(), ID: uint32(p.ID)}
	}
	_, err := c.do(ctx, "/opks", x3dhcodec.EncodePostOPKs(c.Curve, entries))
	return err
}

// FetchPeerBundle fetches a single peer's pre-key bundle. The request may
// be cancelled via ctx; net/http aborts the in-flight round trip and do
// returns ctx.Err() to the caller (spec.md §5).
func (c *HTTP) FetchPeerBundle(ctx context.Context, deviceID domain.Username) (domain.PreKeyBundle, error) {
	req := x3dhcodec.EncodeGetPeerBundle(c.Curve, []string{deviceID.String()})
	out, err := c.do(ctx, "/bundle", req)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	h, rest, err := x3dhcodec.PeekHeader(out)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	entries, err := x3dhcodec.DecodePeerBundle(h, rest)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if len(entries) == 0 {
		return domain.PreKeyBundle{}, fmt.Errorf("relay: no bundle for %s", deviceID)
	}
	return peerBundleEntryToDomain(h.Curve, entries[0]), nil
}

func peerBundleEntryToDomain(curve domain.CurveID, e x3dhcodec.PeerBundleEntry) domain.PreKeyBundle {
	b := domain.PreKeyBundle{
		Curve:           curve,
		DeviceID:        domain.Username(e.DeviceID),
		IdentityKey:     domain.NewDHPublicKey(curve, e.IK),
		SignedPreKeyID:  domain.SignedPreKeyID(e.SPKID),
		SignedPreKey:    domain.NewDHPublicKey(curve, e.SPK),
		SignedPreKeySig: e.SPKSig,
	}
	if e.HasOPK {
		b.OneTimePreKey = &domain.OneTimePreKeyPublic{
			ID:  domain.OneTimePreKeyID(e.OPKID),
			Pub: domain.NewDHPublicKey(curve, e.OPK),
		}
	}
	return b
}

// SendMessage posts an encrypted envelope to the relay's mailbox for env.To.
func (c *HTTP) SendMessage(ctx context.Context, envelope domain.Envelope) error {
	_, err := c.do(ctx, "/messages/send", x3dhcodec.EncodeSendEnvelope(envelope))
	return err
}

// FetchMessages retrieves up to limit queued envelopes for deviceID, oldest first.
func (c *HTTP) FetchMessages(ctx context.Context, deviceID domain.Username, limit int) ([]domain.Envelope, error) {
	out, err := c.do(ctx, "/messages/fetch", x3dhcodec.EncodeFetchEnvelopes(c.Curve, limit))
	if err != nil {
		return nil, err
	}
	_, rest, err := x3dhcodec.PeekHeader(out)
	if err != nil {
		return nil, err
	}
	return x3dhcodec.DecodeEnvelopeList(rest)
}

// AckMessages acknowledges the first count queued envelopes for deviceID,
// removing them from the relay's mailbox.
func (c *HTTP) AckMessages(ctx context.Context, deviceID domain.Username, count int) error {
	_, err := c.do(ctx, "/messages/ack", x3dhcodec.EncodeAck(c.Curve, count))
	return err
}

var _ domain.RelayClient = (*HTTP)(nil)
