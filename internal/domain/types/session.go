package types

// PeerDeviceStatus classifies a pinned peer identity (spec.md §3).
type PeerDeviceStatus int

const (
	PeerUntrusted PeerDeviceStatus = iota
	PeerTrusted
	PeerUntrustedMismatch
)

// PeerDevice is the trust-on-first-use pin record for a remote device.
type PeerDevice struct {
	RowID       int64            `json:"row_id"`
	DeviceID    Username         `json:"device_id"`
	IdentityKey DHPublicKey      `json:"identity_key"`
	Status      PeerDeviceStatus `json:"status"`
}

// Session is the X3DH-derived root key and metadata used to seed a Double
// Ratchet conversation with a peer device (spec.md §3/§4.D).
type Session struct {
	Curve                 CurveID        `json:"curve"`
	PeerDeviceID          Username       `json:"peer_device_id"`
	RootKey               []byte         `json:"root_key"`
	AssociatedData        []byte         `json:"associated_data"`
	PeerSignedPreKey      DHPublicKey    `json:"peer_signed_pre_key"`
	PeerIdentityKey       DHPublicKey    `json:"peer_identity_key"`
	CreatedUTC            int64          `json:"created_utc"`
	SignedPreKeyID        SignedPreKeyID `json:"signed_pre_key_id"`
	OneTimePreKeyID       OneTimePreKeyID `json:"one_time_pre_key_id"`
	HasOneTimePreKey      bool           `json:"has_one_time_pre_key"`
	InitiatorEphemeralKey DHPublicKey    `json:"initiator_ephemeral_key"`

	// Draining marks a superseded session retained only to let in-flight
	// messages finish decrypting (spec.md §4.F / §3 lifecycle).
	Draining        bool  `json:"draining"`
	DrainUntilUTC   int64 `json:"drain_until_utc,omitempty"`
}
