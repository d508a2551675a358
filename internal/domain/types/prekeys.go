package types

// SignedPreKeyID identifies a signed pre-key with the spec's 32-bit id space.
type SignedPreKeyID uint32

// OneTimePreKeyID identifies a one-time pre-key with the spec's 32-bit id space.
type OneTimePreKeyID uint32

// SignedPreKeyPair is the full (private+public) medium-lived DH pre-key
// stored locally, signed under the owning identity's signing key.
type SignedPreKeyPair struct {
	ID        SignedPreKeyID `json:"id"`
	Priv      DHPrivateKey   `json:"priv"`
	Pub       DHPublicKey    `json:"pub"`
	Signature []byte         `json:"signature"`
	CreatedAt int64          `json:"created_at"`
}

// OneTimePreKeyPair is the full (private+public) single-use DH pre-key
// stored locally. Erased on first successful use as session initiator
// material (spec.md §3).
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv DHPrivateKey    `json:"priv"`
	Pub  DHPublicKey     `json:"pub"`
}

// OneTimePreKeyPublic is only the public half, as published in a bundle.
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub DHPublicKey     `json:"pub"`
}

// PreKeyBundle is the set of public keys published for a device so a peer
// can run the X3DH sender path against it (spec.md §4.D).
type PreKeyBundle struct {
	Curve           CurveID              `json:"curve"`
	DeviceID        Username             `json:"device_id"`
	IdentityKey     DHPublicKey          `json:"identity_key"`
	SigningKey      SigningPublicKey     `json:"signing_key"`
	SignedPreKeyID  SignedPreKeyID       `json:"signed_pre_key_id"`
	SignedPreKey    DHPublicKey          `json:"signed_pre_key"`
	SignedPreKeySig []byte               `json:"signed_pre_key_signature"`
	OneTimePreKey   *OneTimePreKeyPublic `json:"one_time_pre_key,omitempty"`
}

// PreKeyMessage carries the X3DH init header prepended to the first
// message of a session (spec.md §4.D step 7).
type PreKeyMessage struct {
	InitiatorIdentityKey DHPublicKey     `json:"initiator_identity_key"`
	EphemeralKey         DHPublicKey     `json:"ephemeral_key"`
	SignedPreKeyID       SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID      OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
	HasOneTimePreKey     bool            `json:"has_one_time_pre_key"`
}
