package types

// RatchetHeader accompanies every ciphertext (spec.md §4.E):
// curve_id || DHs_public || PN || N, with an optional X3DH init header
// handled separately by the transport layer (see x3dhcodec).
type RatchetHeader struct {
	Curve    CurveID     `json:"curve"`
	DHPublic DHPublicKey `json:"dh_public"`
	PN       uint32      `json:"pn"`
	N        uint32      `json:"n"`
}

// SkippedMessageKey is one cached out-of-order message key, matched by its
// message number N within its SkippedChain.
type SkippedMessageKey struct {
	N  uint32 `json:"n"`
	MK []byte `json:"mk"`
}

// SkippedChain groups skipped message keys under the remote DH public they
// were produced against. Entries and chains are both kept in insertion
// (oldest-first) order so the bounded cache can evict the oldest first.
type SkippedChain struct {
	RemoteDHPublic []byte              `json:"remote_dh_public"`
	Entries        []SkippedMessageKey `json:"entries"`
}

// RatchetState is the runtime carrier of secret state for one
// (local device, peer device) Double Ratchet session (spec.md §3).
type RatchetState struct {
	Curve CurveID `json:"curve"`

	RootKey []byte `json:"root_key"`

	DHPriv    DHPrivateKey `json:"dh_priv"`
	DHPub     DHPublicKey  `json:"dh_pub"`
	PeerDHPub DHPublicKey  `json:"peer_dh_pub"`

	SendChainKey []byte `json:"send_chain_key,omitempty"`
	RecvChainKey []byte `json:"recv_chain_key,omitempty"`

	Ns uint32 `json:"ns"`
	Nr uint32 `json:"nr"`
	PN uint32 `json:"pn"`

	// AssociatedData is bound into every AEAD operation on this session;
	// derived once at establishment (spec.md §3 invariants).
	AssociatedData []byte `json:"associated_data"`

	// PendingInitHeader, when non-nil, is prepended to the next outgoing
	// message (spec.md §4.F) and cleared once that message is sent.
	PendingInitHeader []byte `json:"pending_init_header,omitempty"`

	SkippedChains []SkippedChain `json:"skipped_chains,omitempty"`

	// Active is true for the one session per peer currently used for new
	// sends; superseded sessions are retained read-only (draining).
	Active bool `json:"active"`

	// LastDecryptUTC records the most recent successful decrypt, used to
	// break ties between crossed-establishment sessions (spec.md §4.F).
	LastDecryptUTC int64 `json:"last_decrypt_utc"`
}

// Conversation persists the ratchet state for a peer device.
type Conversation struct {
	Peer  ConversationID `json:"peer"`
	State RatchetState   `json:"state"`
}
