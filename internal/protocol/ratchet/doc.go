// Package ratchet implements the Double Ratchet state machine that drives an
// established session after X3DH (spec.md §4.E).
//
// # State
//
// A domaintypes.RatchetState carries the root key, the local and remote DH
// key material, the sending/receiving chain keys, message counters, a
// bounded cache of skipped message keys, and the session's associated data.
// InitAsSender seeds a session with the remote DH already known (no local DH
// pair yet); InitAsReceiver seeds one with the local DH pair already known
// (no remote DH yet).
//
// # Operations
//
// Encrypt generates a local DH pair on the session's first send if one is
// not yet present, advances the sending chain, and returns a header plus
// AEAD ciphertext. Decrypt performs a DH-ratchet step when the inbound
// header's DH public differs from the currently-known one, caches any
// message keys skipped along the way (bounded by max_message_skip_per_chain
// and max_cached_chains), and commits the new state only once decryption
// succeeds — a failed decrypt, an over-limit skip, or a replayed or unknown
// message number leaves the session's persisted state untouched.
//
// # KDFs
//
// KDF_RK advances the root key with HKDF-SHA512 keyed by a DH output.
// KDF_CK advances a chain key with two labelled HMAC-SHA512 calls. Each
// message key is expanded into an AES-256-CTR key, a 16-byte IV, and a
// 32-byte HMAC-SHA512 MAC key for internal/aeadhmac's encrypt-then-MAC
// construction, itself split across two single-round HKDF-SHA512 calls to
// respect the ≤64-byte single-expansion-round primitive (48 bytes for the
// key and IV, 32 bytes for the MAC key, 80 bytes in all).
//
// Concurrency: RatchetState is NOT safe for concurrent use. Callers must
// serialise access per conversation.
package ratchet
