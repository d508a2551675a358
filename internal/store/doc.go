// Package store provides file-based persistence for lime's core data:
// concrete implementations of the domain storage interfaces
// (internal/domain/interfaces), serialising data as JSON on disk. All
// methods are concurrency-safe via internal locking. Stored files live
// under the configured home directory.
//
// The package includes stores for:
//   - Identity keys (IdentityFileStore), passphrase-encrypted via
//     crypto_envelope.go's scrypt+ChaCha20-Poly1305 blob format
//   - Signed and one-time pre-keys (PrekeyFileStore)
//   - Pre-key bundles (BundleFileStore)
//   - Pinned peer device identities (PeerDeviceFileStore)
//   - X3DH sessions, split into active/draining slots (SessionFileStore)
//   - Double Ratchet conversation state (RatchetFileStore)
//   - Per-relay account profiles (AccountFileStore)
//
// The sibling package internal/store/pgstore implements three of these
// interfaces (PeerDeviceStore, SessionStore, RatchetStore) against
// PostgreSQL via pgx, for deployments that want a relational backend
// instead of a single user's JSON files.
package store
