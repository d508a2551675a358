// Package identity manages creation, passphrase encryption, and loading of
// the local curve-agile identity key pair.
//
// It enforces passphrase policy, generates a signing key pair and its
// deterministically-derived DH counterpart via cryptosuite, and persists
// them via domain.IdentityStore.
package identity
