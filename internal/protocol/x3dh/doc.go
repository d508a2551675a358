// Package x3dh implements the X3DH key-agreement used to bootstrap a Double
// Ratchet session between two devices (spec.md §4.D).
//
// # Overview
//
// X3DH lets an initiator derive a shared 32-byte root key and 32-byte
// associated data value with a responder who has published a prekey bundle.
// The bundle carries an identity key, a signed prekey with its EdDSA
// signature, and an optional one-time prekey. Both sides work over whichever
// cryptosuite.Suite matches the bundle's curve id; 255-bit and 448-bit
// material never mix within one derivation.
//
// # Flows
//
// EstablishAsSender (initiator):
//  1. Verify the signed prekey signature under the peer's signing key.
//  2. Generate an ephemeral DH key pair.
//  3. Compute DH1..DH4 (DH4 only if the bundle carries a one-time prekey).
//  4. Derive the root key SK and associated data AD via HKDF-SHA512.
//  5. Build the initialization header to prepend to the first ciphertext.
//
// EstablishAsReceiver (responder):
//  1. Parse the initialization header carried on the first inbound ciphertext.
//  2. Look up the referenced signed and (if flagged) one-time prekey.
//  3. Mirror DH1..DH4 and derive the identical SK and AD.
//  4. The caller erases the consumed one-time prekey from storage.
//
// # Security notes
//
// The F-prefix (a run of 0xFF bytes the length of one DH public key) is
// mixed into the root-key derivation ahead of DH1 to disambiguate the value
// from any other protocol that might derive a secret from the same DH
// values, per the original X3DH specification's recommendation.
package x3dh
