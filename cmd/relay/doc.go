// Package main runs the store-and-forward key-distribution and mailbox
// relay used during development and for a single-process deployment. It
// stores published identity/pre-key material and queues encrypted
// envelopes for recipients until they fetch and acknowledge them.
//
// Wire protocol
//
// Every request and response body is one x3dhcodec binary message
// (Content-Type: x3dh/octet-stream); the acting device is named by the
// "From" header, not by a URL path segment.
//
//	POST /register          registerUser     publish identity key + curve
//	POST /user/delete       deleteUser       remove an account and its mailbox
//	POST /spk               postSPK          replace the current signed pre-key
//	POST /opks              postOPKs         append to the one-time pre-key stock
//	POST /bundle            getPeerBundle    fetch peer bundles (consumes one OPK each)
//	POST /messages/send     sendEnvelope     enqueue an envelope for its recipient
//	POST /messages/fetch    fetchEnvelopes   return up to N queued envelopes, oldest first
//	POST /messages/ack      ack              drop the first N queued envelopes
//
// Behaviour
//
//   - All state is held in internal/relayserver.Store, in memory, lost on
//     process exit.
//   - One-time pre-keys are consumed on bundle fetch, never reused.
//   - Non-2xx responses carry an x3dhcodec error message (code + text).
//   - The default listen address is :8080.
//
// This relay never sees plaintext or private keys; it only stores
// ciphertext, public key material, and signatures.
package main
