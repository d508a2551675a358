// Package engine implements the session orchestrator of spec.md §4.F: the
// component that turns a plaintext/peer pair into an on-wire Envelope and
// back, driving X3DH establishment and the Double Ratchet underneath a
// stable Encrypt/Decrypt API.
//
// # Session state
//
// Service keeps no in-memory session cache: each call loads the peer's
// RatchetState from the RatchetStore/SessionStore pair and saves it back
// after a successful operation. A per-peer mutex serialises
// Encrypt calls to the same peer, which both satisfies the spec's
// same-peer submission-order guarantee and means at most one goroutine
// ever mutates a given RatchetState.
//
// # Bundle fetch deduplication
//
// When no session exists for a peer, Encrypt fetches a prekey bundle from
// the RelayClient. Concurrent Encrypt calls for the same peer observe an
// in-flight fetch and wait on it rather than issuing their own; if the
// initiating call's context is cancelled the fetch is abandoned and every
// waiter fails with apperr.ErrCancelled, per spec.md §4.F/§7.
package engine
