// Package relay provides the net/http implementation of domain.RelayClient.
//
// The relay is a store-and-forward key-distribution and mailbox service:
// devices publish identity/pre-key material to it and fetch peers'
// bundles, then post and retrieve encrypted envelopes through it.
//
// Every request and response body is a single x3dhcodec wire message
// (internal/protocol/x3dhcodec) — a 3-byte header (version, message type,
// curve id) followed by a type-specific binary body — carried with
// Content-Type "x3dh/octet-stream" and a "From" header naming the acting
// device, per spec.md §6. There is no JSON on this transport; envelope
// send/fetch/ack use the MsgSendEnvelope/MsgFetchEnvelopes/MsgEnvelopeList/
// MsgAck message types layered on top of the core register/publish/fetch
// set of spec.md §4.C.
//
// Every method accepts a context for cancellation and deadlines;
// FetchPeerBundle in particular may be cancelled mid-flight when a newer
// request supersedes it (spec.md §5).
package relay
