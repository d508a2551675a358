// Package apperr collects the sentinel errors shared across the protocol,
// engine, and store layers (spec.md §7). Callers compare with errors.Is;
// call sites wrap these with fmt.Errorf("...: %w", ...) for context.
package apperr

import "errors"

var (
	ErrInvalidKey           = errors.New("invalid key material")
	ErrSignatureInvalid     = errors.New("signed prekey signature invalid")
	ErrUnknownPreKey        = errors.New("signed or one-time prekey id not found")
	ErrAuthenticationFailed = errors.New("aead authentication failed")
	ErrOutOfOrderOrReplay   = errors.New("message counter out of order or replayed")
	ErrTooManySkipped       = errors.New("skipped-message-key limit exceeded")
	ErrPeerIdentityMismatch = errors.New("peer identity key does not match pinned record")
	ErrProtocolFormat       = errors.New("malformed protocol message")
	ErrTransport            = errors.New("transport error")
	ErrStorage              = errors.New("storage error")
	ErrCancelled            = errors.New("operation cancelled")
)
