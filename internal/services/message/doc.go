// Package message implements the CLI-facing façade over internal/engine:
// SendMessage/ReceiveMessages turn plaintext/peer pairs into relay round
// trips, leaving session establishment and the Double Ratchet itself to
// the engine.
package message
