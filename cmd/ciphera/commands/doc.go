// Package commands defines the lime CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create a local identity for a chosen curve suite
//   - fingerprint    Print the identity fingerprint
//   - register       Publish the prekey bundle to a relay
//   - start-session  Fetch and pin a peer's identity key
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages
//
// # Implementation
//
// The root command loads Config (file, LIME_ environment, flags) and
// builds an app.Wire before any subcommand runs. Wire holds the
// passphrase-independent stores and identity/pre-key services; commands
// that need the local identity call unlock(), which calls Wire.Unlock to
// load it and construct the engine.Service and message service bound to
// it.
package commands
