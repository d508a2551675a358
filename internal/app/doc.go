// Package app wires application dependencies for the CLI.
//
// Config is loaded from a config file, LIME_-prefixed environment
// variables, and flags (see LoadConfig), holding the full spec.md §6
// configuration table alongside the relay URL and home directory. Wire
// builds the passphrase-independent stores and identity/pre-key services
// from Config; Wire.Unlock then loads the local identity under a
// passphrase and returns an App with an engine.Service bound to that
// identity's curve suite plus the message service and relay client that
// depend on it.
package app
