// Package cryptosuite exposes a uniform capability trait over the two
// elliptic-curve suites the engine supports: a 255-bit suite (X25519
// Diffie-Hellman, Ed25519 signing) and a 448-bit suite (X448
// Diffie-Hellman, Ed448 signing). Sessions are parameterized by exactly
// one suite at creation and never mix key material across suites.
package cryptosuite
