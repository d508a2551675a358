// Package prekey generates, rotates, and assembles signed and one-time
// pre-key bundles for X3DH bootstrap (spec.md §3/§4.D), plus the
// rotation/replenishment operations spec.md leaves as configuration
// (spec.md §6 spk_lifetime/spk_grace/opk_server_low_limit).
package prekey
