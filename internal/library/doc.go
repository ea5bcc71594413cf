// Package library is the domain layer over the two row stores.
//
// Every operation runs against the primary backend chosen at startup by
// [shared.Selector]; committed writes are copied to the secondary backend
// through a [tasks.Mirror], so mirror failures never surface to callers.
// Reads always come from the primary.
//
// The package also owns credential handling: scrypt password hashes and
// SHA-256 hashed session tokens. Raw session tokens exist only in transit;
// neither store ever sees one.
package library
