// Package fingerprint computes content fingerprints for change detection.
//
// A fingerprint is a SHA-256 digest with domain separation, hex encoded and
// truncated to 16 characters. Fingerprints are compared for equality only.
//
// Every function here is pure and total: the same semantic content always
// yields the same fingerprint regardless of the order in which properties,
// data sources or rows were read, and no input makes a function fail.
//
// Inputs are serialized with MarshalCanonical (RFC 8785 key ordering, NFC
// strings, normalized numbers) before hashing.
package fingerprint
