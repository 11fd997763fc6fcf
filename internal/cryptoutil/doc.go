// Package cryptoutil holds the helpers used to verify downloaded archives:
// SHA-256 parsing, streaming hashing and constant-time comparison, and
// local checking of signatures made with an asymmetric KMS key.
package cryptoutil
