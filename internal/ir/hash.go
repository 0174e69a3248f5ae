package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainCommand is the domain prefix for command fingerprints.
// Version suffix enables future algorithm migration.
const DomainCommand = "relq/command/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a stable identity for compiled command text and its
// ordered parameter values. Two compilations of the same input produce the
// same fingerprint.
func Fingerprint(text string, values []any) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"text":   text,
		"values": values,
	})
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCommand, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(text string, values []any) string {
	fp, err := Fingerprint(text, values)
	if err != nil {
		panic(err)
	}
	return fp
}
