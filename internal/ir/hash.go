package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainTrace = "lifetimes/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TraceDigest fingerprints an ordered event trace under a run token.
// Identical traces always produce identical digests.
func TraceDigest(runToken string, records []IRObject) (string, error) {
	events := make(IRArray, len(records))
	for i, r := range records {
		events[i] = r
	}
	canonical, err := MarshalCanonical(IRObject{
		"run_token": IRString(runToken),
		"events":    events,
	})
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustTraceDigest is like TraceDigest but panics on error.
// Use only in tests or when records are known to be valid.
func MustTraceDigest(runToken string, records []IRObject) string {
	d, err := TraceDigest(runToken, records)
	if err != nil {
		panic(err)
	}
	return d
}
