package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// proofHash digests the canonical JSON encoding of the value. Map keys are
// sorted by the encoder, so equal content always hashes equally; consumers
// can verify an offer against the hash without trusting the publisher.
func proofHash(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode proof subject: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
