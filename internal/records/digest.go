package records

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const domainAction = "creditors/action/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest identifies one version of an action record. Two actions have the
// same digest exactly when their canonical JSON is identical.
func Digest(a Action) (string, error) {
	data, err := MarshalCanonical(a)
	if err != nil {
		return "", fmt.Errorf("digest action %d: %w", a.ActionID, err)
	}
	return hashWithDomain(domainAction, data), nil
}

// TokenGenerator produces idempotency tokens and payee references.
type TokenGenerator interface {
	Generate() string
}

// UUIDGenerator generates random (version 4) UUIDs.
type UUIDGenerator struct{}

// Generate returns a new hyphenated UUID.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
