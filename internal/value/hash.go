package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash domains. The version suffix leaves room to change the encoding.
const (
	DomainValue = "pullgraph/value/v1"
	DomainTrace = "pullgraph/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The separator keeps
// domain and data from running into each other.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content hash of v under domain.
func Hash(domain string, v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// HashValue hashes v under DomainValue.
func HashValue(v Value) (string, error) {
	return Hash(DomainValue, v)
}
