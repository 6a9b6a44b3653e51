package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// ComputeSignature returns the hex HMAC-SHA256 of the withdrawal id keyed
// with the provider API key, as OpenNode sends it in hashed_order.
func ComputeSignature(apiKey, withdrawalID string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(withdrawalID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature accepts the signature as raw hex or prefixed with
// "sha256=". The comparison is constant time.
func VerifySignature(apiKey, withdrawalID, provided string) bool {
	sig := strings.ToLower(strings.TrimSpace(provided))
	sig = strings.TrimPrefix(sig, signaturePrefix)
	if apiKey == "" || sig == "" {
		return false
	}

	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(withdrawalID))
	return hmac.Equal(mac.Sum(nil), decoded)
}
