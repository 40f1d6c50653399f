package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Headers set on every continuation POST.
const (
	HeaderSignature = "X-VRP-Signature"
	HeaderEvent     = "X-VRP-Event"
	HeaderSolveID   = "X-VRP-Solve-Id"
)

// VerifyHMAC checks an HMAC-SHA256 signature over the raw body using the shared secret.
// Receivers of continuation webhooks use it to authenticate the engine.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	b, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	return hmac.Equal(mac(secret, body), b)
}

// SignHMAC returns lowercase hex of HMAC-SHA256 for use in headers.
func SignHMAC(secret string, body []byte) string {
	return hex.EncodeToString(mac(secret, body))
}

func mac(secret string, body []byte) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return m.Sum(nil)
}
