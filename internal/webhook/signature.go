package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// VerifySignature verifies an HMAC-SHA256 signature against the raw
// request body. The platform signs the body with the channel secret and
// sends the base64-encoded digest in a request header.
//
// Comparison uses crypto/subtle so every position is compared regardless
// of early mismatch. A length mismatch short-circuits; it cannot leak
// digest content since the expected value has a fixed encoded length.
//
// An absent signature always fails. This check gates all further
// processing: callers must reject the request before parsing the body.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}

	expected := Sign(body, secret)
	if len(expected) != len(signature) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Sign computes the base64-encoded HMAC-SHA256 digest of body keyed with
// secret, the value a trusted sender would place in the signature header.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
