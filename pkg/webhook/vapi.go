package webhook

import (
	"crypto/subtle"
	"fmt"
)

// VerifySecret checks the shared secret the call platform attaches to webhook
// deliveries in the x-vapi-secret header. Comparison is constant-time. An
// empty configured secret skips verification (for development/testing).
func VerifySecret(configured, received string) error {
	if configured == "" {
		return nil
	}
	if received == "" {
		return fmt.Errorf("webhook secret header missing")
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(received)) != 1 {
		return fmt.Errorf("webhook secret mismatch")
	}
	return nil
}
