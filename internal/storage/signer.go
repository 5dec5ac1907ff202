package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Signer issues and verifies HMAC-SHA256 signatures for media URLs.
// A signed URL grants time-limited read access to a single object.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer with the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex signature for the bucket/key pair expiring at exp
// (unix seconds).
func (s *Signer) Sign(bucket, key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s/%s:%d", bucket, key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid, unexpired signature for the
// bucket/key pair.
func (s *Signer) Verify(bucket, key string, exp int64, sig string) bool {
	if exp < time.Now().Unix() {
		return false
	}
	expected := s.Sign(bucket, key, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}
