// Package storage implements the disk-backed object store for user media.
// Objects live under <root>/<bucket>/<key> and are served through
// time-limited signed URLs.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ripple/internal/models"
	"ripple/internal/observability"
)

// Buckets known to the store.
const (
	AvatarBucket = "avatar-images"
	PostBucket   = "post-images"
)

// Store is a disk-backed object store with signed-URL access.
type Store struct {
	root   string
	signer *Signer
	ttl    time.Duration
}

// NewStore creates the bucket directories under root and returns a Store
// whose signed URLs are valid for ttl.
func NewStore(root string, signer *Signer, ttl time.Duration) (*Store, error) {
	for _, bucket := range []string{AvatarBucket, PostBucket} {
		if err := os.MkdirAll(filepath.Join(root, bucket), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return &Store{root: root, signer: signer, ttl: ttl}, nil
}

// TTL returns how long signed URLs stay valid.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func validBucket(bucket string) bool {
	return bucket == AvatarBucket || bucket == PostBucket
}

// validKey rejects keys that could traverse outside the bucket. Keys are
// hex hashes plus an extension, so anything outside [0-9a-z.] is refused.
func validKey(key string) bool {
	if key == "" || len(key) > 255 {
		return false
	}
	dots := 0
	for _, c := range key {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (s *Store) objectPath(bucket, key string) (string, error) {
	if !validBucket(bucket) {
		return "", models.NewValidationError("unknown bucket")
	}
	if !validKey(key) {
		return "", models.NewValidationError("invalid object key")
	}
	return filepath.Join(s.root, bucket, key), nil
}

// Save writes data under bucket/key, replacing any existing object.
func (s *Store) Save(bucket, key string, data []byte) error {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return models.NewStorageError("failed to store object", err)
	}
	return nil
}

// Read returns the object's bytes.
func (s *Store) Read(bucket, key string) ([]byte, error) {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewNotFoundError("Object", key)
		}
		return nil, models.NewStorageError("failed to read object", err)
	}
	return data, nil
}

// Remove deletes the object. Removing a missing object is not an error.
func (s *Store) Remove(bucket, key string) error {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return models.NewStorageError("failed to remove object", err)
	}
	return nil
}

// SignedURL returns a relative URL granting read access to bucket/key
// until the store's TTL elapses.
func (s *Store) SignedURL(bucket, key string) (string, error) {
	if !validBucket(bucket) {
		return "", models.NewValidationError("unknown bucket")
	}
	if !validKey(key) {
		return "", models.NewValidationError("invalid object key")
	}
	exp := time.Now().Add(s.ttl).Unix()
	sig := s.signer.Sign(bucket, key, exp)
	observability.SignedURLsIssued.WithLabelValues(bucket).Inc()
	return fmt.Sprintf("/api/media/%s/%s?exp=%d&sig=%s", bucket, key, exp, sig), nil
}

// VerifyAccess checks a signed request against the store's signer.
func (s *Store) VerifyAccess(bucket, key string, exp int64, sig string) bool {
	return validBucket(bucket) && validKey(key) && s.signer.Verify(bucket, key, exp, sig)
}
