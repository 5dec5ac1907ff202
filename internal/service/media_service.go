package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/storage"
)

// MediaService normalizes uploads into the object store and hands out
// signed URLs for reading them back.
type MediaService struct {
	store    *storage.Store
	userRepo repository.UserRepository
	maxBytes int64
}

// UploadResult describes a stored object.
type UploadResult struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
}

func NewMediaService(store *storage.Store, userRepo repository.UserRepository, maxUploadMB int) *MediaService {
	return &MediaService{
		store:    store,
		userRepo: userRepo,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// UploadAvatar stores a new avatar for the user and swaps the profile
// over to it. The previous avatar is removed once the new one is saved.
func (s *MediaService) UploadAvatar(ctx context.Context, userID uint, contentType string, content []byte) (*UploadResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	img, err := storage.NormalizeImage(userID, contentType, content, s.maxBytes)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(storage.AvatarBucket, img.Key, img.WebP); err != nil {
		return nil, err
	}

	oldKey := user.AvatarKey
	user.AvatarKey = img.Key
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	if oldKey != "" && oldKey != img.Key {
		if err := s.store.Remove(storage.AvatarBucket, oldKey); err != nil {
			// The new avatar is live; an orphaned object is acceptable.
			_ = err
		}
	}

	return s.result(storage.AvatarBucket, img)
}

// UploadPostImage stores an image for attachment to a post and returns
// its key. The post itself references the key on creation.
func (s *MediaService) UploadPostImage(ctx context.Context, userID uint, contentType string, content []byte) (*UploadResult, error) {
	_ = ctx

	img, err := storage.NormalizeImage(userID, contentType, content, s.maxBytes)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(storage.PostBucket, img.Key, img.WebP); err != nil {
		return nil, err
	}

	return s.result(storage.PostBucket, img)
}

// RemoveAvatar deletes the caller's avatar object and clears the
// profile reference. Removing when no avatar is set is a no-op.
func (s *MediaService) RemoveAvatar(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.AvatarKey == "" {
		return nil
	}

	key := user.AvatarKey
	user.AvatarKey = ""
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	return s.store.Remove(storage.AvatarBucket, key)
}

// SignedURL returns a fresh time-limited URL for an existing object.
func (s *MediaService) SignedURL(bucket, key string) (string, error) {
	return s.store.SignedURL(bucket, key)
}

// ReadVerified serves an object after checking the request signature.
func (s *MediaService) ReadVerified(bucket, key string, exp int64, sig string) ([]byte, error) {
	if !s.store.VerifyAccess(bucket, key, exp, sig) {
		return nil, models.NewUnauthorizedError("invalid or expired media signature")
	}
	return s.store.Read(bucket, key)
}

func (s *MediaService) result(bucket string, img *storage.NormalizedImage) (*UploadResult, error) {
	url, err := s.store.SignedURL(bucket, img.Key)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		Key:       img.Key,
		URL:       url,
		Width:     img.Width,
		Height:    img.Height,
		SizeBytes: img.SizeBytes,
	}, nil
}
