package service

import (
	"context"

	"ripple/internal/cache"
	"ripple/internal/models"
	"ripple/internal/repository"
)

// FollowService owns the follow graph: directed edges, counts, and
// who-to-follow suggestions.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
	}
}

// FollowUser creates the follower -> target edge. Following someone you
// already follow is a no-op.
func (s *FollowService) FollowUser(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return err
	}
	return s.followRepo.Follow(ctx, followerID, targetID)
}

// UnfollowUser removes the edge. Unfollowing someone you don't follow
// is a no-op.
func (s *FollowService) UnfollowUser(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("You cannot unfollow yourself")
	}
	return s.followRepo.Unfollow(ctx, followerID, targetID)
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, targetID)
}

func (s *FollowService) GetFollowers(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.GetFollowers(ctx, userID)
}

func (s *FollowService) GetFollowing(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.GetFollowing(ctx, userID)
}

func (s *FollowService) GetCounts(ctx context.Context, userID uint) (*repository.FollowCounts, error) {
	return s.followRepo.Counts(ctx, userID)
}

// Suggestions returns up to limit users the caller does not follow yet.
// The candidate pool is shared across users and cached; the per-caller
// filtering happens here.
func (s *FollowService) Suggestions(ctx context.Context, userID uint, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	const poolSize = 100
	pool, err := cache.Aside(ctx, cache.SuggestionsKey(), cache.SuggestionsTTL, func() ([]models.User, error) {
		return s.userRepo.List(ctx, poolSize, 0)
	})
	if err != nil {
		return nil, err
	}

	followingIDs, err := s.followRepo.GetFollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	following := make(map[uint]struct{}, len(followingIDs))
	for _, id := range followingIDs {
		following[id] = struct{}{}
	}

	suggestions := make([]models.User, 0, limit)
	for _, candidate := range pool {
		if candidate.ID == userID {
			continue
		}
		if _, ok := following[candidate.ID]; ok {
			continue
		}
		suggestions = append(suggestions, candidate)
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}
