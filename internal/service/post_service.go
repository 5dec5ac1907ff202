package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/realtime"
	"ripple/internal/repository"
	"ripple/internal/validation"
)

// PostService owns post and like semantics: validation, ownership
// checks, and publishing feed change events.
type PostService struct {
	postRepo repository.PostRepository
	publish  ChangePublisher
}

type CreatePostInput struct {
	UserID   uint
	Content  string
	ImageKey string
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
}

type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(postRepo repository.PostRepository, publish ChangePublisher) *PostService {
	return &PostService{
		postRepo: postRepo,
		publish:  publish,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.ValidateContent("post", in.Content, validation.MaxPostLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{
		Content:  in.Content,
		ImageKey: in.ImageKey,
		UserID:   in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	publishRow(ctx, s.publish, realtime.PostsTopic, realtime.KindInsert, "posts", created)
	return created, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID)
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.postRepo.GetByUserID(ctx, userID, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}
	if err := validation.ValidateContent("post", in.Content, validation.MaxPostLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post.Content = in.Content
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	updated, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	publishRow(ctx, s.publish, realtime.PostsTopic, realtime.KindUpdate, "posts", updated)
	return updated, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}

	if post.UserID != in.UserID {
		return models.NewUnauthorizedError("You can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}
	publishRow(ctx, s.publish, realtime.PostsTopic, realtime.KindDelete, "posts", map[string]uint{"id": in.PostID})
	return nil
}

// ToggleLike flips the caller's like on a post. Both directions are
// idempotent at the store level, so racing double-clicks settle on one
// membership row at most.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	isLiked, err := s.postRepo.IsLiked(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	if isLiked {
		err = s.postRepo.Unlike(ctx, userID, postID)
	} else {
		err = s.postRepo.Like(ctx, userID, postID)
	}
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	publishRow(ctx, s.publish, realtime.PostsTopic, realtime.KindUpdate, "posts", post)
	return post, nil
}

func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if err := s.postRepo.Like(ctx, userID, postID); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	publishRow(ctx, s.publish, realtime.PostsTopic, realtime.KindUpdate, "posts", post)
	return post, nil
}

func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	publishRow(ctx, s.publish, realtime.PostsTopic, realtime.KindUpdate, "posts", post)
	return post, nil
}
