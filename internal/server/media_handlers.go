package server

import (
	"io"
	"strconv"
	"strings"

	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MediaUploadResponse is the API response after uploading an image.
type MediaUploadResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
}

// UploadAvatar handles POST /api/media/avatar
// Replaces the caller's avatar; the previous object is removed best-effort.
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	contentType, content, err := s.readUpload(c)
	if err != nil {
		return nil // response already written
	}

	result, err := s.mediaService.UploadAvatar(c.UserContext(), userID, contentType, content)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(toMediaUploadResponse(result))
}

// UploadPostImage handles POST /api/media/post-image
// The returned key is attached to a post via the create-post endpoint.
func (s *Server) UploadPostImage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	contentType, content, err := s.readUpload(c)
	if err != nil {
		return nil // response already written
	}

	result, err := s.mediaService.UploadPostImage(c.UserContext(), userID, contentType, content)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(toMediaUploadResponse(result))
}

// RemoveAvatar handles DELETE /api/media/avatar
func (s *Server) RemoveAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if err := s.mediaService.RemoveAvatar(c.UserContext(), userID); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SignMedia handles GET /api/media/sign?bucket=...&key=...
// Issues a fresh time-limited URL for an existing object, e.g. to render
// a feed image whose stored key outlived its original signed URL.
func (s *Server) SignMedia(c *fiber.Ctx) error {
	bucket := c.Query("bucket")
	key := c.Query("key")

	url, err := s.mediaService.SignedURL(bucket, key)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{"url": url})
}

// ServeMedia handles GET /api/media/:bucket/:key
// Access control is the URL signature issued at upload/lookup time; no
// session is required so <img> tags can load these directly.
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	bucket := c.Params("bucket")
	key := c.Params("key")

	exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid expiry"))
	}
	sig := c.Query("sig")
	if sig == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Missing signature"))
	}

	data, err := s.mediaService.ReadVerified(bucket, key, exp, sig)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	c.Set(fiber.HeaderContentType, contentTypeForKey(key))
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(data)
}

// readUpload extracts the multipart "image" file from the request.
// On failure the 400 response is already written and an error is returned
// so the handler can bail with nil.
func (s *Server) readUpload(c *fiber.Ctx) (string, []byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
		return "", nil, errResponseWritten
	}

	src, err := file.Open()
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		return "", nil, errResponseWritten
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		return "", nil, errResponseWritten
	}

	return file.Header.Get("Content-Type"), content, nil
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func toMediaUploadResponse(result *service.UploadResult) MediaUploadResponse {
	return MediaUploadResponse{
		Key:       result.Key,
		URL:       result.URL,
		Width:     result.Width,
		Height:    result.Height,
		SizeBytes: result.SizeBytes,
	}
}
