package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"ripple/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	masterMaxSize = 2048
	jpegQuality   = 82
	webpQuality   = 70
)

// NormalizedImage is a decoded, bounded upload re-encoded for storage.
type NormalizedImage struct {
	Key       string // <hash>.webp
	WebP      []byte
	Width     int
	Height    int
	SizeBytes int64
}

// NormalizeImage validates and re-encodes an uploaded image: it must decode
// as JPEG/PNG/GIF/WebP, stay under maxBytes, and is downscaled to at most
// 2048px before being re-encoded as WebP. The object key is derived from
// the uploader and pixel content, so re-uploading the same image is a no-op.
func NormalizeImage(userID uint, contentType string, content []byte, maxBytes int64) (*NormalizedImage, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("no file uploaded")
	}
	if int64(len(content)) > maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("file too large (max %dMB)", maxBytes/(1024*1024)))
	}

	detected := http.DetectContentType(content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("invalid image type")
	}
	if provided := normalizeContentType(contentType); strings.HasPrefix(provided, "image/") && !isAllowedImageMIME(provided) {
		return nil, models.NewValidationError("invalid image content type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("unsupported image format")
	}

	master := resizeToFit(decoded, masterMaxSize, masterMaxSize)
	encoded, err := encodeWebP(master, webpQuality)
	if err != nil {
		return nil, models.NewStorageError("failed to encode image", err)
	}

	bounds := master.Bounds()
	return &NormalizedImage{
		Key:       imageKey(userID, encoded) + ".webp",
		WebP:      encoded,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SizeBytes: int64(len(encoded)),
	}, nil
}

// EncodeJPEG re-encodes an image as JPEG. Used for clients that cannot
// display WebP.
func EncodeJPEG(img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func imageKey(userID uint, content []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
