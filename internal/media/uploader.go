// Package media stores user supplied images and returns their public URLs.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/idgen"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

// Object folders.
const (
	FolderAvatars  = "avatars"
	FolderMessages = "messages"
)

// AvatarSize is the largest edge of a stored avatar.
const AvatarSize = 512

// MaxImageDimension bounds the declared width and height of an avatar
// before it is decoded into memory.
const MaxImageDimension = 8192

const avatarJPEGQuality = 85

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader writes base64 data URL images to storage.
type Uploader struct {
	storage   storage.Storage
	maxBytes  int64
	urlExpiry time.Duration
	ids       *idgen.ULIDGenerator
}

// NewUploader creates an uploader. A nil store yields an uploader whose
// Upload always fails with domain.ErrMediaUnavailable.
func NewUploader(store storage.Storage, maxBytes int64, urlExpiry time.Duration) *Uploader {
	return &Uploader{
		storage:   store,
		maxBytes:  maxBytes,
		urlExpiry: urlExpiry,
		ids:       idgen.NewULIDGenerator(),
	}
}

// Upload decodes dataURL and stores it under folder/ownerID. It returns the
// public URL and the storage key.
func (u *Uploader) Upload(ctx context.Context, folder, ownerID, dataURL string) (url, key string, err error) {
	if u.storage == nil {
		return "", "", domain.ErrMediaUnavailable
	}

	contentType, data, err := ParseDataURL(dataURL, u.maxBytes)
	if err != nil {
		return "", "", err
	}

	if folder == FolderAvatars {
		if data, err = normalizeAvatar(contentType, data); err != nil {
			return "", "", err
		}
	}

	id, _, err := u.ids.Generate()
	if err != nil {
		return "", "", err
	}
	key = path.Join(folder, ownerID, id+extensions[contentType])

	if err := u.storage.Write(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", "", fmt.Errorf("failed to store image: %w", err)
	}

	url, err = u.storage.GetURL(ctx, key, u.urlExpiry)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve image url: %w", err)
	}
	return url, key, nil
}

// Delete removes a previously uploaded object.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	if u.storage == nil || key == "" {
		return nil
	}
	return u.storage.Delete(ctx, key)
}

// normalizeAvatar center-crops png and jpeg avatars to a square no larger
// than AvatarSize. Other formats are stored untouched.
func normalizeAvatar(contentType string, data []byte) ([]byte, error) {
	var format imaging.Format
	switch contentType {
	case "image/png":
		format = imaging.PNG
	case "image/jpeg":
		format = imaging.JPEG
	default:
		return data, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dpx", domain.ErrInvalidImage, cfg.Width, cfg.Height, MaxImageDimension)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	b := img.Bounds()
	side := min(b.Dx(), b.Dy(), AvatarSize)
	if b.Dx() == side && b.Dy() == side {
		return data, nil
	}
	resized := imaging.Fill(img, side, side, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(avatarJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseDataURL decodes a "data:<type>;base64,<payload>" image. Payloads
// larger than maxBytes are rejected before decoding.
func ParseDataURL(s string, maxBytes int64) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, domain.ErrInvalidImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, domain.ErrInvalidImage
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, domain.ErrInvalidImage
	}
	contentType = strings.ToLower(contentType)
	if _, ok := extensions[contentType]; !ok {
		return "", nil, fmt.Errorf("%w: unsupported type %q", domain.ErrInvalidImage, contentType)
	}

	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+2 {
		return "", nil, domain.ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", nil, domain.ErrImageTooLarge
	}
	if len(data) == 0 {
		return "", nil, domain.ErrInvalidImage
	}
	return contentType, data, nil
}
