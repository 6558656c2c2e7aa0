package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"bitwise74/marketplace-auth/internal/repository"
	"bitwise74/marketplace-auth/pkg/util"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const DefaultAvatarMaxSize = 2 << 20

var (
	ErrStorageDisabled = errors.New("avatar storage is not configured")
	ErrImageTooLarge   = errors.New("image is too large")
	ErrImageType       = errors.New("unsupported image type")
)

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ObjectStore is the blob storage avatars are written to
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
}

type Avatars struct {
	store   ObjectStore
	users   repository.UserStore
	maxSize int64
}

// NewAvatars returns a service that refuses uploads when store is nil
func NewAvatars(store ObjectStore, users repository.UserStore, maxSize int64) *Avatars {
	if maxSize <= 0 {
		maxSize = DefaultAvatarMaxSize
	}

	return &Avatars{store: store, users: users, maxSize: maxSize}
}

func (a *Avatars) MaxSize() int64 {
	return a.maxSize
}

// Upload stores the image and points the user's avatar at it. The type is
// taken from the content itself, never from what the client declared. The
// previous object is removed on a best effort basis.
func (a *Avatars) Upload(ctx context.Context, userID int64, body io.Reader, size int64) (string, error) {
	if a.store == nil {
		return "", ErrStorageDisabled
	}

	if size <= 0 || size > a.maxSize {
		return "", invalidArgument(ErrImageTooLarge)
	}

	body = io.LimitReader(body, a.maxSize)

	var head bytes.Buffer
	mime, err := mimetype.DetectReader(io.TeeReader(body, &head))
	if err != nil {
		return "", fmt.Errorf("failed to detect image type, %w", err)
	}

	contentType := mime.String()
	ext, ok := avatarTypes[contentType]
	if !ok {
		zap.L().Debug("Rejected avatar upload", zap.Int64("userID", userID), zap.String("mime", contentType))
		return "", invalidArgument(ErrImageType)
	}

	user, err := userLookup(a.users.GetByID(ctx, userID))
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", userID, util.RandID(16), ext)
	if err := a.store.Put(ctx, key, contentType, io.MultiReader(&head, body), size); err != nil {
		return "", err
	}

	if err := a.users.SetAvatar(ctx, userID, key); err != nil {
		return "", err
	}

	if user.AvatarKey != "" {
		if err := a.store.Delete(ctx, user.AvatarKey); err != nil {
			zap.L().Warn("Failed to delete old avatar", zap.String("key", user.AvatarKey), zap.Error(err))
		}
	}

	return key, nil
}
