package handlers

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIdentity(ctx context.Context, handle, email string) (models.User, error)
	UpdateProfile(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatar(ctx context.Context, id, avatarURL string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, coverImageURL string) (models.User, error)
}

// TokenManager issues, rotates, and revokes the session token pair.
type TokenManager interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
}

// MediaUploader moves a local temp file into the media store, removing the
// local file regardless of outcome.
type MediaUploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// MediaJanitor schedules background deletion of replaced media objects.
type MediaJanitor interface {
	Enqueue(url string)
}

// ProfileReader resolves aggregated channel profiles.
type ProfileReader interface {
	ChannelProfile(ctx context.Context, handle, viewerID string) (models.ChannelProfile, error)
}

// ProfileInvalidator drops cached profile views after a subscription change.
type ProfileInvalidator interface {
	Invalidate(handle string)
}

// SubscriptionStore flips the follower relation between a viewer and a channel.
type SubscriptionStore interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
}

// WatchStore records watch events and serves the joined history.
type WatchStore interface {
	RecordWatch(ctx context.Context, userID, videoID string) error
	WatchHistory(ctx context.Context, userID string) ([]models.WatchEntry, error)
}
