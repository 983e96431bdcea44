package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIdentity(ctx context.Context, handle, email string) (models.User, error)
	UpdateProfile(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatar(ctx context.Context, id, avatarURL string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, coverImageURL string) (models.User, error)
	SetRefreshToken(ctx context.Context, id, refreshToken string) error
	ChannelProfile(ctx context.Context, handle, viewerID string) (models.ChannelProfile, error)
}

// SubscriptionRepository manages the follower relation behind channel profiles.
type SubscriptionRepository interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (subscribed bool, err error)
	CountForChannel(ctx context.Context, channelID string) (int64, error)
}

// VideoRepository persists videos and per-user watch history.
type VideoRepository interface {
	CreateVideo(ctx context.Context, video models.Video) error
	RecordWatch(ctx context.Context, userID, videoID string) error
	WatchHistory(ctx context.Context, userID string) ([]models.WatchEntry, error)
}
