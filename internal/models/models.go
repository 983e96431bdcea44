package models

import "time"

// User represents an account within the VidTube platform. Password holds the
// bcrypt hash, never the plaintext. RefreshToken is the single refresh token
// currently valid for the account; an empty value means no active session.
type User struct {
	ID            string    `json:"id"`
	Handle        string    `json:"handle"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	Password      string    `json:"-"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImg,omitempty"`
	RefreshToken  string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sanitized returns a copy safe to attach to a request context or serialize
// to a client: credential material is blanked.
func (u User) Sanitized() User {
	u.Password = ""
	u.RefreshToken = ""
	return u
}

// Video stores metadata for an uploaded video, referenced by watch history.
type Video struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail"`
	VideoURL     string    `json:"videoUrl"`
	Duration     int64     `json:"duration"`
	Views        int64     `json:"views"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Subscription records that one user follows another user's channel.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChannelProfile is the aggregated public view of a user's channel,
// including subscriber counts relative to the requesting viewer.
type ChannelProfile struct {
	ID                 string `json:"id"`
	Handle             string `json:"handle"`
	FullName           string `json:"fullName"`
	Email              string `json:"email"`
	AvatarURL          string `json:"avatar"`
	CoverImageURL      string `json:"coverImg,omitempty"`
	SubscriberCount    int64  `json:"subscriberCount"`
	SubscribedToCount  int64  `json:"channelsSubscribedToCount"`
	ViewerIsSubscribed bool   `json:"isSubscribed"`
}

// WatchEntry is one item of a user's watch history: the video joined with a
// slim view of its owner.
type WatchEntry struct {
	Video     Video      `json:"video"`
	Owner     VideoOwner `json:"owner"`
	WatchedAt time.Time  `json:"watchedAt"`
}

// VideoOwner carries the owner fields exposed alongside history entries.
type VideoOwner struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatar"`
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
