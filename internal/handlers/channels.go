package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// ChannelHandler serves the aggregation endpoints: channel profiles, watch
// history, and subscription toggles. All routes require authentication.
type ChannelHandler struct {
	Users         UserStore
	Profiles      ProfileReader
	Subscriptions SubscriptionStore
	Watches       WatchStore
	Invalidator   ProfileInvalidator
}

// Profile handles GET /api/v1/users/c/{handle}.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	viewer, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	handle := strings.TrimSpace(strings.ToLower(r.PathValue("handle")))
	if handle == "" {
		respondError(ctx, w, http.StatusBadRequest, "handle is required")
		return
	}

	profile, err := h.Profiles.ChannelProfile(ctx, handle, viewer.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("channel not found", "handle", handle)
			respondError(ctx, w, http.StatusNotFound, "channel does not exist")
			return
		}
		logger.Error("channel profile lookup failed", "error", err, "handle", handle)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load channel")
		return
	}

	respondData(ctx, w, http.StatusOK, "channel fetched successfully", profile)
}

// History handles GET /api/v1/users/history.
func (h ChannelHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	entries, err := h.Watches.WatchHistory(ctx, user.ID)
	if err != nil {
		logger.Error("watch history lookup failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load watch history")
		return
	}

	if entries == nil {
		entries = []models.WatchEntry{}
	}

	respondData(ctx, w, http.StatusOK, "watch history fetched successfully", entries)
}

// RecordWatch handles POST /api/v1/users/history/{videoID}.
func (h ChannelHandler) RecordWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	videoID := strings.TrimSpace(r.PathValue("videoID"))
	if videoID == "" {
		respondError(ctx, w, http.StatusBadRequest, "video id is required")
		return
	}

	if err := h.Watches.RecordWatch(ctx, user.ID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("watch recorded for unknown video", "videoId", videoID)
			respondError(ctx, w, http.StatusNotFound, "video does not exist")
			return
		}
		logger.Error("record watch failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to record watch")
		return
	}

	respondData(ctx, w, http.StatusOK, "watch recorded", nil)
}

type toggleSubscriptionResponse struct {
	Subscribed bool `json:"subscribed"`
}

// ToggleSubscription handles POST /api/v1/subscriptions/{handle}.
func (h ChannelHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	viewer, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	handle := strings.TrimSpace(strings.ToLower(r.PathValue("handle")))
	if handle == "" {
		respondError(ctx, w, http.StatusBadRequest, "handle is required")
		return
	}

	channel, err := h.Users.FindByIdentity(ctx, handle, "")
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "channel does not exist")
			return
		}
		logger.Error("subscription channel lookup failed", "error", err, "handle", handle)
		respondError(ctx, w, http.StatusInternalServerError, "unable to toggle subscription")
		return
	}

	if channel.ID == viewer.ID {
		respondError(ctx, w, http.StatusBadRequest, "cannot subscribe to your own channel")
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, viewer.ID, channel.ID)
	if err != nil {
		logger.Error("subscription toggle failed", "error", err, "handle", handle)
		respondError(ctx, w, http.StatusInternalServerError, "unable to toggle subscription")
		return
	}

	if h.Invalidator != nil {
		h.Invalidator.Invalidate(handle)
	}

	message := "unsubscribed from channel"
	if subscribed {
		message = "subscribed to channel"
	}

	respondData(ctx, w, http.StatusOK, message, toggleSubscriptionResponse{Subscribed: subscribed})
}
