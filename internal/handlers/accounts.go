package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// RefreshTokenCookie is the cookie the refresh token travels in.
const RefreshTokenCookie = "refreshToken"

// AccountHandler implements registration, login, and profile endpoints.
type AccountHandler struct {
	Users         UserStore
	Tokens        TokenManager
	Media         MediaUploader
	Janitor       MediaJanitor
	LoginLimiter  RateLimiter
	SignupLimiter RateLimiter
	NowFunc       func() time.Time
}

// Register handles POST /api/v1/users/register: multipart with text fields
// plus a required avatar file and an optional cover image.
func (h AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.SignupLimiter, r, "signup") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many registration attempts")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.Warn("invalid registration form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "multipart form required")
		return
	}

	handle := strings.TrimSpace(strings.ToLower(r.FormValue("handle")))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	fullName := strings.TrimSpace(r.FormValue("fullName"))
	password := r.FormValue("password")

	if handle == "" || email == "" || fullName == "" || password == "" {
		logger.Warn("registration missing fields", "handle", handle, "email", email)
		respondError(ctx, w, http.StatusBadRequest, "handle, email, fullName, and password are required")
		return
	}

	if _, err := mail.ParseAddress(email); err != nil {
		logger.Warn("registration invalid email", "email", email, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	if _, err := h.Users.FindByIdentity(ctx, handle, email); err == nil {
		logger.Warn("registration duplicate identity", "handle", handle, "email", email)
		respondError(ctx, w, http.StatusConflict, "user already exists")
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("registration identity lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to verify existing accounts")
		return
	}

	avatarPath, hasAvatar, err := saveUploadedFile(r, "avatar")
	if err != nil {
		logger.Error("registration avatar read failed", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "unable to read avatar upload")
		return
	}
	if !hasAvatar {
		respondError(ctx, w, http.StatusBadRequest, "avatar file is required")
		return
	}

	coverPath, _, err := saveUploadedFile(r, "coverImg")
	if err != nil {
		logger.Warn("registration cover read failed", "error", err)
		coverPath = ""
	}
	// The buffered cover file is ours to remove until the uploader takes it.
	defer func() {
		if coverPath != "" {
			_ = os.Remove(coverPath)
		}
	}()

	avatarURL, err := h.Media.Upload(ctx, avatarPath)
	if err != nil || avatarURL == "" {
		logger.Error("registration avatar upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	coverURL, err := h.Media.Upload(ctx, coverPath)
	coverPath = ""
	if err != nil {
		// Cover image is optional; the account is still created.
		logger.Warn("registration cover upload failed", "error", err)
		coverURL = ""
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("registration failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:            uuid.NewString(),
		Handle:        handle,
		Email:         email,
		FullName:      fullName,
		Password:      string(hashed),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("registration conflict", "handle", handle, "email", email)
			respondError(ctx, w, http.StatusConflict, "user already exists")
			return
		}
		logger.Error("registration failed to create user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	respondData(ctx, w, http.StatusCreated, "user registered successfully", user.Sanitized())
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// Login handles POST /api/v1/users/login.
func (h AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.LoginLimiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Handle = strings.TrimSpace(strings.ToLower(req.Handle))
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if (req.Handle == "" && req.Email == "") || req.Password == "" {
		logger.Warn("login missing credentials")
		respondError(ctx, w, http.StatusBadRequest, "handle or email, and password, are required")
		return
	}

	user, err := h.Users.FindByIdentity(ctx, req.Handle, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login unknown identity", "handle", req.Handle, "email", req.Email)
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("login identity lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to log in")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "incorrect password")
		return
	}

	pair, err := h.Tokens.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("login failed to issue tokens", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setAuthCookies(w, pair)
	respondData(ctx, w, http.StatusOK, "user logged in successfully", loginResponse{
		User:         user.Sanitized(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /api/v1/users/logout. Requires authentication.
func (h AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.Tokens.Revoke(ctx, user.ID); err != nil {
		logger.Error("logout failed to revoke session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to log out")
		return
	}

	clearAuthCookies(w)
	respondData(ctx, w, http.StatusOK, "user logged out successfully", nil)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken handles POST /api/v1/users/refresh-token. The refresh token is
// read from the cookie first, then the JSON body.
func (h AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	presented := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" && r.Body != nil {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}

	if presented == "" {
		logger.Warn("refresh missing token")
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	pair, err := h.Tokens.Refresh(ctx, presented)
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) || errors.Is(err, auth.ErrSessionRevoked) {
			logger.Warn("refresh token rejected", "error", err)
			respondError(ctx, w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		logger.Error("refresh failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to refresh session")
		return
	}

	setAuthCookies(w, pair)
	respondData(ctx, w, http.StatusOK, "access token refreshed", pair)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword handles PATCH /api/v1/users/change-password. Requires authentication.
func (h AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid change-password payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		respondError(ctx, w, http.StatusBadRequest, "old and new passwords are required")
		return
	}

	// The context user is sanitized; load the record with the stored hash.
	stored, err := h.Users.FindByID(ctx, user.ID)
	if err != nil {
		logger.Error("change-password user load failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to change password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(req.OldPassword)); err != nil {
		logger.Warn("change-password old password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "incorrect password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("change-password failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		logger.Error("change-password update failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to change password")
		return
	}

	respondData(ctx, w, http.StatusOK, "password changed successfully", nil)
}

// CurrentUser handles GET /api/v1/users/current-user. Requires authentication.
func (h AccountHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	respondData(ctx, w, http.StatusOK, "current user", user)
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// UpdateAccount handles PATCH /api/v1/users/update-account. Requires authentication.
func (h AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update-account payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FullName == "" || req.Email == "" {
		respondError(ctx, w, http.StatusBadRequest, "fullName and email are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	updated, err := h.Users.UpdateProfile(ctx, user.ID, req.FullName, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("update-account email conflict", "userId", user.ID)
			respondError(ctx, w, http.StatusConflict, "email already in use")
			return
		}
		logger.Error("update-account failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to update account")
		return
	}

	respondData(ctx, w, http.StatusOK, "account details updated successfully", updated.Sanitized())
}

// UpdateAvatar handles PATCH /api/v1/users/avatar. Requires authentication.
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", UserStore.UpdateAvatar, func(u models.User) string { return u.AvatarURL })
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-img. Requires authentication.
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImg", UserStore.UpdateCoverImage, func(u models.User) string { return u.CoverImageURL })
}

func (h AccountHandler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(UserStore, context.Context, string, string) (models.User, error),
	previous func(models.User) string,
) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.Warn("invalid image form", "field", field, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "multipart form required")
		return
	}

	path, hasFile, err := saveUploadedFile(r, field)
	if err != nil {
		logger.Error("image read failed", "field", field, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "unable to read upload")
		return
	}
	if !hasFile {
		respondError(ctx, w, http.StatusBadRequest, field+" file is required")
		return
	}

	url, err := h.Media.Upload(ctx, path)
	if err != nil || url == "" {
		logger.Error("image upload failed", "field", field, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store image")
		return
	}

	updated, err := update(h.Users, ctx, user.ID, url)
	if err != nil {
		logger.Error("image update failed", "field", field, "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to update image")
		return
	}

	// Old object is deleted in the background after the new one is live.
	if h.Janitor != nil {
		h.Janitor.Enqueue(previous(user))
	}

	respondData(ctx, w, http.StatusOK, field+" updated successfully", updated.Sanitized())
}

func setAuthCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{auth.AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h AccountHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
