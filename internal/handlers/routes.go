package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Tokens        TokenManager
	Media         MediaUploader
	Janitor       MediaJanitor
	Profiles      ProfileReader
	Invalidator   ProfileInvalidator
	Subscriptions SubscriptionStore
	Watches       WatchStore
	LoginLimiter  RateLimiter
	SignupLimiter RateLimiter

	// RequireAuth is the assembled authentication middleware applied to
	// protected routes.
	RequireAuth func(http.Handler) http.Handler
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	accounts := AccountHandler{
		Users:         deps.Users,
		Tokens:        deps.Tokens,
		Media:         deps.Media,
		Janitor:       deps.Janitor,
		LoginLimiter:  deps.LoginLimiter,
		SignupLimiter: deps.SignupLimiter,
	}
	channels := ChannelHandler{
		Users:         deps.Users,
		Profiles:      deps.Profiles,
		Subscriptions: deps.Subscriptions,
		Watches:       deps.Watches,
		Invalidator:   deps.Invalidator,
	}

	guard := deps.RequireAuth
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	protected := func(h http.HandlerFunc) http.Handler { return guard(h) }

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/register", accounts.Register)
	mux.HandleFunc("POST /api/v1/users/login", accounts.Login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", accounts.RefreshToken)

	mux.Handle("POST /api/v1/users/logout", protected(accounts.Logout))
	mux.Handle("PATCH /api/v1/users/change-password", protected(accounts.ChangePassword))
	mux.Handle("GET /api/v1/users/current-user", protected(accounts.CurrentUser))
	mux.Handle("PATCH /api/v1/users/update-account", protected(accounts.UpdateAccount))
	mux.Handle("PATCH /api/v1/users/avatar", protected(accounts.UpdateAvatar))
	mux.Handle("PATCH /api/v1/users/cover-img", protected(accounts.UpdateCoverImage))

	mux.Handle("GET /api/v1/users/c/{handle}", protected(channels.Profile))
	mux.Handle("GET /api/v1/users/history", protected(channels.History))
	mux.Handle("POST /api/v1/users/history/{videoID}", protected(channels.RecordWatch))
	mux.Handle("POST /api/v1/subscriptions/{handle}", protected(channels.ToggleSubscription))
}
