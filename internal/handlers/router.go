package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/videotube/accounts/internal/ratelimit"
	"github.com/videotube/accounts/internal/services"
)

// Deps are the collaborators of the user routes.
type Deps struct {
	Sessions       *services.SessionService
	Users          *services.UserService
	Channels       *services.ChannelService
	Media          MediaStore
	LoginLimiter   ratelimit.Limiter
	Cookies        CookieConfig
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// UsersRouter registers the account routes on r.
func UsersRouter(r chi.Router, deps Deps) {
	authn := NewAuthenticator(deps.Sessions, deps.Logger)
	auth := NewAuthHandler(deps.Sessions, deps.Users, deps.Media, deps.Cookies, deps.MaxUploadBytes, deps.Logger)
	users := NewUserHandler(deps.Users, deps.Media, deps.MaxUploadBytes, deps.Logger)
	channels := NewChannelHandler(deps.Channels, deps.Logger)

	loginLimit := func(next http.Handler) http.Handler { return next }
	if deps.LoginLimiter != nil {
		loginLimit = RateLimit(deps.LoginLimiter, deps.Logger)
	}

	r.Post("/register", auth.Register)
	r.With(loginLimit).Post("/login", auth.Login)
	r.Post("/refresh-token", auth.Refresh)
	r.With(authn.OptionalAuth).Get("/c/{username}", channels.Profile)

	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth)

		r.Post("/logout", auth.Logout)
		r.Post("/change-password", auth.ChangePassword)
		r.Get("/current-user", users.Current)
		r.Patch("/update-details", users.UpdateDetails)
		r.Patch("/avatar", users.UpdateAvatar)
		r.Patch("/cover-image", users.UpdateCoverImage)
		r.Post("/c/{username}/subscription", channels.Subscribe)
		r.Delete("/c/{username}/subscription", channels.Unsubscribe)
		r.Get("/history", channels.WatchHistory)
		r.Post("/history", channels.RecordWatch)
	})
}
