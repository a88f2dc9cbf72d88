package handlers

import (
	"log/slog"
	"net/http"

	"github.com/videotube/accounts/internal/services"
)

// AuthHandler serves registration and the session lifecycle.
type AuthHandler struct {
	sessions *services.SessionService
	users    *services.UserService
	media    MediaStore
	cookies  CookieConfig
	maxBytes int64
	logger   *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided services.
func NewAuthHandler(
	sessions *services.SessionService,
	users *services.UserService,
	media MediaStore,
	cookies CookieConfig,
	maxUploadBytes int64,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		users:    users,
		media:    media,
		cookies:  cookies,
		maxBytes: maxUploadBytes,
		logger:   logger,
	}
}

// Register creates an account from a multipart form. The avatar file is
// required; the cover image is optional. Uploaded images are discarded when
// the account cannot be created.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	in := services.RegisterInput{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Password: r.FormValue("password"),
	}
	if err := h.users.ValidateRegistration(r.Context(), in); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	avatar, ok, err := uploadFormFile(r, h.media, formFieldAvatar, folderAvatars)
	if err != nil {
		writeUploadError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	cover, _, err := uploadFormFile(r, h.media, formFieldCoverImage, folderCovers)
	if err != nil {
		discardUploads(r, h.media, h.logger, avatar)
		writeUploadError(w, r, h.logger, err)
		return
	}
	in.Avatar = avatar
	in.CoverImage = cover

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		discardUploads(r, h.media, h.logger, avatar, cover)
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, user, "User registered successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.cookies.setSession(w, session)
	writeData(w, http.StatusOK, session, "User logged in successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates the session. The refresh token cookie takes precedence
// over a token in the body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := cookieValue(r, refreshTokenCookie)
	if presented == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		presented = req.RefreshToken
	}

	session, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.cookies.setSession(w, session)
	writeData(w, http.StatusOK, map[string]string{
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
	}, "Access token refreshed")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	if err := h.sessions.Logout(r.Context(), user.ID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.cookies.clearSession(w)
	writeData(w, http.StatusOK, map[string]any{}, "User logged out")
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req services.ChangePasswordInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.sessions.ChangePassword(r.Context(), user.ID, req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{}, "Password changed successfully")
}
