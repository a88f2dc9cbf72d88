package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/videotube/accounts/internal/services"
	"github.com/videotube/accounts/types"
)

// UserHandler serves the authenticated user's own account.
type UserHandler struct {
	users    *services.UserService
	media    MediaStore
	maxBytes int64
	logger   *slog.Logger
}

// NewUserHandler constructs a UserHandler. media may be nil, in which
// case image updates are rejected.
func NewUserHandler(users *services.UserService, media MediaStore, maxUploadBytes int64, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, media: media, maxBytes: maxUploadBytes, logger: logger}
}

func (h *UserHandler) Current(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	current, err := h.users.Current(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, current, "Current user fetched successfully")
}

type updateDetailsRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h *UserHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req updateDetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.users.UpdateDetails(r.Context(), user.ID, req.FullName, req.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, updated, "Account details updated successfully")
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, formFieldAvatar, folderAvatars, h.users.UpdateAvatar, "Avatar updated successfully")
}

func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, formFieldCoverImage, folderCovers, h.users.UpdateCoverImage, "Cover image updated successfully")
}

func (h *UserHandler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	field, folder string,
	update func(ctx context.Context, id, url string) (types.User, error),
	message string,
) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	if err := parseMultipart(w, r, h.maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	url, ok, err := uploadFormFile(r, h.media, field, folder)
	if err != nil {
		writeUploadError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, field+" file is missing")
		return
	}

	updated, err := update(r.Context(), user.ID, url)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, updated, message)
}
