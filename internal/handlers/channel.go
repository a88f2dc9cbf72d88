package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/videotube/accounts/internal/services"
)

// ChannelHandler serves channel pages, subscriptions and watch history.
type ChannelHandler struct {
	channels *services.ChannelService
	logger   *slog.Logger
}

// NewChannelHandler constructs a ChannelHandler.
func NewChannelHandler(channels *services.ChannelService, logger *slog.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, logger: logger}
}

func (h *ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	viewer, _ := userFromContext(r.Context())
	profile, err := h.channels.Profile(r.Context(), chi.URLParam(r, "username"), viewer.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, profile, "User channel fetched successfully")
}

func (h *ChannelHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	if err := h.channels.Subscribe(r.Context(), user.ID, chi.URLParam(r, "username")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"subscribed": true}, "Subscribed successfully")
}

func (h *ChannelHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	if err := h.channels.Unsubscribe(r.Context(), user.ID, chi.URLParam(r, "username")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"subscribed": false}, "Unsubscribed successfully")
}

func (h *ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	history, err := h.channels.WatchHistory(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, history, "Watch history fetched successfully")
}

type recordWatchRequest struct {
	VideoID string `json:"videoId"`
}

func (h *ChannelHandler) RecordWatch(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req recordWatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.channels.RecordWatch(r.Context(), user.ID, req.VideoID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{}, "Watch history updated")
}
