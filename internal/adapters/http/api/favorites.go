package api

import (
	"net/http"
	"strings"
)

// FavoritesHandler serves the best scored post recorded for an actor.
type FavoritesHandler struct {
	deps Dependencies
}

// NewFavoritesHandler creates a new favorites handler.
func NewFavoritesHandler(deps Dependencies) *FavoritesHandler {
	return &FavoritesHandler{deps: deps}
}

// HandleGetFavorite handles GET /favorites/{did} requests.
func (h *FavoritesHandler) HandleGetFavorite(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_favorite"
	did := strings.TrimSpace(r.PathValue("did"))
	if !strings.HasPrefix(did, "did:") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	fav, ok, err := h.deps.FavoritePost(r.Context(), did)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrUnavailable, err))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, fav)
}
