// Package handlers implements the HTTP endpoints: the image proxy,
// the slideshow payload and trigger API, health and version.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/server/middleware"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/graph"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/slideshow"
)

// writeJSON emits a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors onto HTTP statuses and the standard
// error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, slideshow.ErrNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, slideshow.ErrFolderNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "FOLDER_NOT_FOUND", err.Error())
	case errors.Is(err, slideshow.ErrNoEligibleFolder):
		middleware.WriteError(w, r, http.StatusNotFound, "NO_ELIGIBLE_FOLDER", err.Error())
	case errors.Is(err, slideshow.ErrRefreshBusy):
		middleware.WriteError(w, r, http.StatusConflict, "REFRESH_BUSY", err.Error())
	case graph.IsAuth(err):
		middleware.WriteError(w, r, http.StatusBadGateway, "AUTH_FAILED", err.Error())
	case graph.IsThrottled(err):
		middleware.WriteError(w, r, http.StatusBadGateway, "UPSTREAM_THROTTLED", err.Error())
	case graph.IsNotFound(err):
		middleware.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		middleware.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
