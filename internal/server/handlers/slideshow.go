package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/server/middleware"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/slideshow"
)

// Registry resolves a configured slideshow instance by entry ID.
type Registry interface {
	Lookup(entryID string) (*slideshow.Service, bool)
}

// Slideshow serves the payload, trigger and image-proxy endpoints for
// every registered entry.
type Slideshow struct {
	registry Registry
	logger   *zap.Logger
}

// NewSlideshow creates the handler set.
func NewSlideshow(registry Registry, logger *zap.Logger) *Slideshow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Slideshow{registry: registry, logger: logger}
}

// service resolves the entry from the route, writing a 404 when the
// entry is unknown.
func (h *Slideshow) service(w http.ResponseWriter, r *http.Request) (*slideshow.Service, bool) {
	entryID := chi.URLParam(r, "entryID")
	svc, ok := h.registry.Lookup(entryID)
	if !ok {
		middleware.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "unknown entry "+entryID)
		return nil, false
	}
	return svc, true
}

// payloadView is the payload contract consumed by the presentation
// layer, plus the projected rotation index.
type payloadView struct {
	*slideshow.FolderPayload
	PhotoCount   int  `json:"photo_count"`
	CurrentIndex *int `json:"current_index,omitempty"`
}

// Current returns the committed folder payload.
// GET /api/slideshow/{entryID}
func (h *Slideshow) Current(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	payload := svc.Current()
	if payload == nil {
		middleware.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "no folder selected yet")
		return
	}

	view := payloadView{FolderPayload: payload, PhotoCount: payload.PhotoCount()}
	if idx, ok := svc.CurrentIndex(time.Now()); ok {
		view.CurrentIndex = &idx
	}
	writeJSON(w, view)
}

// Folders returns the eligible folder set.
// GET /api/slideshow/{entryID}/folders
func (h *Slideshow) Folders(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	folders, err := svc.Folders(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"folders": folders})
}

// Refresh switches to a new random folder. Concurrent refreshes
// coalesce onto the in-flight one.
// POST /api/slideshow/{entryID}/refresh
func (h *Slideshow) Refresh(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	payload, err := svc.RefreshRandom(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, payloadView{FolderPayload: payload, PhotoCount: payload.PhotoCount()})
}

// selectRequest is the body of a folder selection.
type selectRequest struct {
	FolderPath string `json:"folder_path"`
}

// SelectFolder selects a specific folder. Fails with 409 when a
// refresh is already in flight.
// POST /api/slideshow/{entryID}/folder
func (h *Slideshow) SelectFolder(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FolderPath == "" {
		middleware.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "folder_path is required")
		return
	}

	payload, err := svc.SelectFolder(r.Context(), req.FolderPath)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, payloadView{FolderPayload: payload, PhotoCount: payload.PhotoCount()})
}

// RefreshToken forces re-authentication and re-derives item URLs.
// POST /api/slideshow/{entryID}/token/refresh
func (h *Slideshow) RefreshToken(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	if err := svc.RefreshToken(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// imageCacheControl bounds downstream caching: a (entry, index) pair
// maps to the same photo until the next refresh, never forever.
const imageCacheControl = "public, max-age=3600"

// Image proxies the photo at the given index of the committed payload.
// GET /image/{entryID}/{index}
func (h *Slideshow) Image(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "index must be an integer")
		return
	}

	body, contentType, err := svc.Resolve(r.Context(), index)
	if err != nil {
		h.logger.Warn("image resolution failed",
			zap.String("entry_id", svc.EntryID()),
			zap.Int("index", index),
			zap.Error(err))
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", imageCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
