package handlers

import (
	"net/http"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/version"
)

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// Version reports build metadata.
func Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	})
}
