package handlers

import (
	"net/http"

	"voice-transcoder/internal/startup"
)

// VersionResponse is the build information plus the deployed transport.
type VersionResponse struct {
	startup.BuildInfo
	Mode        string `json:"mode,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	resp := VersionResponse{BuildInfo: startup.GetBuildInfo()}
	if h.transcoder != nil {
		resp.Mode = string(h.transcoder.Mode())
		resp.ContentType = h.transcoder.ContentType()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}
