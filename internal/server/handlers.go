package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/analyze"
	"github.com/chronicleworks/wikichron/internal/media"
	"github.com/chronicleworks/wikichron/internal/scrape"
	"github.com/chronicleworks/wikichron/internal/storage"
)

// artifactStatus reports one canonical artifact's presence and size.
type artifactStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Bytes  int64  `json:"bytes"`
}

// statusArtifacts is the fixed set of artifacts the status endpoint
// reports on, in pipeline order.
var statusArtifacts = []struct {
	name string
	path string
}{
	{"page_titles", scrape.PageTitlesPath},
	{"scrape_summary", scrape.SummaryPath},
	{"media_index", media.IndexPath},
	{"timeline", analyze.TimelinePath},
	{"timeline_markdown", analyze.TimelineMarkdownPath},
	{"timeline_with_media", analyze.LinkedTimelinePath},
	{"summary", analyze.SummaryPath},
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The artifact store is the only downstream; probe it.
	if _, err := s.blobs.Exists(r.Context(), scrape.PageTitlesPath); err != nil {
		writeError(w, http.StatusServiceUnavailable, "artifact store unavailable", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	out := make([]artifactStatus, 0, len(statusArtifacts))
	for _, a := range statusArtifacts {
		st := artifactStatus{Name: a.name, Path: a.path}
		size, err := s.blobs.Size(r.Context(), a.path)
		switch {
		case err == nil:
			st.Exists = true
			st.Bytes = size
		case errors.Is(err, storage.ErrNotExist):
		default:
			writeError(w, http.StatusInternalServerError, "artifact store error", s.logger)
			return
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": out}, s.logger)
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	data, err := s.blobs.Get(r.Context(), analyze.TimelinePath)
	if errors.Is(err, storage.ErrNotExist) {
		writeError(w, http.StatusNotFound, "timeline not generated yet", s.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "artifact store error", s.logger)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("timeline write failed", zap.Error(err))
	}
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	data, err := s.blobs.Get(r.Context(), analyze.SummaryPath)
	if errors.Is(err, storage.ErrNotExist) {
		writeError(w, http.StatusNotFound, "summary not generated yet", s.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "artifact store error", s.logger)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("summary write failed", zap.Error(err))
	}
}

func (s *Server) artifact(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if rel == "" || strings.Contains(rel, "..") {
		writeError(w, http.StatusBadRequest, "invalid artifact path", s.logger)
		return
	}

	data, err := s.blobs.Get(r.Context(), rel)
	if errors.Is(err, storage.ErrNotExist) {
		writeError(w, http.StatusNotFound, "artifact not found", s.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "artifact store error", s.logger)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(rel))
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("artifact write failed", zap.Error(err))
	}
}

func contentTypeFor(rel string) string {
	switch path.Ext(rel) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
