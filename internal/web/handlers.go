package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkralik/photo-tagger/internal/photohost"
	"github.com/mkralik/photo-tagger/internal/pipeline"
)

const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	availability := s.provider.Probe(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"name":      s.provider.Name(),
		"available": availability.Available,
		"detail":    availability.Detail,
		"usage":     s.provider.Usage(),
	})
}

func (s *Server) handleListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := s.host.ListAlbums(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(albums),
		"albums": albums,
	})
}

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	album, err := s.host.GetAlbum(r.Context(), uid)
	if err != nil {
		if photohost.IsNotFoundError(err) {
			respondError(w, http.StatusNotFound, "album not found")
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, album)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	items, err := s.host.ListAlbumItems(r.Context(), uid)
	if err != nil {
		if photohost.IsNotFoundError(err) {
			respondError(w, http.StatusNotFound, "album not found")
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"album_uid": uid,
		"count":     len(items),
		"items":     items,
	})
}

type startJobRequest struct {
	AlbumUID string `json:"album_uid"`
	DryRun   bool   `json:"dry_run"`
	Force    bool   `json:"force"`
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.AlbumUID == "" {
		respondError(w, http.StatusBadRequest, "album_uid is required")
		return
	}

	runner := s.newRunner(pipeline.Options{
		DryRun:         req.DryRun,
		ForceReprocess: req.Force,
	})
	job := s.jobs.Start(req.AlbumUID, req.DryRun, req.Force, runner)
	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

// handlePreview starts a dry-run job over the album. Shorthand for
// POST /process with dry_run set.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	runner := s.newRunner(pipeline.Options{DryRun: true})
	job := s.jobs.Start(uid, true, false, runner)
	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "jobID"))
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "jobID"))
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, job.Snapshot())
}
