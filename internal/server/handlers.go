package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
)

const defaultListLimit = 20

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, invalid("expected multipart form with a \"file\" field"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, invalid("file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	if !constants.IsAllowedExt(filepath.Ext(header.Filename)) {
		s.writeError(w, r, invalid(fmt.Sprintf("unsupported file type %q: only PDF is accepted", filepath.Ext(header.Filename))))
		return
	}

	v := common.NewValidator()
	var sub Submission
	if raw := r.URL.Query().Get("chunk_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, invalid("chunk_size must be an integer"))
			return
		}
		v.Field("chunk_size", n, common.Min(1))
		sub.ChunkSize = n
	}
	if raw := r.URL.Query().Get("dedup"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, invalid("dedup must be a boolean"))
			return
		}
		sub.Dedup = &b
	}
	if err := v.AsAppError("INVALID_ARGUMENT"); err != nil {
		s.writeError(w, r, err)
		return
	}

	path, err := s.storeUpload(uuid.New(), file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sub.SourceName = filepath.Base(header.Filename)
	sub.Path = path

	run, err := s.Submit(r.Context(), sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID.String(),
		"status": run.Status,
	})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, invalid("limit must be a positive integer"))
			return
		}
		limit = n
	}
	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*entity.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := runIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := runIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	art, err := s.runs.GetArtifact(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", constants.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

func (s *Service) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.models == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "model listing unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	models, err := s.models.ListModels(ctx)
	if err != nil {
		s.logger.Warn("http.models.failed", "req_id", common.RequestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "model backend unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context(), 2*time.Second); err != nil {
			s.logger.Error("http.health.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func runIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	v := common.NewValidator().Field("id", raw, common.Required, common.UUID)
	if err := v.AsAppError("INVALID_ARGUMENT"); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}
