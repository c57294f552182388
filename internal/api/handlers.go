package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/export"
	"github.com/sells-group/lead-enrichment/internal/jobs"
	"github.com/sells-group/lead-enrichment/internal/lead"
)

type enrichRequest struct {
	Rows   []lead.Row `json:"rows"`
	Source string     `json:"source,omitempty"`
}

type enrichResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
	Total  int         `json:"total"`
}

func (s *Server) submitEnrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows is required")
		return
	}

	md := map[string]any{"source": "api"}
	if req.Source != "" {
		md["source"] = req.Source
	}
	job, err := s.tracker.Create(r.Context(), jobs.TypeEnrichment, len(req.Rows), md)
	if err != nil {
		internalError(w, "create job", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.runner.RunJob(s.ctx, s.tracker, job.ID, req.Rows); err != nil {
			zap.L().Error("api: job run failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, enrichResponse{JobID: job.ID, Status: job.Status, Total: len(req.Rows)})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.tracker.ListAll(r.Context(), queryLimit(r, jobs.DefaultListLimit))
	if err != nil {
		internalError(w, "list jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": nonNil(list)})
}

func (s *Server) listActiveJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.tracker.ListActive(r.Context())
	if err != nil {
		internalError(w, "list active jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": nonNil(list)})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalError(w, "get job", err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled via api"
	}
	if err := s.tracker.Cancel(r.Context(), id, req.Reason); err != nil {
		internalError(w, "cancel job", err)
		return
	}
	job, err := s.tracker.Get(r.Context(), id)
	if err != nil {
		internalError(w, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	all, err := s.checkpoint.LoadAll(r.Context())
	if err != nil {
		internalError(w, "load leads", err)
		return
	}
	total := len(all)
	if limit := queryLimit(r, 0); limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "leads": nonNil(all)})
}

func (s *Server) exportLeads(w http.ResponseWriter, r *http.Request) {
	all, err := s.checkpoint.LoadAll(r.Context())
	if err != nil {
		internalError(w, "load leads", err)
		return
	}
	name := fmt.Sprintf("enriched-leads-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.Write(w, all); err != nil {
		zap.L().Error("api: export leads", zap.Error(err))
	}
}

type leadStatus struct {
	Key       string `json:"key"`
	Processed bool   `json:"processed"`
}

func (s *Server) leadStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows []lead.Row `json:"rows"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	out := make([]leadStatus, 0, len(req.Rows))
	for _, row := range req.Rows {
		done, err := s.checkpoint.IsProcessed(r.Context(), row)
		if err != nil {
			internalError(w, "lead status", err)
			return
		}
		out = append(out, leadStatus{Key: lead.Key(row), Processed: done})
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": out})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
