package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/propease/announce/internal/dispatch"
	"github.com/propease/announce/internal/models"
)

// SendRequest is the request body for POST /api/v1/announcements/send
type SendRequest struct {
	AnnouncementID string `json:"announcementId"`
}

// AnnouncementSummary is the announcement slice of a send response
type AnnouncementSummary struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Methods []string `json:"methods"`
}

// Stats reports a dispatch run's aggregate counts
type Stats struct {
	TotalTenants int `json:"total_tenants"`
	Processed    int `json:"processed"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
	Remaining    int `json:"remaining"`
}

// SendResponse is the response for POST /api/v1/announcements/send
type SendResponse struct {
	Success      bool                     `json:"success"`
	Message      string                   `json:"message"`
	Announcement AnnouncementSummary      `json:"announcement"`
	Stats        Stats                    `json:"stats"`
	Failures     []dispatch.MessageResult `json:"failures,omitempty"`
	JobID        string                   `json:"job_id"`
}

// StatusResponse is the response for GET /api/v1/announcements/{id}/status
type StatusResponse struct {
	AnnouncementID string      `json:"announcement_id"`
	Status         string      `json:"status"`
	IssueDate      *time.Time  `json:"issue_date,omitempty"`
	Job            *models.Job `json:"job,omitempty"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleSend handles POST /api/v1/announcements/send
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AnnouncementID == "" {
		s.sendError(w, http.StatusBadRequest, "announcementId is required")
		return
	}

	outcome, err := s.dispatcher.Dispatch(r.Context(), req.AnnouncementID)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNotFound):
			s.sendError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, dispatch.ErrNoTargets),
			errors.Is(err, dispatch.ErrNoRecipients),
			errors.Is(err, dispatch.ErrAlreadySent),
			errors.Is(err, dispatch.ErrCancelled):
			s.sendError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("dispatch failed", "announcement_id", req.AnnouncementID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to dispatch announcement")
		}
		return
	}

	msg := fmt.Sprintf("Announcement sent to %d tenants", outcome.Processed)
	if outcome.Remaining > 0 {
		msg = fmt.Sprintf("Announcement dispatch started: %d of %d tenants processed, remainder continues in the background",
			outcome.Processed, outcome.TotalTenants)
	}

	s.sendJSON(w, http.StatusOK, SendResponse{
		Success: true,
		Message: msg,
		Announcement: AnnouncementSummary{
			ID:      outcome.Announcement.ID,
			Title:   outcome.Announcement.Title,
			Type:    outcome.Announcement.Type,
			Methods: outcome.Announcement.Methods,
		},
		Stats: Stats{
			TotalTenants: outcome.TotalTenants,
			Processed:    outcome.Processed,
			Sent:         outcome.Sent,
			Failed:       outcome.Failed,
			Remaining:    outcome.Remaining,
		},
		Failures: outcome.Failures,
		JobID:    outcome.JobID,
	})
}

// handleAnnouncementStatus handles GET /api/v1/announcements/{id}/status
func (s *Server) handleAnnouncementStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.announcements.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get announcement", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get announcement")
		return
	}
	if a == nil {
		s.sendError(w, http.StatusNotFound, "Announcement not found")
		return
	}

	job, err := s.jobs.LatestJobForAnnouncement(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get job", "announcement_id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	s.sendJSON(w, http.StatusOK, StatusResponse{
		AnnouncementID: a.ID,
		Status:         a.Status,
		IssueDate:      a.IssueDate,
		Job:            job,
	})
}

// handleJobStatus handles GET /api/v1/jobs/{id}
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get job", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	if job == nil {
		s.sendError(w, http.StatusNotFound, "Job not found")
		return
	}

	s.sendJSON(w, http.StatusOK, job)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
