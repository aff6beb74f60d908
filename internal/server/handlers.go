package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/postserve/internal/journal"
	"github.com/mattjoyce/postserve/internal/webhook"
)

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Stubs         int    `json:"stubs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// deliveryResponse is the admin view of a journal entry.
type deliveryResponse struct {
	ID           string                `json:"id"`
	ServeEventID string                `json:"serve_event_id"`
	Stub         string                `json:"stub,omitempty"`
	Status       journal.Status        `json:"status"`
	Method       webhook.Method        `json:"method"`
	URL          string                `json:"url"`
	Headers      webhook.Header        `json:"headers"`
	Body         *string               `json:"body,omitempty"`
	HTTPStatus   int                   `json:"http_status,omitempty"`
	Response     *webhook.ResponseView `json:"response,omitempty"`
	Error        string                `json:"error,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	CompletedAt  time.Time             `json:"completed_at"`
}

func toDeliveryResponse(d *journal.Delivery) deliveryResponse {
	out := deliveryResponse{
		ID:           d.ID,
		ServeEventID: d.ServeEventID,
		Stub:         d.Stub,
		Status:       d.Status,
		Method:       d.Request.Method(),
		URL:          d.Request.URL(),
		Headers:      d.Request.Header(),
		Error:        d.Error,
		CreatedAt:    d.CreatedAt,
		CompletedAt:  d.CompletedAt,
	}
	if b, ok := d.Request.Body(); ok {
		out.Body = &b
	}
	if view, ok := d.ResponseView(); ok {
		out.HTTPStatus = d.Response.Status
		out.Response = &view
	}
	return out
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Stubs:         len(s.stubs),
	})
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		s.writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	filter := journal.ListFilter{
		ServeEventID: r.URL.Query().Get("serve_event_id"),
		Limit:        50,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	list, err := s.deliveries.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list deliveries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	out := make([]deliveryResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDeliveryResponse(d))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		s.writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	d, err := s.deliveries.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, journal.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "delivery not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get delivery", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get delivery")
		return
	}
	s.writeJSON(w, http.StatusOK, toDeliveryResponse(d))
}

type pruneResponse struct {
	Deleted int64     `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}

// handlePruneDeliveries deletes deliveries completed before now minus older_than.
func (s *Server) handlePruneDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		s.writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	olderThan, err := time.ParseDuration(r.URL.Query().Get("older_than"))
	if err != nil || olderThan <= 0 {
		s.writeError(w, http.StatusBadRequest, "older_than must be a positive duration")
		return
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := s.deliveries.Prune(r.Context(), cutoff)
	if err != nil {
		s.logger.Error("failed to prune deliveries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to prune deliveries")
		return
	}
	s.logger.Info("pruned deliveries", "deleted", n, "older_than", olderThan.String())
	s.writeJSON(w, http.StatusOK, pruneResponse{Deleted: n, Cutoff: cutoff})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
