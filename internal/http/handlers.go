package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/middleware/security"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
)

const maxRunBody = 4 << 10

type runRequest struct {
	Month string `json:"month" validate:"omitempty,datetime=2006-01"`
}

type queuedResponse struct {
	Status    string `json:"status"`
	Month     string `json:"month"`
	RequestID string `json:"request_id"`
}

type summaryResponse struct {
	Month string                `json:"month"`
	Stats core.Stats            `json:"stats"`
	Rows  []core.MonthlySummary `json:"rows"`
}

type errorResponse struct {
	Error string `json:"error"`
	Month string `json:"month,omitempty"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	month, err := s.decodeRunMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.publisher != nil {
		msg, err := s.publisher.PublishRunRequest(ctx, month, "http:"+security.ClientIP(r))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to queue run request", log.FieldMonth, month, log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "could not queue run", Month: month})
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{Status: "queued", Month: month, RequestID: msg.RequestID})
		return
	}

	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runs are not available on this server")
		return
	}

	rep, err := s.runner.Run(ctx, month, services.WithTrigger(core.TriggerHTTP))
	s.InvalidateSummary(month)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Month: month})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// decodeRunMonth reads {"month":"YYYY-MM"}; an empty body or month means
// the previous month.
func (s *Server) decodeRunMonth(r *http.Request) (string, error) {
	var req runRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRunBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("invalid request body: %v", err)
	}

	req.Month = strings.TrimSpace(req.Month)
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid month %q: expected YYYY-MM", req.Month)
	}
	if req.Month == "" {
		return period.PreviousMonth(s.now()).String(), nil
	}
	p, err := period.Parse(req.Month)
	if err != nil {
		return "", fmt.Errorf("invalid month %q: expected YYYY-MM", req.Month)
	}
	return p.String(), nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	p, err := period.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid month %q: expected YYYY-MM", raw))
		return
	}
	month := p.String()

	rows, ok := s.summaryCache.Get(month)
	if !ok {
		if s.summaries == nil {
			writeError(w, http.StatusServiceUnavailable, "summary store not configured")
			return
		}
		rows, err = s.summaries.ListMonthlySummary(ctx, month)
		if err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Failed to read summary", log.FieldMonth, month, log.FieldError, err)
			writeError(w, http.StatusInternalServerError, "could not read summary")
			return
		}
		if len(rows) > 0 {
			s.summaryCache.Set(month, rows)
		}
	}

	if len(rows) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no summary for month", Month: month})
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Month: month, Stats: core.ComputeStats(rows), Rows: rows})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, security.ClientIP(r), log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
