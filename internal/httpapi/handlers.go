package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"missioncontrol/internal/errors"
	"missioncontrol/internal/telemetry"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("database ping failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(telemetry.PrometheusText(s.metrics.Snapshot())))
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.List(r.Context())
	if err != nil {
		s.internalError(w, err, "list integrations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"integrations": items})
}

func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	in, err := s.service.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, errors.ErrIntegrationNotFound):
		writeError(w, http.StatusNotFound, "integration not found")
	case err != nil:
		s.internalError(w, err, "get integration")
	default:
		writeJSON(w, http.StatusOK, in)
	}
}

func (s *Server) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := s.service.RunTest(r.Context(), id)
	switch {
	case errors.Is(err, errors.ErrIntegrationNotFound):
		writeError(w, http.StatusNotFound, "integration not found")
	case err != nil:
		s.logger.Error().Err(err).Str("integration_id", id).Msg("integration test failed")
		writeError(w, http.StatusInternalServerError, "Test failed")
	default:
		writeJSON(w, http.StatusOK, in)
	}
}

func (s *Server) handleHealthChecks(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	checks, err := s.service.History(r.Context(), r.PathValue("id"), limit)
	switch {
	case errors.Is(err, errors.ErrIntegrationNotFound):
		writeError(w, http.StatusNotFound, "integration not found")
	case err != nil:
		s.internalError(w, err, "list health checks")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"health_checks": checks})
	}
}

// parseLimit applies the default for an empty value and caps large ones.
func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, maxHistoryLimit), true
}

func (s *Server) internalError(w http.ResponseWriter, err error, op string) {
	s.logger.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
