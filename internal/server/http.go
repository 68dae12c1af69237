package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/callsheet/internal/api"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *CallSheetServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/claims", s.handleClaim)
	mux.HandleFunc("POST /v1/tickets/{position}/submit", s.handleSubmit)
	mux.HandleFunc("POST /v1/tickets/{position}/release", s.handleRelease)
	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/sheets", s.handleSheets)
	mux.HandleFunc("GET /v1/roster", s.handleRoster)
	mux.HandleFunc("GET /v1/journal", s.handleJournal)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, mux)
}

// handleClaim handles POST /v1/claims.
func (s *CallSheetServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req api.ClaimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.claim(r.Context(), req)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleSubmit handles POST /v1/tickets/{position}/submit.
func (s *CallSheetServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	pos, ok := pathPosition(w, r)
	if !ok {
		return
	}
	var req api.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Position = pos
	resp, err := s.submit(r.Context(), req)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRelease handles POST /v1/tickets/{position}/release.
func (s *CallSheetServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	pos, ok := pathPosition(w, r)
	if !ok {
		return
	}
	var req api.ReleaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Position = pos
	if _, err := s.release(r.Context(), req); err != nil {
		writeOpError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSnapshot handles GET /v1/snapshot.
func (s *CallSheetServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.engine.Snapshot(r.Context())
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tbl)
}

func (s *CallSheetServer) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *CallSheetServer) handleSheets(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sheets(r.Context())
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /v1/health.
func (s *CallSheetServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

// pathPosition parses the {position} path segment.
func pathPosition(w http.ResponseWriter, r *http.Request) (int, bool) {
	pos, err := strconv.Atoi(r.PathValue("position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position "+strconv.Quote(r.PathValue("position")))
		return 0, false
	}
	return pos, true
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeOpError writes the error envelope for an operation failure. Server
// errors are logged; client errors and empty claims are not.
func writeOpError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		slog.Warn("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, errorBody(err))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorBody{Error: message})
}
