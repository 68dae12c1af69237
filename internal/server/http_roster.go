package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/callsheet/internal/api"
)

// handleRoster handles GET /v1/roster.
// Returns the live caller roster from the presence tracker. The optional
// stale parameter ("10m") drops callers quiet for longer than that.
func (s *CallSheetServer) handleRoster(w http.ResponseWriter, r *http.Request) {
	entries, err := s.roster(api.RosterRequest{Stale: r.URL.Query().Get("stale")})
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RosterResponse{Callers: entries})
}

// handleJournal handles GET /v1/journal?actor=&kind=&limit=.
func (s *CallSheetServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := api.JournalRequest{Actor: q.Get("actor"), Kind: q.Get("kind")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit "+strconv.Quote(v))
			return
		}
		req.Limit = n
	}

	resp, err := s.journalEvents(r.Context(), req)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
