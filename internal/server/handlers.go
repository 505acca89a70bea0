package server

import (
	"net/http"

	"github.com/jensholdgaard/player-auction/internal/admin"
	"github.com/jensholdgaard/player-auction/internal/auction"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/server/middleware"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// pinBody is the optional body of administrative routes.
type pinBody struct {
	PIN string `json:"pin"`
}

type statusBody struct {
	Status tournament.Status `json:"status"`
	PIN    string            `json:"pin"`
}

type listResponse struct {
	Tournaments []tournament.Tournament `json:"tournaments"`
}

type auditResponse struct {
	Events []event.Event `json:"events"`
}

// getAuction serves GET /api/tournaments/{slug}/auction.
func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	snap, err := s.auctions.Get(r.Context(), r.PathValue("slug"), s.credentials(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// postAuction serves POST /api/tournaments/{slug}/auction.
func (s *Server) postAuction(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := auction.DecodeRequest(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.auctions.Dispatch(r.Context(), r.PathValue("slug"), s.credentials(r, req.PIN), req.Action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// listTournaments serves GET /api/tournaments.
func (s *Server) listTournaments(w http.ResponseWriter, r *http.Request) {
	list, err := s.admin.ListPublished(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Tournaments: list})
}

// createTournament serves POST /api/tournaments.
func (s *Server) createTournament(w http.ResponseWriter, r *http.Request) {
	var in admin.CreateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.admin.Create(r.Context(), in, middleware.ClientIP(r, s.cfg.TrustProxy))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/tournaments/"+created.Tournament.Slug+"/auction")
	writeJSON(w, http.StatusCreated, created)
}

// setPublished serves PUT and DELETE /api/tournaments/{slug}/publish.
func (s *Server) setPublished(published bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body pinBody
		if err := decodeJSON(w, r, &body, true); err != nil {
			s.writeError(w, r, err)
			return
		}
		t, err := s.admin.SetPublished(r.Context(), r.PathValue("slug"), s.credentials(r, body.PIN), published)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// setStatus serves PUT /api/tournaments/{slug}/status.
func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.admin.SetStatus(r.Context(), r.PathValue("slug"), s.credentials(r, body.PIN), body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// deleteTournament serves DELETE /api/tournaments/{slug}?confirm=true.
func (s *Server) deleteTournament(w http.ResponseWriter, r *http.Request) {
	var body pinBody
	if err := decodeJSON(w, r, &body, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	confirm := r.URL.Query().Get("confirm") == "true"
	if err := s.admin.Delete(r.Context(), r.PathValue("slug"), s.credentials(r, body.PIN), confirm); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// auditTrail serves GET /api/tournaments/{slug}/audit?limit=N.
func (s *Server) auditTrail(w http.ResponseWriter, r *http.Request) {
	events, err := s.admin.Audit(r.Context(), r.PathValue("slug"), s.credentials(r, ""), auditLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{Events: events})
}
