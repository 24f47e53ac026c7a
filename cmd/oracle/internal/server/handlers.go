package server

import (
	"net/http"
	"strconv"

	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/protocol"
	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "ts": models.NowISO()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.authn.Login(req.User, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, protocol.LoginResponse{Token: token})
}

func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.ListPrices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prices)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetPrice(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpsertPrice(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var req protocol.UpsertPriceRequest
	if !s.decode(w, r, &req) {
		return
	}

	var rec models.PriceRecord
	var err error
	if strict := r.URL.Query().Get("strict"); strict == "1" || strict == "true" {
		rec, err = s.svc.CreatePrice(r.Context(), principal, req)
	} else {
		rec, err = s.svc.UpsertPrice(r.Context(), principal, req)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handlePatchPrice(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var patch models.PricePatch
	if !s.decode(w, r, &patch) {
		return
	}
	rec, err := s.svc.PatchPrice(r.Context(), principal, r.PathValue("token"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeletePrice(r.Context(), principal, r.PathValue("token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	aliases, err := s.store.ListSymbols(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, aliases)
}

func (s *Server) handleUpsertSymbol(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var req protocol.UpsertSymbolRequest
	if !s.decode(w, r, &req) {
		return
	}
	alias, err := s.svc.UpsertSymbol(r.Context(), principal, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, alias)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfig(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var patch models.ConfigPatch
	if !s.decode(w, r, &patch) {
		return
	}
	cfg, err := s.svc.PatchConfig(r.Context(), principal, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	var limit int
	var cursor int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, models.Validationf("limit", "must be an integer"))
			return
		}
		limit = n
	}
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, models.Validationf("cursor", "must be an integer"))
			return
		}
		cursor = n
	}

	page, err := s.store.ListAudit(r.Context(), limit, cursor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}
