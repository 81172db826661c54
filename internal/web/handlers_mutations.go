package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// handleUpdate applies a partial update. Omitted fields keep their values.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := decodeValues(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.service.Update(r.Context(), tenantFrom(r.Context()), kindFrom(r.Context()), id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDelete removes a record.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.service.Delete(r.Context(), tenantFrom(r.Context()), kindFrom(r.Context()), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConvert converts a lead into a contact. Converting twice is a
// no-op reported with already_converted=true.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	s.leadAction(w, r, s.service.Convert)
}

// handleReconcile links a lead to the existing contact with its email.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	s.leadAction(w, r, s.service.Reconcile)
}

func (s *Server) leadAction(w http.ResponseWriter, r *http.Request, action leadActionFunc) {
	if kindFrom(r.Context()) != core.KindLead {
		respondError(w, r, core.ErrNotFound)
		return
	}
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := action(r.Context(), tenantFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type leadActionFunc func(ctx context.Context, tenant, leadID uuid.UUID) (core.ConvertResult, error)
