package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// handleHealth reports dependency health and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.health))
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":  state,
		"checks":  checks,
		"imports": s.service.ImportStatus(),
	})
}

// handleListKinds describes every entity kind and its columns.
func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	defs := s.service.Kinds()
	out := make([]kindInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, describeKind(def))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreate creates one record after the duplicate check.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	values, err := decodeValues(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	tenant, kind := tenantFrom(r.Context()), kindFrom(r.Context())
	id, err := s.service.Create(r.Context(), tenant, kind, values)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tenants/%s/%s/%s", tenant, kind, id))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// handleList returns one page of records. ?active=true limits leads to
// the unconverted ones.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)
	tenant, kind := tenantFrom(r.Context()), kindFrom(r.Context())

	list := s.service.List
	switch active := r.URL.Query().Get("active"); {
	case active == "":
	case kind != core.KindLead:
		respondError(w, r, core.ValidationError{Field: "active", Value: active, Message: "only leads have an active view"})
		return
	case active == "true":
		list = func(ctx context.Context, tenant uuid.UUID, _ core.Kind, opts core.ListOptions) ([]core.Entity, int, error) {
			return s.service.ActiveLeads(ctx, tenant, opts)
		}
	case active != "false":
		respondError(w, r, core.ValidationError{Field: "active", Value: active, Message: "must be true or false"})
		return
	}

	records, total, err := list(r.Context(), tenant, kind, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Entity{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    kind,
		"records": records,
		"total":   total,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// handleGet returns one record.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	e, err := s.service.Get(r.Context(), tenantFrom(r.Context()), kindFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleExport streams every record of the kind as a CSV attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	tenant, kind := tenantFrom(r.Context()), kindFrom(r.Context())

	filename, text, err := s.service.Export(r.Context(), tenant, kind)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		requestLogger(r).Warn("export write failed", "error", err)
	}
}
