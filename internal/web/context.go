package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/logging"
)

type ctxKey int

const (
	tenantKey ctxKey = iota
	kindKey
)

// tenantCtx parses {tenantID} and stores it on the request context.
func (s *Server) tenantCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "tenantID")
		tenant, err := uuid.Parse(raw)
		if err != nil || tenant == uuid.Nil {
			respondError(w, r, core.ValidationError{Field: "tenant_id", Value: raw, Message: "invalid uuid"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey, tenant)))
	})
}

// kindCtx resolves {kind} ("contacts" or "contact") to a core.Kind.
func (s *Server) kindCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := core.ParseKind(chi.URLParam(r, "kind"))
		if !ok {
			respondError(w, r, errUnknownKind)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), kindKey, kind)))
	})
}

func tenantFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(tenantKey).(uuid.UUID)
	return id
}

func kindFrom(ctx context.Context) core.Kind {
	k, _ := ctx.Value(kindKey).(core.Kind)
	return k
}

// requestLogger returns the request logger with tenant and kind attached.
func requestLogger(r *http.Request) *slog.Logger {
	return logging.WithFields(r.Context(), "tenant_id", tenantFrom(r.Context()), "kind", kindFrom(r.Context()))
}
