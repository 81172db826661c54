package web

// errors.go turns errors into JSON responses.
//
// Every error is logged with its technical detail and request ID, then
// mapped through core.MapError so clients get a stable code plus a
// user-facing message and suggested action.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/csvcodec"
	"github.com/JonMunkholm/crmsync/internal/logging"
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
	errUnknownKind  = errors.New("unknown entity kind")
	errBadJSON      = core.ValidationError{Field: "body", Message: "request body must be a JSON object of field values"}
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`

	// Set for duplicate conflicts so clients can link to the existing record.
	ExistingID string `json:"existing_id,omitempty"`
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var (
		ce       *core.ConflictError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound), errors.Is(err, errUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, core.ErrLeadConverted), errors.Is(err, core.ErrNothingToReconcile):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &maxBytes), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case core.IsValidation(err),
		errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, csvcodec.ErrInvalidCSV),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case core.IsStoreError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	resp := errorResponse(msg)
	var ce *core.ConflictError
	if errors.As(err, &ce) && ce.ExistingID != uuid.Nil {
		resp.ExistingID = ce.ExistingID.String()
	}
	writeResponse(w, resp, status)
}

func errorResponse(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Detail:  msg.Detail,
	}
}

// writeErrorJSON writes a mapped message without request logging.
func writeErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeResponse(w, errorResponse(msg), status)
}

func writeResponse(w http.ResponseWriter, resp ErrorResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
