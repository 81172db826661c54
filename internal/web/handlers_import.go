package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// importResponse is an ImportResult plus its one-line summary.
type importResponse struct {
	core.ImportResult
	Summary string `json:"summary"`
}

// handleImport runs a bulk CSV import. The file is sent either as the
// multipart field "file" or as the raw request body (text/csv).
//
// Row failures do not fail the request: the response carries the counts
// and the failed rows. Cancellation returns the partial counts with the
// mapped error.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	text, err := s.readImportBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	tenant, kind := tenantFrom(r.Context()), kindFrom(r.Context())
	result, err := s.service.Import(r.Context(), tenant, kind, text)
	if err != nil {
		if result.TotalRows > 0 {
			requestLogger(r).Warn("import stopped early",
				"success", result.SuccessCount,
				"failed", result.ErrorCount,
				"error", err,
			)
		}
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, importResponse{ImportResult: result, Summary: result.Summary()})
}

// readImportBody returns the CSV text of an import request, bounded by the
// configured maximum file size.
func (s *Server) readImportBody(w http.ResponseWriter, r *http.Request) (string, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return "", tooLargeOr(err, errNoFile)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", errNoFile
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return "", tooLargeOr(err, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", core.ErrEmptyInput
	}
	return string(data), nil
}

func tooLargeOr(err, fallback error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return errFileTooLarge
	}
	return fallback
}
