package core

// importer.go ingests CSV text one row at a time.
//
// A bad row never aborts the batch: it is counted, recorded in FailedRows
// with its line number, and the next row is processed. Only a bad header,
// empty input or context cancellation stop an import early.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/csvcodec"
	"github.com/JonMunkholm/crmsync/internal/logging"
)

// MaxFailedRows caps how many failed rows an ImportResult carries. Counts
// are always exact.
const MaxFailedRows = 1000

// DedupePolicy says, per kind, whether imports run the duplicate guard.
type DedupePolicy map[Kind]bool

// DefaultDedupePolicy checks contacts and leads on import but not accounts.
func DefaultDedupePolicy() DedupePolicy {
	return DedupePolicy{
		KindAccount: false,
		KindContact: true,
		KindLead:    true,
	}
}

// Importer runs bulk CSV imports against a RecordStore.
type Importer struct {
	store  RecordStore
	dedupe DedupePolicy
	w      writer
}

// NewImporter creates an Importer. A nil policy uses DefaultDedupePolicy.
func NewImporter(store RecordStore, dedupe DedupePolicy, now func() time.Time) *Importer {
	if dedupe == nil {
		dedupe = DefaultDedupePolicy()
	}
	if now == nil {
		now = time.Now
	}
	return &Importer{store: store, dedupe: dedupe, w: writer{now: now}}
}

// Import decodes text and creates one record per data row.
//
// Header names are matched to the kind's fields (case-insensitive, aliases
// allowed). A missing required column fails the whole import with a
// ValidationError before any row is touched. On cancellation the counts so
// far are returned together with ctx.Err().
func (im *Importer) Import(ctx context.Context, tenant uuid.UUID, kind Kind, text string) (ImportResult, error) {
	start := time.Now()
	result := ImportResult{Kind: kind}

	def, ok := Get(kind)
	if !ok {
		return result, fmt.Errorf("unknown entity kind %q", kind)
	}

	header, rows, err := csvcodec.Decode(text)
	if err != nil {
		return result, err
	}

	idx, err := ValidateHeaders(header, def.FieldSpecs)
	if err != nil {
		return result, err
	}

	logger := logging.WithFields(ctx, "tenant_id", tenant, "kind", kind)
	logger.Info("import started", "rows", len(rows))

	dedupe := im.dedupe[kind]
	result.TotalRows = len(rows)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			logger.Warn("import cancelled",
				"processed", result.SuccessCount+result.ErrorCount,
				"error", err,
			)
			return result, err
		}

		if err := im.importRow(ctx, tenant, kind, idx, row, dedupe); err != nil {
			result.ErrorCount++
			if len(result.FailedRows) < MaxFailedRows {
				result.FailedRows = append(result.FailedRows, FailedRow{
					LineNumber: row.Line,
					Reason:     err.Error(),
					Data:       row.Fields,
				})
			}
			if IsStoreError(err) {
				logger.Warn("row failed", "line", row.Line, "error", err)
			}
			continue
		}
		result.SuccessCount++
	}

	result.Duration = time.Since(start)
	logger.Info("import completed",
		"success", result.SuccessCount,
		"failed", result.ErrorCount,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (im *Importer) importRow(ctx context.Context, tenant uuid.UUID, kind Kind, idx HeaderIndex, row csvcodec.Row, dedupe bool) error {
	e, err := BuildEntity(kind, RowValues(row.Fields, idx))
	if err != nil {
		return err
	}
	_, err = im.w.create(ctx, im.store, tenant, e, dedupe, "import")
	return err
}

// Summary returns "Imported X records, Y failed".
func (r ImportResult) Summary() string {
	return fmt.Sprintf("Imported %d records, %d failed", r.SuccessCount, r.ErrorCount)
}
