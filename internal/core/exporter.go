package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/csvcodec"
)

// DefaultExportPageSize is how many records the exporter reads per List call.
const DefaultExportPageSize = 500

// Exporter writes every record of a kind as CSV.
type Exporter struct {
	store    RecordStore
	pageSize int
}

// NewExporter creates an Exporter. pageSize <= 0 uses DefaultExportPageSize.
func NewExporter(store RecordStore, pageSize int) *Exporter {
	if pageSize <= 0 {
		pageSize = DefaultExportPageSize
	}
	return &Exporter{store: store, pageSize: pageSize}
}

// ExportFilename returns "<kind>_<YYYY-MM-DD>.csv".
func ExportFilename(kind Kind, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", kind, now.Format("2006-01-02"))
}

// Export returns the filename and CSV text for all records of kind in the
// tenant. Leads are limited to the active (unconverted) view. The output
// uses the same header names the importer accepts.
func (x *Exporter) Export(ctx context.Context, tenant uuid.UUID, kind Kind, now time.Time) (string, string, error) {
	def, ok := Get(kind)
	if !ok {
		return "", "", fmt.Errorf("unknown entity kind %q", kind)
	}

	opts := ListOptions{Limit: x.pageSize}
	if kind == KindLead {
		opts.Filters = []Filter{{Field: FieldConverted, Value: "false"}}
	}

	var rows [][]string
	for {
		page, total, err := x.store.List(ctx, tenant, kind, opts)
		if err != nil {
			return "", "", fmt.Errorf("export %s: %w", kind, err)
		}
		for _, e := range page {
			row := make([]string, len(def.ExportColumns))
			for i, col := range def.ExportColumns {
				row[i] = e.Value(col)
			}
			rows = append(rows, row)
		}
		opts.Offset += len(page)
		if len(page) == 0 || opts.Offset >= total {
			break
		}
	}

	header := make([]string, len(def.ExportColumns))
	for i, col := range def.ExportColumns {
		header[i] = string(col)
	}
	return ExportFilename(kind, now), csvcodec.Encode(header, rows), nil
}
