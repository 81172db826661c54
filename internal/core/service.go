package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/events"
	"github.com/JonMunkholm/crmsync/internal/logging"
	"github.com/JonMunkholm/crmsync/internal/metrics"
)

// DefaultImportTimeout bounds a single import.
const DefaultImportTimeout = 10 * time.Minute

// Options configures a Service. Zero values select defaults.
type Options struct {
	DedupeOnImport DedupePolicy
	MaxImports     int
	ImportWait     time.Duration
	ImportTimeout  time.Duration
	ExportPageSize int
	Events         events.Publisher
	Now            func() time.Time
}

// Service is the entry point for every record operation. It is safe for
// concurrent use; all state lives in the RecordStore.
type Service struct {
	store         RecordStore
	importer      *Importer
	exporter      *Exporter
	coordinator   *Coordinator
	limiter       *ImportLimiter
	events        events.Publisher
	importTimeout time.Duration
	w             writer
}

// NewService wires a Service around store.
func NewService(store RecordStore, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = DefaultImportTimeout
	}

	return &Service{
		store:         store,
		importer:      NewImporter(store, opts.DedupeOnImport, opts.Now),
		exporter:      NewExporter(store, opts.ExportPageSize),
		coordinator:   NewCoordinator(store, opts.Events, opts.Now),
		limiter:       NewImportLimiter(opts.MaxImports, opts.ImportWait),
		events:        opts.Events,
		importTimeout: opts.ImportTimeout,
		w:             writer{now: opts.Now},
	}
}

// Kinds returns the registered entity definitions.
func (s *Service) Kinds() []EntityDefinition {
	return All()
}

// Create validates v and creates a record of kind after the duplicate check.
func (s *Service) Create(ctx context.Context, tenant uuid.UUID, kind Kind, v Values) (uuid.UUID, error) {
	e, err := BuildEntity(kind, v)
	if err != nil {
		return uuid.Nil, err
	}
	return s.CreateEntity(ctx, tenant, e)
}

// CreateEntity creates an already built entity after the duplicate check.
// Identity and timestamps on e are overwritten.
func (s *Service) CreateEntity(ctx context.Context, tenant uuid.UUID, e Entity) (uuid.UUID, error) {
	id, err := s.w.create(ctx, s.store, tenant, e, true, "single")
	if err != nil {
		return uuid.Nil, err
	}
	logging.WithFields(ctx, "tenant_id", tenant, "kind", e.Kind()).
		Debug("record created", "id", id)
	return id, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, tenant uuid.UUID, kind Kind, id uuid.UUID) (Entity, error) {
	return s.store.Get(ctx, tenant, kind, id)
}

// List returns a page of records and the total match count.
func (s *Service) List(ctx context.Context, tenant uuid.UUID, kind Kind, opts ListOptions) ([]Entity, int, error) {
	def, ok := Get(kind)
	if !ok {
		return nil, 0, fmt.Errorf("unknown entity kind %q", kind)
	}
	for _, f := range opts.Filters {
		if _, ok := def.Spec(f.Field); !ok && !(kind == KindLead && f.Field == FieldConverted) {
			return nil, 0, ValidationError{Field: string(f.Field), Message: "column not found for filtering"}
		}
	}
	return s.store.List(ctx, tenant, kind, opts)
}

// ActiveLeads lists leads that have not been converted.
func (s *Service) ActiveLeads(ctx context.Context, tenant uuid.UUID, opts ListOptions) ([]Entity, int, error) {
	opts.Filters = append(opts.Filters[:len(opts.Filters):len(opts.Filters)], Filter{Field: FieldConverted, Value: "false"})
	return s.List(ctx, tenant, KindLead, opts)
}

// Update applies patch to an existing record. Converted leads are read-only.
func (s *Service) Update(ctx context.Context, tenant uuid.UUID, kind Kind, id uuid.UUID, patch Values) (Entity, error) {
	var updated Entity
	err := s.store.InTx(ctx, func(tx RecordStore) error {
		existing, err := tx.Get(ctx, tenant, kind, id)
		if err != nil {
			return err
		}
		if l, ok := existing.(*Lead); ok && l.Converted {
			return ErrLeadConverted
		}

		e, err := MergeEntity(existing, patch)
		if err != nil {
			return err
		}
		if err := s.w.update(ctx, tx, tenant, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, tenant uuid.UUID, kind Kind, id uuid.UUID) error {
	return s.store.Delete(ctx, tenant, kind, id)
}

// Import runs a bulk CSV import once an import slot is free. Rows are
// processed in order; the result is returned even when some rows fail.
func (s *Service) Import(ctx context.Context, tenant uuid.UUID, kind Kind, text string) (ImportResult, error) {
	if _, ok := Get(kind); !ok {
		return ImportResult{Kind: kind}, fmt.Errorf("unknown entity kind %q", kind)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportResult{Kind: kind}, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	result, err := s.importer.Import(ctx, tenant, kind, text)
	if result.TotalRows > 0 {
		metrics.RecordImport(string(kind), result.SuccessCount, result.ErrorCount, result.Duration)
		s.publishImport(ctx, tenant, result, err)
	}
	return result, err
}

func (s *Service) publishImport(ctx context.Context, tenant uuid.UUID, r ImportResult, importErr error) {
	data := map[string]any{
		"kind":          string(r.Kind),
		"total_rows":    r.TotalRows,
		"success_count": r.SuccessCount,
		"error_count":   r.ErrorCount,
	}
	if importErr != nil {
		data["error"] = importErr.Error()
	}
	// the import context may already be cancelled
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.events.Publish(pubCtx, events.New(events.ImportCompleted, tenant, s.w.now(), data)); err != nil {
		logging.WithFields(ctx, "tenant_id", tenant, "kind", r.Kind).
			Warn("publish import completed event", "error", err)
	}
}

// Export returns the filename and CSV text for every record of kind.
func (s *Service) Export(ctx context.Context, tenant uuid.UUID, kind Kind) (filename, text string, err error) {
	return s.exporter.Export(ctx, tenant, kind, s.w.now())
}

// Convert converts a lead into a contact exactly once.
func (s *Service) Convert(ctx context.Context, tenant, leadID uuid.UUID) (ConvertResult, error) {
	return s.coordinator.Convert(ctx, tenant, leadID)
}

// Reconcile links an unconverted lead to the existing contact with its email.
func (s *Service) Reconcile(ctx context.Context, tenant, leadID uuid.UUID) (ConvertResult, error) {
	return s.coordinator.Reconcile(ctx, tenant, leadID)
}

// ImportStatus reports import slot usage.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// Drain waits for running imports to finish, for graceful shutdown.
func (s *Service) Drain(ctx context.Context) error {
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return fmt.Errorf("wait for imports: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
