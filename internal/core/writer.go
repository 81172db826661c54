package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/metrics"
)

// writer is the create path shared by single creates, imports and
// conversions.
type writer struct {
	now func() time.Time
}

// create checks references, optionally runs the duplicate guard, then
// persists e. path labels the metrics ("single", "import", "convert").
func (w writer) create(ctx context.Context, store RecordStore, tenant uuid.UUID, e Entity, dedupe bool, path string) (uuid.UUID, error) {
	if err := checkReferences(ctx, store, tenant, e); err != nil {
		return uuid.Nil, err
	}

	if dedupe {
		conflict, err := Guard{Store: store}.CheckConflict(ctx, tenant, e)
		if err != nil {
			return uuid.Nil, err
		}
		if conflict != nil {
			metrics.RecordConflict(string(e.Kind()))
			return uuid.Nil, conflict
		}
	}

	Stamp(e, uuid.New(), tenant, w.now())
	id, err := store.Create(ctx, tenant, e)
	if err != nil {
		if IsConflict(err) {
			metrics.RecordConflict(string(e.Kind()))
		}
		return uuid.Nil, err
	}

	metrics.RecordCreated(string(e.Kind()), path)
	return id, nil
}

// update re-checks references and duplicates before persisting e.
func (w writer) update(ctx context.Context, store RecordStore, tenant uuid.UUID, e Entity) error {
	if err := checkReferences(ctx, store, tenant, e); err != nil {
		return err
	}

	conflict, err := Guard{Store: store}.CheckConflict(ctx, tenant, e)
	if err != nil {
		return err
	}
	if conflict != nil {
		metrics.RecordConflict(string(e.Kind()))
		return conflict
	}

	Touch(e, w.now())
	return store.Update(ctx, tenant, e)
}

// checkReferences verifies that a contact's account exists in the tenant.
func checkReferences(ctx context.Context, store RecordStore, tenant uuid.UUID, e Entity) error {
	c, ok := e.(*Contact)
	if !ok || c.AccountID == nil {
		return nil
	}
	_, err := store.Get(ctx, tenant, KindAccount, *c.AccountID)
	if errors.Is(err, ErrNotFound) {
		return ValidationError{
			Field:   string(FieldAccountID),
			Value:   c.AccountID.String(),
			Message: "referenced account does not exist",
		}
	}
	if err != nil {
		return fmt.Errorf("check account reference: %w", err)
	}
	return nil
}
