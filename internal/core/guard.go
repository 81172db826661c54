package core

// guard.go implements the read-before-write duplicate check.
//
// The guard is a friendly pre-check that names the colliding record. It is
// not transactional on its own: two concurrent creates can both pass it.
// Stores enforce the same rules at write time and report violations with
// the same *ConflictError, which closes that race.

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Guard checks candidates against existing records in one tenant.
type Guard struct {
	Store RecordStore
}

// CheckConflict returns the conflict a write of e would cause, or nil.
// A lookup failure is returned as an error and the caller must not write
// (fail closed). A record never conflicts with itself, so the same call
// serves updates.
func (g Guard) CheckConflict(ctx context.Context, tenant uuid.UUID, e Entity) (*ConflictError, error) {
	switch v := e.(type) {
	case *Account:
		if c, err := g.match(ctx, tenant, e, KindAccount, FieldName, v.Name); c != nil || err != nil {
			return c, err
		}
		if v.Email != "" {
			return g.match(ctx, tenant, e, KindAccount, FieldEmail, v.Email)
		}
	case *Contact:
		if v.Email != "" {
			return g.match(ctx, tenant, e, KindContact, FieldEmail, v.Email)
		}
	case *Lead:
		if v.Email == "" {
			return nil, nil
		}
		c, err := g.match(ctx, tenant, e, KindLead, FieldEmail, v.Email, Filter{Field: FieldConverted, Value: "false"})
		if c != nil || err != nil {
			return c, err
		}
		c, err = g.match(ctx, tenant, e, KindContact, FieldEmail, v.Email)
		if c == nil || err != nil {
			return c, err
		}
		// A contact created by converting a lead with this email does not
		// block new leads; converted leads leave lead dedup.
		converted, err := g.convertedInto(ctx, tenant, v.Email, c.ExistingID)
		if converted || err != nil {
			return nil, err
		}
		c.AlreadyContact = true
		return c, nil
	}
	return nil, nil
}

// convertedInto reports whether a converted lead with email links to contactID.
func (g Guard) convertedInto(ctx context.Context, tenant uuid.UUID, email string, contactID uuid.UUID) (bool, error) {
	_, err := g.Store.FindByField(ctx, tenant, KindLead, FieldEmail, email,
		Filter{Field: FieldConverted, Value: "true"},
		Filter{Field: FieldConvertedContactID, Value: contactID.String()},
	)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (g Guard) match(ctx context.Context, tenant uuid.UUID, self Entity, kind Kind, field Field, value string, filters ...Filter) (*ConflictError, error) {
	found, err := g.Store.FindByField(ctx, tenant, kind, field, value, filters...)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if found.Kind() == self.Kind() && self.EntityID() != uuid.Nil && found.EntityID() == self.EntityID() {
		return nil, nil
	}
	return &ConflictError{
		Kind:       kind,
		Field:      field,
		Identity:   found.Identity(),
		ExistingID: found.EntityID(),
	}, nil
}
