package core

// conversion.go turns a lead into a contact exactly once.
//
// The whole conversion runs in one store transaction: load the lead, check
// the contact email, create the contact, then mark the lead converted. If
// any step fails nothing is written, so a lead can never end up linked to
// a half-created contact or a contact without its lead marked.

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

// Coordinator converts leads.
type Coordinator struct {
	store  RecordStore
	events events.Publisher
	w      writer
}

// NewCoordinator creates a Coordinator. A nil publisher discards events.
func NewCoordinator(store RecordStore, pub events.Publisher, now func() time.Time) *Coordinator {
	if pub == nil {
		pub = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Coordinator{store: store, events: pub, w: writer{now: now}}
}

// Convert creates a contact from the lead and marks the lead converted.
//
// Converting an already converted lead is a no-op that reports
// AlreadyConverted. If a contact with the lead's email exists, a
// *ConflictError naming it is returned and nothing changes.
func (c *Coordinator) Convert(ctx context.Context, tenant, leadID uuid.UUID) (ConvertResult, error) {
	logger := logging.WithFields(ctx, "tenant_id", tenant, "lead_id", leadID)
	result := ConvertResult{LeadID: leadID}

	err := c.store.InTx(ctx, func(tx RecordStore) error {
		lead, err := loadLead(ctx, tx, tenant, leadID)
		if err != nil {
			return err
		}

		if lead.Converted {
			result.AlreadyConverted = true
			if lead.ConvertedContactID != nil {
				result.ContactID = *lead.ConvertedContactID
			}
			return nil
		}

		contact := lead.ToContact()
		// Guard always runs here: a conversion must never duplicate a contact.
		contactID, err := c.w.create(ctx, tx, tenant, contact, true, "convert")
		if err != nil {
			return err
		}

		c.markConverted(lead, contactID)
		if err := tx.Update(ctx, tenant, lead); err != nil {
			return fmt.Errorf("mark lead converted: %w", err)
		}

		result.ContactID = contactID
		return nil
	})
	if err != nil {
		outcome := "error"
		if IsConflict(err) {
			outcome = "conflict"
		}
		metrics.RecordConversion(outcome)
		logger.Info("lead conversion failed", "error", err)
		return ConvertResult{LeadID: leadID}, err
	}

	if result.AlreadyConverted {
		metrics.RecordConversion("noop")
		return result, nil
	}

	metrics.RecordConversion("converted")
	logger.Info("lead converted", "contact_id", result.ContactID)
	c.publish(ctx, tenant, result, false)
	return result, nil
}

// Reconcile repairs a lead whose contact exists but which was never marked
// converted: the lead is linked to the contact sharing its email. It
// returns ErrNothingToReconcile when the lead is already converted, has no
// email, or no such contact exists.
func (c *Coordinator) Reconcile(ctx context.Context, tenant, leadID uuid.UUID) (ConvertResult, error) {
	result := ConvertResult{LeadID: leadID}

	err := c.store.InTx(ctx, func(tx RecordStore) error {
		lead, err := loadLead(ctx, tx, tenant, leadID)
		if err != nil {
			return err
		}
		if lead.Converted || lead.Email == "" {
			return ErrNothingToReconcile
		}

		found, err := tx.FindByField(ctx, tenant, KindContact, FieldEmail, lead.Email)
		if errors.Is(err, ErrNotFound) {
			return ErrNothingToReconcile
		}
		if err != nil {
			return err
		}

		c.markConverted(lead, found.EntityID())
		if err := tx.Update(ctx, tenant, lead); err != nil {
			return fmt.Errorf("mark lead converted: %w", err)
		}
		result.ContactID = found.EntityID()
		return nil
	})
	if err != nil {
		return ConvertResult{LeadID: leadID}, err
	}

	metrics.RecordConversion("reconciled")
	logging.WithFields(ctx, "tenant_id", tenant, "lead_id", leadID).
		Info("lead reconciled", "contact_id", result.ContactID)
	c.publish(ctx, tenant, result, true)
	return result, nil
}

func (c *Coordinator) markConverted(lead *Lead, contactID uuid.UUID) {
	now := c.w.now()
	lead.Converted = true
	lead.ConvertedDate = &now
	lead.ConvertedContactID = &contactID
	Touch(lead, now)
}

func (c *Coordinator) publish(ctx context.Context, tenant uuid.UUID, r ConvertResult, reconciled bool) {
	e := events.New(events.LeadConverted, tenant, c.w.now(), map[string]any{
		"lead_id":    r.LeadID.String(),
		"contact_id": r.ContactID.String(),
		"reconciled": reconciled,
	})
	if err := c.events.Publish(ctx, e); err != nil {
		logging.WithFields(ctx, "tenant_id", tenant, "lead_id", r.LeadID).
			Warn("publish lead converted event", "error", err)
	}
}

func loadLead(ctx context.Context, store RecordStore, tenant, id uuid.UUID) (*Lead, error) {
	e, err := store.Get(ctx, tenant, KindLead, id)
	if err != nil {
		return nil, err
	}
	lead, ok := e.(*Lead)
	if !ok {
		return nil, fmt.Errorf("record %s is a %s, not a lead", id, e.Kind())
	}
	return lead, nil
}
