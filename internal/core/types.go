// Package core provides the business logic for CRM record intake.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the entity collections.
type Kind string

const (
	KindAccount Kind = "accounts"
	KindContact Kind = "contacts"
	KindLead    Kind = "leads"
)

// Kinds lists every entity kind in display order.
var Kinds = []Kind{KindAccount, KindContact, KindLead}

// ParseKind accepts the plural collection name or its singular form.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "accounts", "account":
		return KindAccount, true
	case "contacts", "contact":
		return KindContact, true
	case "leads", "lead":
		return KindLead, true
	}
	return "", false
}

// Singular returns the singular noun used in messages ("account").
func (k Kind) Singular() string {
	switch k {
	case KindAccount:
		return "account"
	case KindContact:
		return "contact"
	case KindLead:
		return "lead"
	}
	return string(k)
}

// Field names a column of an entity. Field names double as CSV header
// names and database column names.
type Field string

const (
	FieldID                 Field = "id"
	FieldName               Field = "name"
	FieldFirstName          Field = "first_name"
	FieldLastName           Field = "last_name"
	FieldEmail              Field = "email"
	FieldPhone              Field = "phone"
	FieldMobile             Field = "mobile"
	FieldWebsite            Field = "website"
	FieldIndustry           Field = "industry"
	FieldRevenue            Field = "revenue"
	FieldEmployees          Field = "employees"
	FieldStatus             Field = "status"
	FieldDescription        Field = "description"
	FieldTitle              Field = "title"
	FieldDepartment         Field = "department"
	FieldAccountID          Field = "account_id"
	FieldSource             Field = "source"
	FieldCompany            Field = "company"
	FieldLeadSource         Field = "lead_source"
	FieldLeadStatus         Field = "lead_status"
	FieldLeadScore          Field = "lead_score"
	FieldConverted          Field = "converted"
	FieldConvertedContactID Field = "converted_contact_id"
)

// foldedFields are compared case-insensitively by every store.
var foldedFields = map[Field]bool{
	FieldName:  true,
	FieldEmail: true,
}

// IsFolded reports whether lookups on f ignore case.
func IsFolded(f Field) bool {
	return foldedFields[f]
}

// Entity is implemented by *Account, *Contact and *Lead.
type Entity interface {
	Kind() Kind
	EntityID() uuid.UUID
	Tenant() uuid.UUID
	// Value returns the string form of a field, or "" when the field is
	// empty or unknown to the entity.
	Value(f Field) string
	// Identity is a short human-readable label used in conflict messages.
	Identity() string
}

// Filter restricts FindByField and List to records whose field equals Value.
type Filter struct {
	Field Field
	Value string
}

// ListOptions controls List paging. Limit <= 0 means no limit.
type ListOptions struct {
	Filters []Filter
	Limit   int
	Offset  int
}

// RecordStore persists entities. Every call is scoped to an explicit tenant.
//
// Implementations must reject writes that violate the per-tenant uniqueness
// rules with a *ConflictError, even when the Duplicate Guard was skipped.
type RecordStore interface {
	Create(ctx context.Context, tenant uuid.UUID, e Entity) (uuid.UUID, error)
	Get(ctx context.Context, tenant uuid.UUID, kind Kind, id uuid.UUID) (Entity, error)
	Update(ctx context.Context, tenant uuid.UUID, e Entity) error
	Delete(ctx context.Context, tenant uuid.UUID, kind Kind, id uuid.UUID) error
	// FindByField returns the first match or ErrNotFound.
	FindByField(ctx context.Context, tenant uuid.UUID, kind Kind, field Field, value string, filters ...Filter) (Entity, error)
	// List returns one page of records and the total number of matches.
	List(ctx context.Context, tenant uuid.UUID, kind Kind, opts ListOptions) ([]Entity, int, error)
	// InTx runs fn against a store whose writes commit together or not at all.
	InTx(ctx context.Context, fn func(RecordStore) error) error
}

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldNumeric
	FieldInteger
	FieldEmailAddr
	FieldUUID
)

// FieldSpec defines validation rules for a single CSV column.
type FieldSpec struct {
	Name       Field     // Canonical column header
	Aliases    []string  // Other accepted header spellings (case-insensitive)
	Type       FieldType // Expected data type
	Required   bool      // Column must exist in the header and be non-empty
	EnumValues []string  // Valid values for FieldEnum
	Min, Max   float64   // Inclusive bounds for numeric types when Max > Min
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// Values carries raw field values keyed by canonical field name, before
// they are parsed into an entity.
type Values map[string]string

// FailedRow contains information about a row that failed to import.
type FailedRow struct {
	LineNumber int      `json:"line"`
	Reason     string   `json:"reason"`
	Data       []string `json:"data,omitempty"`
}

// ImportResult contains the final result of an import operation.
type ImportResult struct {
	Kind         Kind          `json:"kind"`
	TotalRows    int           `json:"total_rows"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
	FailedRows   []FailedRow   `json:"failed_rows,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// ConvertResult reports the outcome of a lead conversion.
type ConvertResult struct {
	LeadID           uuid.UUID `json:"lead_id"`
	ContactID        uuid.UUID `json:"contact_id"`
	AlreadyConverted bool      `json:"already_converted"`
}
