package core

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record status values shared by accounts and contacts.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Lead status values.
const (
	LeadNew         = "new"
	LeadContacted   = "contacted"
	LeadQualified   = "qualified"
	LeadUnqualified = "unqualified"
)

// Account is a company the tenant does business with.
type Account struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Revenue     float64   `json:"revenue"`
	Employees   int       `json:"employees"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a *Account) Kind() Kind          { return KindAccount }
func (a *Account) EntityID() uuid.UUID { return a.ID }
func (a *Account) Tenant() uuid.UUID   { return a.TenantID }

func (a *Account) Identity() string {
	if a.Email != "" {
		return a.Name + " <" + a.Email + ">"
	}
	return a.Name
}

func (a *Account) Value(f Field) string {
	switch f {
	case FieldID:
		return a.ID.String()
	case FieldName:
		return a.Name
	case FieldEmail:
		return a.Email
	case FieldPhone:
		return a.Phone
	case FieldWebsite:
		return a.Website
	case FieldIndustry:
		return a.Industry
	case FieldRevenue:
		return strconv.FormatFloat(a.Revenue, 'f', -1, 64)
	case FieldEmployees:
		return strconv.Itoa(a.Employees)
	case FieldStatus:
		return a.Status
	case FieldDescription:
		return a.Description
	}
	return ""
}

// Contact is a person, optionally attached to an Account.
type Contact struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Mobile      string     `json:"mobile,omitempty"`
	Title       string     `json:"title,omitempty"`
	Department  string     `json:"department,omitempty"`
	AccountID   *uuid.UUID `json:"account_id,omitempty"`
	Source      string     `json:"source,omitempty"`
	Status      string     `json:"status"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (c *Contact) Kind() Kind          { return KindContact }
func (c *Contact) EntityID() uuid.UUID { return c.ID }
func (c *Contact) Tenant() uuid.UUID   { return c.TenantID }

func (c *Contact) Identity() string {
	return personIdentity(c.FirstName, c.LastName, c.Email)
}

func (c *Contact) Value(f Field) string {
	switch f {
	case FieldID:
		return c.ID.String()
	case FieldFirstName:
		return c.FirstName
	case FieldLastName:
		return c.LastName
	case FieldEmail:
		return c.Email
	case FieldPhone:
		return c.Phone
	case FieldMobile:
		return c.Mobile
	case FieldTitle:
		return c.Title
	case FieldDepartment:
		return c.Department
	case FieldAccountID:
		if c.AccountID == nil {
			return ""
		}
		return c.AccountID.String()
	case FieldSource:
		return c.Source
	case FieldStatus:
		return c.Status
	case FieldDescription:
		return c.Description
	}
	return ""
}

// Lead is a prospect that may be converted into a Contact exactly once.
type Lead struct {
	ID                 uuid.UUID  `json:"id"`
	TenantID           uuid.UUID  `json:"tenant_id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Email              string     `json:"email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Company            string     `json:"company,omitempty"`
	Title              string     `json:"title,omitempty"`
	LeadSource         string     `json:"lead_source,omitempty"`
	LeadStatus         string     `json:"lead_status"`
	LeadScore          int        `json:"lead_score"`
	Description        string     `json:"description,omitempty"`
	Converted          bool       `json:"converted"`
	ConvertedDate      *time.Time `json:"converted_date,omitempty"`
	ConvertedContactID *uuid.UUID `json:"converted_contact_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (l *Lead) Kind() Kind          { return KindLead }
func (l *Lead) EntityID() uuid.UUID { return l.ID }
func (l *Lead) Tenant() uuid.UUID   { return l.TenantID }

func (l *Lead) Identity() string {
	return personIdentity(l.FirstName, l.LastName, l.Email)
}

func (l *Lead) Value(f Field) string {
	switch f {
	case FieldID:
		return l.ID.String()
	case FieldFirstName:
		return l.FirstName
	case FieldLastName:
		return l.LastName
	case FieldEmail:
		return l.Email
	case FieldPhone:
		return l.Phone
	case FieldCompany:
		return l.Company
	case FieldTitle:
		return l.Title
	case FieldLeadSource:
		return l.LeadSource
	case FieldLeadStatus:
		return l.LeadStatus
	case FieldLeadScore:
		return strconv.Itoa(l.LeadScore)
	case FieldDescription:
		return l.Description
	case FieldConverted:
		return strconv.FormatBool(l.Converted)
	case FieldConvertedContactID:
		if l.ConvertedContactID == nil {
			return ""
		}
		return l.ConvertedContactID.String()
	}
	return ""
}

// ToContact builds the Contact a conversion creates from this lead.
func (l *Lead) ToContact() *Contact {
	return &Contact{
		FirstName:   l.FirstName,
		LastName:    l.LastName,
		Email:       l.Email,
		Phone:       l.Phone,
		Title:       l.Title,
		Source:      l.LeadSource,
		Status:      StatusActive,
		Description: l.Description,
	}
}

func personIdentity(first, last, email string) string {
	name := first
	if last != "" {
		if name != "" {
			name += " "
		}
		name += last
	}
	if email == "" {
		return name
	}
	return name + " <" + email + ">"
}

// CloneEntity returns a deep copy of e. Stores use it so callers never share
// memory with persisted records.
func CloneEntity(e Entity) Entity {
	switch v := e.(type) {
	case *Account:
		c := *v
		return &c
	case *Contact:
		c := *v
		if v.AccountID != nil {
			id := *v.AccountID
			c.AccountID = &id
		}
		return &c
	case *Lead:
		c := *v
		if v.ConvertedDate != nil {
			t := *v.ConvertedDate
			c.ConvertedDate = &t
		}
		if v.ConvertedContactID != nil {
			id := *v.ConvertedContactID
			c.ConvertedContactID = &id
		}
		return &c
	}
	return e
}

// Stamp assigns identity and timestamps to a new entity before insert.
func Stamp(e Entity, id, tenant uuid.UUID, now time.Time) {
	switch v := e.(type) {
	case *Account:
		v.ID, v.TenantID, v.CreatedAt, v.UpdatedAt = id, tenant, now, now
	case *Contact:
		v.ID, v.TenantID, v.CreatedAt, v.UpdatedAt = id, tenant, now, now
	case *Lead:
		v.ID, v.TenantID, v.CreatedAt, v.UpdatedAt = id, tenant, now, now
	}
}

// Touch sets UpdatedAt on an entity about to be updated.
func Touch(e Entity, now time.Time) {
	switch v := e.(type) {
	case *Account:
		v.UpdatedAt = now
	case *Contact:
		v.UpdatedAt = now
	case *Lead:
		v.UpdatedAt = now
	}
}

// NewEntity returns an empty entity of the given kind.
func NewEntity(kind Kind) Entity {
	switch kind {
	case KindAccount:
		return &Account{}
	case KindContact:
		return &Contact{}
	case KindLead:
		return &Lead{}
	}
	return nil
}
