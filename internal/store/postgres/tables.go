package postgres

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// table maps one entity kind onto its SQL table. Column names equal the
// core field names. Each field in keys also has a write-only <field>_key
// column holding core.FoldKey of its value.
type table struct {
	name    string
	columns []string
	keys    []core.Field
	values  func(e core.Entity) []any
	scan    func(row pgx.Row) (core.Entity, error)
}

func keyColumn(f core.Field) string { return string(f) + "_key" }

// writeColumns lists the columns set on insert: the read columns, then
// the key columns.
func (t table) writeColumns() []string {
	cols := append([]string(nil), t.columns...)
	for _, f := range t.keys {
		cols = append(cols, keyColumn(f))
	}
	return cols
}

// writeValues matches writeColumns.
func (t table) writeValues(e core.Entity) []any {
	vals := t.values(e)
	for _, f := range t.keys {
		vals = append(vals, core.FoldKey(e.Value(f)))
	}
	return vals
}

func (t table) hasKey(f core.Field) bool {
	for _, k := range t.keys {
		if k == f {
			return true
		}
	}
	return false
}

func (t table) hasColumn(c string) bool {
	for _, col := range t.columns {
		if col == c {
			return true
		}
	}
	return false
}

var tables = map[core.Kind]table{
	core.KindAccount: {
		name: "accounts",
		columns: []string{
			"id", "tenant_id", "name", "email", "phone", "website", "industry",
			"revenue", "employees", "status", "description", "created_at", "updated_at",
		},
		keys: []core.Field{core.FieldName, core.FieldEmail},
		values: func(e core.Entity) []any {
			a := e.(*core.Account)
			return []any{
				toPgUUID(a.ID), toPgUUID(a.TenantID), a.Name, a.Email, a.Phone, a.Website, a.Industry,
				a.Revenue, a.Employees, a.Status, a.Description, a.CreatedAt, a.UpdatedAt,
			}
		},
		scan: func(row pgx.Row) (core.Entity, error) {
			var (
				a          core.Account
				id, tenant pgtype.UUID
			)
			err := row.Scan(
				&id, &tenant, &a.Name, &a.Email, &a.Phone, &a.Website, &a.Industry,
				&a.Revenue, &a.Employees, &a.Status, &a.Description, &a.CreatedAt, &a.UpdatedAt,
			)
			if err != nil {
				return nil, err
			}
			a.ID, a.TenantID = uuid.UUID(id.Bytes), uuid.UUID(tenant.Bytes)
			return &a, nil
		},
	},
	core.KindContact: {
		name: "contacts",
		columns: []string{
			"id", "tenant_id", "first_name", "last_name", "email", "phone", "mobile", "title",
			"department", "account_id", "source", "status", "description", "created_at", "updated_at",
		},
		keys: []core.Field{core.FieldEmail},
		values: func(e core.Entity) []any {
			c := e.(*core.Contact)
			return []any{
				toPgUUID(c.ID), toPgUUID(c.TenantID), c.FirstName, c.LastName, c.Email, c.Phone, c.Mobile, c.Title,
				c.Department, toPgUUIDPtr(c.AccountID), c.Source, c.Status, c.Description, c.CreatedAt, c.UpdatedAt,
			}
		},
		scan: func(row pgx.Row) (core.Entity, error) {
			var (
				c                   core.Contact
				id, tenant, account pgtype.UUID
			)
			err := row.Scan(
				&id, &tenant, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Mobile, &c.Title,
				&c.Department, &account, &c.Source, &c.Status, &c.Description, &c.CreatedAt, &c.UpdatedAt,
			)
			if err != nil {
				return nil, err
			}
			c.ID, c.TenantID = uuid.UUID(id.Bytes), uuid.UUID(tenant.Bytes)
			c.AccountID = fromPgUUIDPtr(account)
			return &c, nil
		},
	},
	core.KindLead: {
		name: "leads",
		columns: []string{
			"id", "tenant_id", "first_name", "last_name", "email", "phone", "company", "title",
			"lead_source", "lead_status", "lead_score", "description", "converted", "converted_date",
			"converted_contact_id", "created_at", "updated_at",
		},
		keys: []core.Field{core.FieldEmail},
		values: func(e core.Entity) []any {
			l := e.(*core.Lead)
			return []any{
				toPgUUID(l.ID), toPgUUID(l.TenantID), l.FirstName, l.LastName, l.Email, l.Phone, l.Company, l.Title,
				l.LeadSource, l.LeadStatus, l.LeadScore, l.Description, l.Converted, toPgTimestamptz(l.ConvertedDate),
				toPgUUIDPtr(l.ConvertedContactID), l.CreatedAt, l.UpdatedAt,
			}
		},
		scan: func(row pgx.Row) (core.Entity, error) {
			var (
				l                   core.Lead
				id, tenant, contact pgtype.UUID
				convertedAt         pgtype.Timestamptz
			)
			err := row.Scan(
				&id, &tenant, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Company, &l.Title,
				&l.LeadSource, &l.LeadStatus, &l.LeadScore, &l.Description, &l.Converted, &convertedAt,
				&contact, &l.CreatedAt, &l.UpdatedAt,
			)
			if err != nil {
				return nil, err
			}
			l.ID, l.TenantID = uuid.UUID(id.Bytes), uuid.UUID(tenant.Bytes)
			l.ConvertedDate = fromPgTimestamptz(convertedAt)
			l.ConvertedContactID = fromPgUUIDPtr(contact)
			return &l, nil
		},
	},
}

// uniqueIndexes maps unique index names from the schema to the field they
// protect, so violations can be reported as conflicts.
var uniqueIndexes = map[string]struct {
	kind  core.Kind
	field core.Field
}{
	"accounts_tenant_name_key":      {core.KindAccount, core.FieldName},
	"accounts_tenant_email_key":     {core.KindAccount, core.FieldEmail},
	"contacts_tenant_email_key":     {core.KindContact, core.FieldEmail},
	"leads_tenant_email_active_key": {core.KindLead, core.FieldEmail},
}
