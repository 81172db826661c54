// Package postgres implements core.RecordStore on PostgreSQL using pgx.
//
// Uniqueness is enforced by partial unique indexes on the name_key and
// email_key columns, which hold core.FoldKey of the value so that matching
// agrees with the in-memory store. Violations come back as
// *core.ConflictError. Every query is scoped by tenant_id.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed record store.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

var _ core.RecordStore = (*Store)(nil)

// New creates a store on pool. Call Migrate first on a fresh database.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func tableFor(kind core.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, &core.StoreError{Op: "lookup", Kind: kind, Err: errors.New("unknown entity kind")}
	}
	return t, nil
}

func (s *Store) Create(ctx context.Context, tenant uuid.UUID, e core.Entity) (uuid.UUID, error) {
	t, err := tableFor(e.Kind())
	if err != nil {
		return uuid.Nil, err
	}
	if e.Tenant() != tenant {
		return uuid.Nil, &core.StoreError{Op: "create", Kind: e.Kind(), Err: fmt.Errorf("record tenant %s does not match %s", e.Tenant(), tenant)}
	}

	columns := t.writeColumns()
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if _, err := s.db.Exec(ctx, query, t.writeValues(e)...); err != nil {
		return uuid.Nil, s.mapError(ctx, "create", tenant, e, err)
	}
	return e.EntityID(), nil
}

func (s *Store) Get(ctx context.Context, tenant uuid.UUID, kind core.Kind, id uuid.UUID) (core.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = $1 AND id = $2",
		strings.Join(t.columns, ", "), t.name)
	if s.inTx {
		// rows read inside a transaction are about to be changed
		query += " FOR UPDATE"
	}

	e, err := t.scan(s.db.QueryRow(ctx, query, toPgUUID(tenant), toPgUUID(id)))
	if err != nil {
		return nil, s.wrap("get", kind, err)
	}
	return e, nil
}

func (s *Store) Update(ctx context.Context, tenant uuid.UUID, e core.Entity) error {
	t, err := tableFor(e.Kind())
	if err != nil {
		return err
	}

	// id and tenant_id are the first two columns and never change
	columns, values := t.writeColumns(), t.writeValues(e)
	args := []any{toPgUUID(e.EntityID()), toPgUUID(tenant)}
	sets := make([]string, 0, len(columns)-2)
	for i, col := range columns {
		if i < 2 || col == "created_at" {
			continue
		}
		args = append(args, values[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 AND tenant_id = $2",
		t.name, strings.Join(sets, ", "))

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return s.mapError(ctx, "update", tenant, e, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, tenant uuid.UUID, kind core.Kind, id uuid.UUID) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1 AND id = $2", t.name),
		toPgUUID(tenant), toPgUUID(id))
	if err != nil {
		return s.wrap("delete", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) FindByField(ctx context.Context, tenant uuid.UUID, kind core.Kind, field core.Field, value string, filters ...core.Filter) (core.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	all := append([]core.Filter{{Field: field, Value: value}}, filters...)
	where, args, err := whereClause(t, tenant, all)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY row_seq LIMIT 1",
		strings.Join(t.columns, ", "), t.name, where)
	e, err := t.scan(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, s.wrap("find", kind, err)
	}
	return e, nil
}

func (s *Store) List(ctx context.Context, tenant uuid.UUID, kind core.Kind, opts core.ListOptions) ([]core.Entity, int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}

	where, args, err := whereClause(t, tenant, opts.Filters)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", t.name, where)
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, s.wrap("count", kind, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY row_seq",
		strings.Join(t.columns, ", "), t.name, where)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, s.wrap("list", kind, err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, 0, s.wrap("list", kind, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, s.wrap("list", kind, err)
	}
	return out, total, nil
}

// InTx runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(core.RecordStore) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.wrap("begin", "", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if err := fn(&Store{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return s.wrap("commit", "", err)
	}
	return nil
}

// whereClause builds "tenant_id = $1 AND ..." for the filters. Filter
// fields must be columns of t; name and email match on their key column.
func whereClause(t table, tenant uuid.UUID, filters []core.Filter) (string, []any, error) {
	conds := []string{"tenant_id = $1"}
	args := []any{toPgUUID(tenant)}

	for _, f := range filters {
		col := string(f.Field)
		if !t.hasColumn(col) {
			return "", nil, core.ValidationError{Field: col, Message: "column not found for filtering"}
		}
		if core.IsFolded(f.Field) && t.hasKey(f.Field) {
			args = append(args, core.FoldKey(f.Value))
			conds = append(conds, fmt.Sprintf("%s = $%d", keyColumn(f.Field), len(args)))
		} else {
			args = append(args, f.Value)
			conds = append(conds, fmt.Sprintf("%s::text = $%d", col, len(args)))
		}
	}
	return strings.Join(conds, " AND "), args, nil
}

// wrap translates driver errors: no rows becomes core.ErrNotFound, a unique
// violation becomes *core.ConflictError, anything else a *core.StoreError.
func (s *Store) wrap(op string, kind core.Kind, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if idx, ok := uniqueIndexes[pgErr.ConstraintName]; ok {
			return &core.ConflictError{Kind: idx.kind, Field: idx.field}
		}
		return &core.ConflictError{Kind: kind}
	}

	return &core.StoreError{Op: op, Kind: kind, Err: err}
}

// mapError wraps a write error and, outside a transaction, looks up the
// record that caused a conflict so the error can name it.
func (s *Store) mapError(ctx context.Context, op string, tenant uuid.UUID, e core.Entity, err error) error {
	err = s.wrap(op, e.Kind(), err)

	var ce *core.ConflictError
	if !errors.As(err, &ce) || s.inTx || ce.Field == "" {
		return err
	}

	var filters []core.Filter
	if ce.Kind == core.KindLead {
		filters = append(filters, core.Filter{Field: core.FieldConverted, Value: "false"})
	}
	if found, lookupErr := s.FindByField(ctx, tenant, ce.Kind, ce.Field, e.Value(ce.Field), filters...); lookupErr == nil {
		ce.Identity = found.Identity()
		ce.ExistingID = found.EntityID()
	}
	return ce
}
