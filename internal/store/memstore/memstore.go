// Package memstore is an in-memory core.RecordStore used by tests, the CLI
// dry-run mode and the server when no database is configured.
//
// Uniqueness rules are enforced under the store lock, so concurrent
// creates cannot both succeed. InTx works on a copy of the data set that
// replaces the live one only when fn succeeds.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
)

type stored struct {
	e   core.Entity
	seq int64
}

type dataset struct {
	records map[core.Kind]map[uuid.UUID]stored
	seq     int64
}

func newDataset() *dataset {
	d := &dataset{records: make(map[core.Kind]map[uuid.UUID]stored, len(core.Kinds))}
	for _, k := range core.Kinds {
		d.records[k] = make(map[uuid.UUID]stored)
	}
	return d
}

func (d *dataset) clone() *dataset {
	c := &dataset{records: make(map[core.Kind]map[uuid.UUID]stored, len(d.records)), seq: d.seq}
	for k, m := range d.records {
		cm := make(map[uuid.UUID]stored, len(m))
		for id, s := range m {
			cm[id] = stored{e: core.CloneEntity(s.e), seq: s.seq}
		}
		c.records[k] = cm
	}
	return c
}

// Store is a mutex-guarded in-memory record store.
type Store struct {
	mu   *sync.RWMutex
	data *dataset
	inTx bool
}

var _ core.RecordStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{mu: &sync.RWMutex{}, data: newDataset()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) Create(ctx context.Context, tenant uuid.UUID, e core.Entity) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	defer s.lock()()

	table, err := s.table(e.Kind())
	if err != nil {
		return uuid.Nil, err
	}
	if e.Tenant() != tenant {
		return uuid.Nil, &core.StoreError{Op: "create", Kind: e.Kind(), Err: fmt.Errorf("record tenant %s does not match %s", e.Tenant(), tenant)}
	}
	id := e.EntityID()
	if id == uuid.Nil {
		return uuid.Nil, &core.StoreError{Op: "create", Kind: e.Kind(), Err: fmt.Errorf("record has no id")}
	}
	if _, exists := table[id]; exists {
		return uuid.Nil, &core.StoreError{Op: "create", Kind: e.Kind(), Err: fmt.Errorf("duplicate key: id %s", id)}
	}
	if err := s.checkUnique(tenant, e); err != nil {
		return uuid.Nil, err
	}

	s.data.seq++
	table[id] = stored{e: core.CloneEntity(e), seq: s.data.seq}
	return id, nil
}

func (s *Store) Get(ctx context.Context, tenant uuid.UUID, kind core.Kind, id uuid.UUID) (core.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.rlock()()

	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	rec, ok := table[id]
	if !ok || rec.e.Tenant() != tenant {
		return nil, core.ErrNotFound
	}
	return core.CloneEntity(rec.e), nil
}

func (s *Store) Update(ctx context.Context, tenant uuid.UUID, e core.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	table, err := s.table(e.Kind())
	if err != nil {
		return err
	}
	rec, ok := table[e.EntityID()]
	if !ok || rec.e.Tenant() != tenant || e.Tenant() != tenant {
		return core.ErrNotFound
	}
	if err := s.checkUnique(tenant, e); err != nil {
		return err
	}

	table[e.EntityID()] = stored{e: core.CloneEntity(e), seq: rec.seq}
	return nil
}

func (s *Store) Delete(ctx context.Context, tenant uuid.UUID, kind core.Kind, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	table, err := s.table(kind)
	if err != nil {
		return err
	}
	rec, ok := table[id]
	if !ok || rec.e.Tenant() != tenant {
		return core.ErrNotFound
	}
	delete(table, id)
	return nil
}

func (s *Store) FindByField(ctx context.Context, tenant uuid.UUID, kind core.Kind, field core.Field, value string, filters ...core.Filter) (core.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.rlock()()

	all := append([]core.Filter{{Field: field, Value: value}}, filters...)
	matches, err := s.match(tenant, kind, all)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, core.ErrNotFound
	}
	return core.CloneEntity(matches[0]), nil
}

func (s *Store) List(ctx context.Context, tenant uuid.UUID, kind core.Kind, opts core.ListOptions) ([]core.Entity, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	defer s.rlock()()

	matches, err := s.match(tenant, kind, opts.Filters)
	if err != nil {
		return nil, 0, err
	}
	total := len(matches)

	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	page := make([]core.Entity, 0, end-start)
	for _, e := range matches[start:end] {
		page = append(page, core.CloneEntity(e))
	}
	return page, total, nil
}

// InTx runs fn against a private copy of the data. The copy replaces the
// live data only when fn returns nil. Other callers block until the
// transaction finishes.
func (s *Store) InTx(ctx context.Context, fn func(core.RecordStore) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

// Len returns the number of records of kind in tenant.
func (s *Store) Len(tenant uuid.UUID, kind core.Kind) int {
	defer s.rlock()()
	n := 0
	for _, rec := range s.data.records[kind] {
		if rec.e.Tenant() == tenant {
			n++
		}
	}
	return n
}

func (s *Store) table(kind core.Kind) (map[uuid.UUID]stored, error) {
	t, ok := s.data.records[kind]
	if !ok {
		return nil, &core.StoreError{Op: "lookup", Kind: kind, Err: fmt.Errorf("unknown entity kind")}
	}
	return t, nil
}

// match returns the tenant's records of kind satisfying every filter, in
// insertion order.
func (s *Store) match(tenant uuid.UUID, kind core.Kind, filters []core.Filter) ([]core.Entity, error) {
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}

	var hits []stored
	for _, rec := range table {
		if rec.e.Tenant() != tenant || !matchesAll(rec.e, filters) {
			continue
		}
		hits = append(hits, rec)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	out := make([]core.Entity, len(hits))
	for i, h := range hits {
		out[i] = h.e
	}
	return out, nil
}

func matchesAll(e core.Entity, filters []core.Filter) bool {
	for _, f := range filters {
		got := e.Value(f.Field)
		if core.IsFolded(f.Field) {
			if !core.EqualFold(got, f.Value) {
				return false
			}
			continue
		}
		if got != f.Value {
			return false
		}
	}
	return true
}

// uniqueKey is one per-tenant uniqueness rule.
type uniqueKey struct {
	field  core.Field
	filter *core.Filter // extra condition on the records the rule covers
}

var uniqueRules = map[core.Kind][]uniqueKey{
	core.KindAccount: {{field: core.FieldName}, {field: core.FieldEmail}},
	core.KindContact: {{field: core.FieldEmail}},
	core.KindLead:    {{field: core.FieldEmail, filter: &core.Filter{Field: core.FieldConverted, Value: "false"}}},
}

// checkUnique mirrors the partial unique indexes of the postgres schema.
func (s *Store) checkUnique(tenant uuid.UUID, e core.Entity) error {
	for _, rule := range uniqueRules[e.Kind()] {
		if rule.filter != nil && e.Value(rule.filter.Field) != rule.filter.Value {
			continue
		}
		value := e.Value(rule.field)
		if value == "" {
			continue
		}
		filters := []core.Filter{{Field: rule.field, Value: value}}
		if rule.filter != nil {
			filters = append(filters, *rule.filter)
		}
		matches, err := s.match(tenant, e.Kind(), filters)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.EntityID() == e.EntityID() {
				continue
			}
			return &core.ConflictError{
				Kind:       e.Kind(),
				Field:      rule.field,
				Identity:   m.Identity(),
				ExistingID: m.EntityID(),
			}
		}
	}
	return nil
}
