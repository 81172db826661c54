package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crmsync/internal/core"
)

func newContact(tenant uuid.UUID, first, last, email string) *core.Contact {
	c := &core.Contact{FirstName: first, LastName: last, Email: email, Status: core.StatusActive}
	core.Stamp(c, uuid.New(), tenant, time.Now())
	return c
}

func newLead(tenant uuid.UUID, email string) *core.Lead {
	l := &core.Lead{FirstName: "Lee", LastName: "Ross", Email: email, LeadStatus: core.LeadNew}
	core.Stamp(l, uuid.New(), tenant, time.Now())
	return l
}

func TestStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	c := newContact(tenant, "Jane", "Doe", "jane@x.com")
	id, err := s.Create(ctx, tenant, c)
	require.NoError(t, err)
	assert.Equal(t, c.ID, id)

	got, err := s.Get(ctx, tenant, core.KindContact, id)
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.(*core.Contact).FirstName)

	// returned records are copies
	got.(*core.Contact).FirstName = "Changed"
	again, err := s.Get(ctx, tenant, core.KindContact, id)
	require.NoError(t, err)
	assert.Equal(t, "Jane", again.(*core.Contact).FirstName)
}

func TestStore_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := uuid.New(), uuid.New()

	id, err := s.Create(ctx, a, newContact(a, "Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	_, err = s.Get(ctx, b, core.KindContact, id)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// the same email is allowed in another tenant
	_, err = s.Create(ctx, b, newContact(b, "Jane", "Doe", "jane@x.com"))
	assert.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, b, core.KindContact, id), core.ErrNotFound)
}

func TestStore_UniqueContactEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	_, err := s.Create(ctx, tenant, newContact(tenant, "Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	_, err = s.Create(ctx, tenant, newContact(tenant, "J", "D", "JANE@X.COM"))
	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.FieldEmail, ce.Field)
	assert.Equal(t, 1, s.Len(tenant, core.KindContact))

	// empty emails never collide
	_, err = s.Create(ctx, tenant, newContact(tenant, "A", "B", ""))
	require.NoError(t, err)
	_, err = s.Create(ctx, tenant, newContact(tenant, "C", "D", ""))
	require.NoError(t, err)
}

func TestStore_UniqueAccountName(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	acme := &core.Account{Name: "Acme", Status: core.StatusActive}
	core.Stamp(acme, uuid.New(), tenant, time.Now())
	_, err := s.Create(ctx, tenant, acme)
	require.NoError(t, err)

	dup := &core.Account{Name: "ACME", Status: core.StatusActive}
	core.Stamp(dup, uuid.New(), tenant, time.Now())
	_, err = s.Create(ctx, tenant, dup)
	assert.True(t, core.IsConflict(err), "got %v", err)

	// updating a record does not conflict with itself
	acme.Industry = "Anvils"
	assert.NoError(t, s.Update(ctx, tenant, acme))
}

func TestStore_UniqueNameFoldsUnicode(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	a := &core.Account{Name: "Straße AG", Status: core.StatusActive}
	core.Stamp(a, uuid.New(), tenant, time.Now())
	_, err := s.Create(ctx, tenant, a)
	require.NoError(t, err)

	dup := &core.Account{Name: "STRASSE AG", Status: core.StatusActive}
	core.Stamp(dup, uuid.New(), tenant, time.Now())
	_, err = s.Create(ctx, tenant, dup)
	assert.True(t, core.IsConflict(err), "got %v", err)

	got, err := s.FindByField(ctx, tenant, core.KindAccount, core.FieldName, "strasse ag")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.EntityID())
}

func TestStore_ConvertedLeadsLeaveEmailFree(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	first := newLead(tenant, "lee@x.com")
	_, err := s.Create(ctx, tenant, first)
	require.NoError(t, err)

	_, err = s.Create(ctx, tenant, newLead(tenant, "lee@x.com"))
	require.True(t, core.IsConflict(err))

	first.Converted = true
	require.NoError(t, s.Update(ctx, tenant, first))

	_, err = s.Create(ctx, tenant, newLead(tenant, "lee@x.com"))
	assert.NoError(t, err)
}

func TestStore_FindByField(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	c := newContact(tenant, "Jane", "Doe", "jane@x.com")
	_, err := s.Create(ctx, tenant, c)
	require.NoError(t, err)

	got, err := s.FindByField(ctx, tenant, core.KindContact, core.FieldEmail, "Jane@X.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.EntityID())

	_, err = s.FindByField(ctx, tenant, core.KindContact, core.FieldEmail, "nobody@x.com")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.FindByField(ctx, tenant, core.KindContact, core.FieldEmail, "jane@x.com",
		core.Filter{Field: core.FieldStatus, Value: core.StatusInactive})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ListPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		c := newContact(tenant, "N", "L", "")
		_, err := s.Create(ctx, tenant, c)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	page, total, err := s.List(ctx, tenant, core.KindContact, core.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].EntityID())
	assert.Equal(t, ids[3], page[1].EntityID())

	page, _, err = s.List(ctx, tenant, core.KindContact, core.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStore_InTxRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx core.RecordStore) error {
		if _, err := tx.Create(ctx, tenant, newContact(tenant, "A", "B", "a@x.com")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len(tenant, core.KindContact))

	err = s.InTx(ctx, func(tx core.RecordStore) error {
		_, err := tx.Create(ctx, tenant, newContact(tenant, "A", "B", "a@x.com"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len(tenant, core.KindContact))
}

func TestStore_ConcurrentCreatesSameEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := uuid.New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Create(ctx, tenant, newContact(tenant, "Jane", "Doe", "jane@x.com")); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, s.Len(tenant, core.KindContact))
}
