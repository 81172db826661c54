package core_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crmsync/internal/core"
)

func TestService_CreateRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		kind   core.Kind
		first  core.Values
		second core.Values
		field  core.Field
	}{
		{
			name:   "account name",
			kind:   core.KindAccount,
			first:  core.Values{"name": "Acme"},
			second: core.Values{"name": " ACME "},
			field:  core.FieldName,
		},
		{
			name:   "contact email",
			kind:   core.KindContact,
			first:  core.Values{"first_name": "Jane", "last_name": "Doe", "email": "jane@acme.com"},
			second: core.Values{"first_name": "Janet", "last_name": "Doe", "email": "Jane@ACME.com"},
			field:  core.FieldEmail,
		},
		{
			name:   "lead email",
			kind:   core.KindLead,
			first:  core.Values{"first_name": "Sam", "last_name": "Lee", "email": "sam@lead.io"},
			second: core.Values{"first_name": "S", "last_name": "L", "email": "sam@lead.io"},
			field:  core.FieldEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, core.Options{})
			firstID := fx.mustCreate(t, tt.kind, tt.first)

			_, err := fx.svc.Create(context.Background(), fx.tenant, tt.kind, tt.second)

			var ce *core.ConflictError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, firstID, ce.ExistingID)
			assert.Equal(t, 1, fx.count(tt.kind))
		})
	}
}

func TestService_ConcurrentCreatesKeepOne(t *testing.T) {
	fx := newFixture(t, core.Options{})

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Create(context.Background(), fx.tenant, core.KindContact,
				core.Values{"first_name": "Jane", "last_name": "Doe", "email": "jane@acme.com"})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			if !core.IsConflict(err) {
				t.Errorf("Create() error = %v, want conflict", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, fx.count(core.KindContact))
}

func TestService_CreateValidation(t *testing.T) {
	fx := newFixture(t, core.Options{})

	tests := []struct {
		name  string
		kind  core.Kind
		v     core.Values
		field string
	}{
		{"missing name", core.KindAccount, core.Values{"email": "a@b.c"}, "name"},
		{"bad email", core.KindContact, core.Values{"first_name": "A", "last_name": "B", "email": "nope"}, "email"},
		{"bad enum", core.KindLead, core.Values{"first_name": "A", "last_name": "B", "lead_status": "hot"}, "lead_status"},
		{"score out of range", core.KindLead, core.Values{"first_name": "A", "last_name": "B", "lead_score": "101"}, "lead_score"},
		{"unknown account", core.KindContact, core.Values{"first_name": "A", "last_name": "B", "account_id": uuid.NewString()}, "account_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Create(context.Background(), fx.tenant, tt.kind, tt.v)

			var ve core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestService_ContactWithAccount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, core.Options{})
	accountID := fx.mustCreate(t, core.KindAccount, core.Values{"name": "Acme"})

	id := fx.mustCreate(t, core.KindContact, core.Values{
		"first_name": "Jane", "last_name": "Doe", "account_id": accountID.String(),
	})

	e, err := fx.svc.Get(ctx, fx.tenant, core.KindContact, id)
	require.NoError(t, err)
	require.NotNil(t, e.(*core.Contact).AccountID)
	assert.Equal(t, accountID, *e.(*core.Contact).AccountID)

	// another tenant cannot reference the account
	_, err = fx.svc.Create(ctx, uuid.New(), core.KindContact, core.Values{
		"first_name": "Jane", "last_name": "Doe", "account_id": accountID.String(),
	})
	assert.True(t, core.IsValidation(err))
}

func TestService_CreateKeepsFormulaLikeText(t *testing.T) {
	fx := newFixture(t, core.Options{})

	id, err := fx.svc.Create(context.Background(), fx.tenant, core.KindAccount, core.Values{
		"name":        " Acme ",
		"industry":    "=Retail",
		"description": `"VIP"`,
	})
	require.NoError(t, err)
	created, err := fx.svc.Get(context.Background(), fx.tenant, core.KindAccount, id)
	require.NoError(t, err)
	a := created.(*core.Account)
	assert.Equal(t, "Acme", a.Name)
	assert.Equal(t, "=Retail", a.Industry)
	assert.Equal(t, `"VIP"`, a.Description)

	updated, err := fx.svc.Update(context.Background(), fx.tenant, core.KindAccount, a.ID, core.Values{"industry": `="00123"`})
	require.NoError(t, err)
	assert.Equal(t, `="00123"`, updated.(*core.Account).Industry)
	assert.Equal(t, `"VIP"`, updated.(*core.Account).Description)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, core.Options{})
	id := fx.mustCreate(t, core.KindContact, core.Values{"first_name": "Jane", "last_name": "Doe", "email": "jane@acme.com"})
	fx.mustCreate(t, core.KindContact, core.Values{"first_name": "John", "last_name": "Roe", "email": "john@acme.com"})

	updated, err := fx.svc.Update(ctx, fx.tenant, core.KindContact, id, core.Values{"title": "CTO", "email": "JANE@acme.com"})
	require.NoError(t, err)
	c := updated.(*core.Contact)
	assert.Equal(t, "CTO", c.Title)
	assert.Equal(t, "Jane", c.FirstName)
	assert.Equal(t, "jane@acme.com", c.Email)

	_, err = fx.svc.Update(ctx, fx.tenant, core.KindContact, id, core.Values{"email": "john@acme.com"})
	assert.True(t, core.IsConflict(err))

	_, err = fx.svc.Update(ctx, fx.tenant, core.KindContact, id, core.Values{"last_name": ""})
	assert.True(t, core.IsValidation(err))

	_, err = fx.svc.Update(ctx, fx.tenant, core.KindContact, uuid.New(), core.Values{"title": "CEO"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_UpdateConvertedLead(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, core.Options{})
	leadID := fx.mustCreate(t, core.KindLead, samLead())
	_, err := fx.svc.Convert(ctx, fx.tenant, leadID)
	require.NoError(t, err)

	_, err = fx.svc.Update(ctx, fx.tenant, core.KindLead, leadID, core.Values{"title": "CEO"})
	assert.ErrorIs(t, err, core.ErrLeadConverted)
	assert.Equal(t, "REC002", core.MapError(err).Code)
}

func TestService_ConvertedLeadFreesEmail(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, core.Options{})
	leadID := fx.mustCreate(t, core.KindLead, samLead())

	_, err := fx.svc.Create(ctx, fx.tenant, core.KindLead, samLead())
	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindLead, ce.Kind)
	assert.Equal(t, leadID, ce.ExistingID)

	_, err = fx.svc.Convert(ctx, fx.tenant, leadID)
	require.NoError(t, err)

	active, total, err := fx.svc.ActiveLeads(ctx, fx.tenant, core.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, active)

	thirdID, err := fx.svc.Create(ctx, fx.tenant, core.KindLead, samLead())
	require.NoError(t, err, "a converted lead's email is free for new leads")
	assert.NotEqual(t, leadID, thirdID)

	active, total, err = fx.svc.ActiveLeads(ctx, fx.tenant, core.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, thirdID, active[0].EntityID())

	// the email is taken again among active leads
	_, err = fx.svc.Create(ctx, fx.tenant, core.KindLead, samLead())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindLead, ce.Kind)

	// converting the new lead would duplicate the contact
	_, err = fx.svc.Convert(ctx, fx.tenant, thirdID)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindContact, ce.Kind)
}

func TestService_LeadMatchingUnrelatedContact(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, core.Options{})
	leadID := fx.mustCreate(t, core.KindLead, samLead())
	_, err := fx.svc.Convert(ctx, fx.tenant, leadID)
	require.NoError(t, err)

	// a contact entered directly still blocks leads with its email
	fx.mustCreate(t, core.KindContact, core.Values{"first_name": "Ann", "last_name": "Ray", "email": "ann@acme.com"})
	_, err = fx.svc.Create(ctx, fx.tenant, core.KindLead, core.Values{"first_name": "Ann", "last_name": "Ray", "email": "ann@acme.com"})
	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.AlreadyContact)
	assert.Equal(t, "DUP002", core.MapError(err).Code)
}

func TestService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, core.Options{})
	acme := fx.mustCreate(t, core.KindAccount, core.Values{"name": "Acme", "industry": "Retail"})
	fx.mustCreate(t, core.KindAccount, core.Values{"name": "Globex", "industry": "Energy"})

	got, total, err := fx.svc.List(ctx, fx.tenant, core.KindAccount, core.ListOptions{
		Filters: []core.Filter{{Field: core.FieldIndustry, Value: "Retail"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, acme, got[0].EntityID())

	_, _, err = fx.svc.List(ctx, fx.tenant, core.KindAccount, core.ListOptions{
		Filters: []core.Filter{{Field: "password", Value: "x"}},
	})
	assert.True(t, core.IsValidation(err))

	// only leads carry the converted flag
	_, _, err = fx.svc.List(ctx, fx.tenant, core.KindAccount, core.ListOptions{
		Filters: []core.Filter{{Field: core.FieldConverted, Value: "false"}},
	})
	assert.True(t, core.IsValidation(err))

	require.NoError(t, fx.svc.Delete(ctx, fx.tenant, core.KindAccount, acme))
	assert.ErrorIs(t, fx.svc.Delete(ctx, fx.tenant, core.KindAccount, acme), core.ErrNotFound)
	assert.Equal(t, 1, fx.count(core.KindAccount))
}
