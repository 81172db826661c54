package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/csvcodec"
	"github.com/JonMunkholm/crmsync/internal/events"
)

func TestImport_PartialFailure(t *testing.T) {
	fx := newFixture(t, core.Options{})
	text := "first_name,last_name,email\n" +
		"Ann,Able,ann@example.com\n" +
		"Bob,,bob@example.com\n" +
		"Cy,Cole,cy@example.com\n"

	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindContact, text)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, "Imported 2 records, 1 failed", result.Summary())
	assert.Equal(t, 2, fx.count(core.KindContact))

	require.Len(t, result.FailedRows, 1)
	assert.Equal(t, 3, result.FailedRows[0].LineNumber)
	assert.Contains(t, result.FailedRows[0].Reason, "last_name")
	assert.Equal(t, []string{"Bob", "", "bob@example.com"}, result.FailedRows[0].Data)
}

func TestImport_EmptyInputTouchesNothing(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"blank", ""},
		{"whitespace", "  \n\n"},
		{"header only", "first_name,last_name,email\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, core.Options{})

			result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindContact, tt.text)

			assert.ErrorIs(t, err, core.ErrEmptyInput)
			assert.Zero(t, result.TotalRows)
			assert.Zero(t, fx.store.calls.Load(), "store must not be called")
			assert.Empty(t, fx.events.Events())
		})
	}
}

func TestImport_MissingRequiredColumn(t *testing.T) {
	fx := newFixture(t, core.Options{})
	text := "first_name,email\nAnn,ann@example.com\n"

	_, err := fx.svc.Import(context.Background(), fx.tenant, core.KindContact, text)

	var ve core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "last_name", ve.Field)
	assert.Zero(t, fx.store.calls.Load())
}

func TestImport_HeaderMapping(t *testing.T) {
	fx := newFixture(t, core.Options{})
	// columns out of order, mixed case, aliases and an unknown column
	text := "Email Address,Surname,IGNORED,FirstName\n" +
		"ann@example.com,Able,x,Ann\n"

	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindContact, text)
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)

	found, err := fx.store.FindByField(context.Background(), fx.tenant, core.KindContact, core.FieldEmail, "ann@example.com")
	require.NoError(t, err)
	c := found.(*core.Contact)
	assert.Equal(t, "Ann", c.FirstName)
	assert.Equal(t, "Able", c.LastName)
}

func TestImport_QuotedFieldsAndBOM(t *testing.T) {
	fx := newFixture(t, core.Options{})
	text := "\ufeffname,description\n" +
		"\"Acme, Inc.\",\"Says \"\"hi\"\"\"\n"

	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindAccount, text)
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)

	found, err := fx.store.FindByField(context.Background(), fx.tenant, core.KindAccount, core.FieldName, "Acme, Inc.")
	require.NoError(t, err)
	assert.Equal(t, `Says "hi"`, found.(*core.Account).Description)
}

func TestImport_StripsSpreadsheetArtifacts(t *testing.T) {
	fx := newFixture(t, core.Options{})
	text := "name,industry\n" +
		"Acme,=\"00123\"\n"

	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindAccount, text)
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)

	found, err := fx.store.FindByField(context.Background(), fx.tenant, core.KindAccount, core.FieldName, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "00123", found.(*core.Account).Industry)
}

func TestImport_InvalidCSV(t *testing.T) {
	fx := newFixture(t, core.Options{})
	text := "name\n\"Acme\n"

	_, err := fx.svc.Import(context.Background(), fx.tenant, core.KindAccount, text)
	assert.ErrorIs(t, err, csvcodec.ErrInvalidCSV)
	assert.Equal(t, "FILE002", core.MapError(err).Code)
}

func TestImport_StrayQuoteStaysInRow(t *testing.T) {
	fx := newFixture(t, core.Options{})
	text := "first_name,last_name,title,email\n" +
		"Ann,Able,27\" monitor buyer,ann@example.com\n" +
		"Bob,,buyer,bob@example.com\n" +
		"Cy,Cole,CTO,cy@example.com\n"

	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindContact, text)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.FailedRows, 1)
	assert.Equal(t, 3, result.FailedRows[0].LineNumber)

	contacts, _, err := fx.svc.List(context.Background(), fx.tenant, core.KindContact, core.ListOptions{
		Filters: []core.Filter{{Field: core.FieldEmail, Value: "ann@example.com"}},
	})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, `27" monitor buyer`, contacts[0].Value(core.FieldTitle))
}

func TestImport_DedupePolicy(t *testing.T) {
	tests := []struct {
		name       string
		policy     core.DedupePolicy
		wantReason string
	}{
		{
			name:       "guard names the existing record",
			policy:     core.DedupePolicy{core.KindAccount: true},
			wantReason: "duplicate: account Acme",
		},
		{
			name:       "store still rejects without the guard",
			policy:     core.DedupePolicy{core.KindAccount: false},
			wantReason: "duplicate: account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, core.Options{DedupeOnImport: tt.policy})
			text := "name\nAcme\nacme\nGlobex\n"

			result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindAccount, text)
			require.NoError(t, err)

			assert.Equal(t, 2, result.SuccessCount)
			assert.Equal(t, 1, result.ErrorCount)
			require.Len(t, result.FailedRows, 1)
			assert.Equal(t, 3, result.FailedRows[0].LineNumber)
			assert.Contains(t, result.FailedRows[0].Reason, tt.wantReason)
			assert.Equal(t, 2, fx.count(core.KindAccount))
		})
	}
}

func TestImport_LeadEmailAlreadyContact(t *testing.T) {
	fx := newFixture(t, core.Options{})
	fx.mustCreate(t, core.KindContact, core.Values{"first_name": "Jane", "last_name": "Doe", "email": "jane@acme.com"})

	text := "first_name,last_name,email\nJane,Doe,JANE@acme.com\nNew,Lead,new@lead.io\n"
	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindLead, text)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Contains(t, result.FailedRows[0].Reason, "already belongs to contact")
}

func TestImport_Cancelled(t *testing.T) {
	fx := newFixture(t, core.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	text := "name\nAcme\nGlobex\n"
	result, err := core.NewImporter(fx.store, nil, nil).Import(ctx, fx.tenant, core.KindAccount, text)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.TotalRows)
	assert.Zero(t, result.SuccessCount)
	assert.Zero(t, fx.count(core.KindAccount))
}

func TestImport_StoreErrorIsRowFailure(t *testing.T) {
	fx := newFixture(t, core.Options{})
	fx.store.createErr = &core.StoreError{Op: "create", Kind: core.KindAccount, Err: errors.New("connection reset")}

	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindAccount, "name\nAcme\nGlobex\n")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Zero(t, result.SuccessCount)
}

func TestImport_FailedRowsCapped(t *testing.T) {
	fx := newFixture(t, core.Options{})
	var b strings.Builder
	b.WriteString("first_name,last_name\n")
	for i := 0; i < core.MaxFailedRows+5; i++ {
		b.WriteString("Only,\n")
	}

	result, err := fx.svc.Import(context.Background(), fx.tenant, core.KindContact, b.String())
	require.NoError(t, err)
	assert.Equal(t, core.MaxFailedRows+5, result.ErrorCount)
	assert.Len(t, result.FailedRows, core.MaxFailedRows)
}

func TestImport_PublishesCompletedEvent(t *testing.T) {
	fx := newFixture(t, core.Options{})

	_, err := fx.svc.Import(context.Background(), fx.tenant, core.KindAccount, "name\nAcme\n")
	require.NoError(t, err)

	got := fx.events.OfType(events.ImportCompleted)
	require.Len(t, got, 1)
	assert.Equal(t, fx.tenant, got[0].TenantID)
	assert.Equal(t, 1, got[0].Data["success_count"])
}

func TestImport_TooManyImports(t *testing.T) {
	fx := newFixture(t, core.Options{})
	release := make(chan struct{})
	started := make(chan struct{})

	blocking := &blockingStore{RecordStore: fx.store, started: started, release: release}
	svc := core.NewService(blocking, core.Options{MaxImports: 1, ImportWait: 1})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Import(context.Background(), fx.tenant, core.KindAccount, "name\nAcme\n")
		done <- err
	}()
	<-started

	_, err := svc.Import(context.Background(), fx.tenant, core.KindAccount, "name\nGlobex\n")
	assert.ErrorIs(t, err, core.ErrTooManyImports)
	assert.Equal(t, "IMP001", core.MapError(err).Code)

	close(release)
	require.NoError(t, <-done)
}

// blockingStore parks the first Create until release is closed.
type blockingStore struct {
	core.RecordStore
	started chan struct{}
	release chan struct{}
	once    bool
}

func (b *blockingStore) Create(ctx context.Context, tenant uuid.UUID, e core.Entity) (uuid.UUID, error) {
	if !b.once {
		b.once = true
		close(b.started)
		<-b.release
	}
	return b.RecordStore.Create(ctx, tenant, e)
}
