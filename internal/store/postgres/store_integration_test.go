//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JonMunkholm/crmsync/internal/core"
)

var (
	sharedPool     *pgxpool.Pool
	sharedPoolOnce sync.Once
	sharedPoolErr  error
)

// testStore returns a store on a shared, migrated PostgreSQL container.
// Each test uses its own tenant, so tests do not see each other's rows.
func testStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPoolOnce.Do(func() {
		sharedPool, sharedPoolErr = setupPostgres()
	})
	if sharedPoolErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedPoolErr)
	}
	return New(sharedPool)
}

func setupPostgres() (*pgxpool.Pool, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "crm_test",
				"POSTGRES_USER":     "crm",
				"POSTGRES_PASSWORD": "test_password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://crm:test_password@%s:%s/crm_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("ping test database: %w", err)
	}

	if err := Migrate(pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func stamp(e core.Entity, tenant uuid.UUID) core.Entity {
	core.Stamp(e, uuid.New(), tenant, time.Now().UTC().Truncate(time.Microsecond))
	return e
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	tenant := uuid.New()

	acct := stamp(&core.Account{Name: "Acme", Revenue: 1500.5, Employees: 12, Status: core.StatusActive}, tenant).(*core.Account)
	_, err := s.Create(ctx, tenant, acct)
	require.NoError(t, err)

	c := stamp(&core.Contact{FirstName: "Jane", LastName: "Doe", Email: "jane@x.com", AccountID: &acct.ID, Status: core.StatusActive}, tenant).(*core.Contact)
	id, err := s.Create(ctx, tenant, c)
	require.NoError(t, err)

	got, err := s.Get(ctx, tenant, core.KindContact, id)
	require.NoError(t, err)
	gc := got.(*core.Contact)
	assert.Equal(t, "jane@x.com", gc.Email)
	require.NotNil(t, gc.AccountID)
	assert.Equal(t, acct.ID, *gc.AccountID)

	gc.Title = "CTO"
	require.NoError(t, s.Update(ctx, tenant, gc))

	got, err = s.Get(ctx, tenant, core.KindContact, id)
	require.NoError(t, err)
	assert.Equal(t, "CTO", got.(*core.Contact).Title)

	require.NoError(t, s.Delete(ctx, tenant, core.KindContact, id))
	_, err = s.Get(ctx, tenant, core.KindContact, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_UniqueIndexes(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	tenant := uuid.New()

	_, err := s.Create(ctx, tenant, stamp(&core.Account{Name: "Globex", Status: core.StatusActive}, tenant))
	require.NoError(t, err)

	_, err = s.Create(ctx, tenant, stamp(&core.Account{Name: "GLOBEX", Status: core.StatusActive}, tenant))
	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.FieldName, ce.Field)
	assert.Equal(t, "Globex", ce.Identity)

	// names fold the same way as the in-memory store
	_, err = s.Create(ctx, tenant, stamp(&core.Account{Name: "Straße AG", Status: core.StatusActive}, tenant))
	require.NoError(t, err)
	_, err = s.Create(ctx, tenant, stamp(&core.Account{Name: "STRASSE AG", Status: core.StatusActive}, tenant))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Straße AG", ce.Identity)

	found, err := s.FindByField(ctx, tenant, core.KindAccount, core.FieldName, "strasse ag")
	require.NoError(t, err)
	assert.Equal(t, "Straße AG", found.Identity())

	// other tenants are unaffected
	other := uuid.New()
	_, err = s.Create(ctx, other, stamp(&core.Account{Name: "Globex", Status: core.StatusActive}, other))
	assert.NoError(t, err)
}

func TestStore_LeadEmailFreedByConversion(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	tenant := uuid.New()

	lead := stamp(&core.Lead{FirstName: "Lee", LastName: "Ross", Email: "lee@x.com", LeadStatus: core.LeadNew}, tenant).(*core.Lead)
	_, err := s.Create(ctx, tenant, lead)
	require.NoError(t, err)

	_, err = s.Create(ctx, tenant, stamp(&core.Lead{FirstName: "L", LastName: "R", Email: "LEE@x.com", LeadStatus: core.LeadNew}, tenant))
	require.True(t, core.IsConflict(err), "got %v", err)

	now := time.Now().UTC()
	lead.Converted = true
	lead.ConvertedDate = &now
	require.NoError(t, s.Update(ctx, tenant, lead))

	_, err = s.Create(ctx, tenant, stamp(&core.Lead{FirstName: "L", LastName: "R", Email: "lee@x.com", LeadStatus: core.LeadNew}, tenant))
	assert.NoError(t, err)

	active, total, err := s.List(ctx, tenant, core.KindLead, core.ListOptions{
		Filters: []core.Filter{{Field: core.FieldConverted, Value: "false"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, active, 1)
}

func TestStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	tenant := uuid.New()

	err := s.InTx(ctx, func(tx core.RecordStore) error {
		if _, err := tx.Create(ctx, tenant, stamp(&core.Contact{FirstName: "A", LastName: "B", Status: core.StatusActive}, tenant)); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, total, err := s.List(ctx, tenant, core.KindContact, core.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestStore_ConvertThroughService(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	tenant := uuid.New()
	svc := core.NewService(s, core.Options{})

	leadID, err := svc.Create(ctx, tenant, core.KindLead, core.Values{
		"first_name": "Ann", "last_name": "Lee", "email": "ann@x.com",
	})
	require.NoError(t, err)

	res, err := svc.Convert(ctx, tenant, leadID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyConverted)

	again, err := svc.Convert(ctx, tenant, leadID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyConverted)
	assert.Equal(t, res.ContactID, again.ContactID)

	_, total, err := s.List(ctx, tenant, core.KindContact, core.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
