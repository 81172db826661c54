// Package admin provides administrative operations on tenant data.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// ResetTimeout is the maximum duration for a tenant reset.
const ResetTimeout = 30 * time.Second

// resetOrder deletes records that reference others first.
var resetOrder = []core.Kind{core.KindLead, core.KindContact, core.KindAccount}

// ResetResult counts deleted records per kind.
type ResetResult map[core.Kind]int

// ResetTenant deletes every account, contact and lead of tenant in one
// transaction. This is a destructive operation - use with caution.
func ResetTenant(ctx context.Context, store core.RecordStore, tenant uuid.UUID) (ResetResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	var result ResetResult
	err := store.InTx(ctx, func(tx core.RecordStore) error {
		result = make(ResetResult, len(resetOrder))
		for _, kind := range resetOrder {
			n, err := resetKind(ctx, tx, tenant, kind)
			if err != nil {
				return fmt.Errorf("reset %s: %w", kind, err)
			}
			result[kind] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Warn("tenant reset", "tenant_id", tenant,
		"accounts", result[core.KindAccount],
		"contacts", result[core.KindContact],
		"leads", result[core.KindLead])
	return result, nil
}

func resetKind(ctx context.Context, store core.RecordStore, tenant uuid.UUID, kind core.Kind) (int, error) {
	records, _, err := store.List(ctx, tenant, kind, core.ListOptions{})
	if err != nil {
		return 0, err
	}
	for _, e := range records {
		if err := store.Delete(ctx, tenant, kind, e.EntityID()); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}
