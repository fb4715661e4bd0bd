// Package snapstore owns the persisted, append-only snapshot log and its
// derived per-symbol manifests. Snapshots are addressed by
// (symbol, effective_date, statement_kind, period_end) and are never
// rewritten; restatements coexist as separate snapshots.
package snapstore

import (
	"context"

	"github.com/sells-group/pit-store/internal/model"
)

// Backend is the persistence seam. Any backend must preserve the three-part
// key, the append-only guarantee, and single-snapshot write atomicity.
type Backend interface {
	// InsertSnapshot persists a snapshot. Returns false without error when a
	// snapshot with the same (symbol, effective_date, kind, period_end) key
	// already exists; it must never overwrite.
	InsertSnapshot(ctx context.Context, snap model.Snapshot) (bool, error)

	// ListSnapshots returns a symbol's snapshots ascending by effective date,
	// then period end.
	ListSnapshots(ctx context.Context, symbol string) ([]model.Snapshot, error)

	// DeleteSnapshots removes a symbol's entire snapshot set. Only the
	// operator-triggered regeneration path uses this; it is a wholesale
	// replace, never an in-place edit.
	DeleteSnapshots(ctx context.Context, symbol string) (int, error)

	// SaveManifest persists the derived manifest for observability. The
	// stored copy is never read back as a source of truth.
	SaveManifest(ctx context.Context, m model.Manifest) error

	Migrate(ctx context.Context) error
	Close() error
}
