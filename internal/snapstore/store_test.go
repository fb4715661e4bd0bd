package snapstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pit-store/internal/calendar"
	"github.com/sells-group/pit-store/internal/model"
	"github.com/sells-group/pit-store/internal/pit"
)

// storePayload carries two quarters with distinct filing dates so leakage is
// observable in what each snapshot retains.
func storePayload() model.RawPayload {
	return model.RawPayload{
		"General": map[string]any{"Code": "TEST", "Name": "Test Corp"},
		"Financials": map[string]any{
			"Income_Statement": map[string]any{
				"quarterly": map[string]any{
					"2024-03-31": map[string]any{"date": "2024-03-31", "filing_date": "2024-05-16", "totalRevenue": 250000000.0},
					"2024-06-30": map[string]any{"date": "2024-06-30", "filing_date": "2024-08-14", "totalRevenue": 280000000.0},
				},
			},
		},
	}
}

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()

	backend, err := NewSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	require.NoError(t, backend.Migrate(context.Background()))

	cfg := pit.DefaultResolverConfig()
	cfg.SafetyBufferTradingDays = 0
	resolver, err := pit.NewResolver(cfg)
	require.NoError(t, err)

	store := New(backend, resolver)
	store.now = func() time.Time { return calendar.Date(2025, time.January, 2) }
	return store
}

func quarterKeys(t *testing.T, payload model.RawPayload) map[string]bool {
	t.Helper()
	income := model.AsMap(payload.Financials()["Income_Statement"])
	require.NotNil(t, income)
	out := map[string]bool{}
	for k := range model.AsMap(income["quarterly"]) {
		out[k] = true
	}
	return out
}

func TestStore_AppendIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	reported := calendar.Date(2024, time.May, 16)

	snap, created, err := store.AppendSnapshot(ctx, "TEST.US", storePayload(), calendar.Date(2024, time.March, 31), model.KindQuarterly, &reported)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, calendar.Date(2024, time.May, 16), snap.EffectiveDate)

	// The identical append is a no-op, never an overwrite.
	_, created, err = store.AppendSnapshot(ctx, "TEST.US", storePayload(), calendar.Date(2024, time.March, 31), model.KindQuarterly, &reported)
	require.NoError(t, err)
	assert.False(t, created)

	snaps, err := store.ListSnapshots(ctx, "TEST.US")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestStore_SnapshotExcludesUnpublishedPeriods(t *testing.T) {
	store := newSQLiteStore(t)
	reported := calendar.Date(2024, time.May, 16)

	snap, _, err := store.AppendSnapshot(context.Background(), "TEST.US", storePayload(), calendar.Date(2024, time.March, 31), model.KindQuarterly, &reported)
	require.NoError(t, err)

	// Q2 files in August, so the May snapshot must not contain it.
	quarters := quarterKeys(t, snap.Payload)
	assert.True(t, quarters["2024-03-31"])
	assert.False(t, quarters["2024-06-30"])
}

func TestStore_SnapshotsAccumulateMonotonically(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	q1Reported := calendar.Date(2024, time.May, 16)
	_, _, err := store.AppendSnapshot(ctx, "TEST.US", storePayload(), calendar.Date(2024, time.March, 31), model.KindQuarterly, &q1Reported)
	require.NoError(t, err)

	q2Reported := calendar.Date(2024, time.August, 14)
	_, _, err = store.AppendSnapshot(ctx, "TEST.US", storePayload(), calendar.Date(2024, time.June, 30), model.KindQuarterly, &q2Reported)
	require.NoError(t, err)

	snaps, err := store.ListSnapshots(ctx, "TEST.US")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].EffectiveDate.Before(snaps[1].EffectiveDate))

	// Each later snapshot is a superset of the earlier one.
	assert.Len(t, quarterKeys(t, snaps[0].Payload), 1)
	assert.Len(t, quarterKeys(t, snaps[1].Payload), 2)
}

func TestStore_RestatementPreservesHistory(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	periodEnd := calendar.Date(2024, time.March, 31)

	original := calendar.Date(2024, time.May, 16)
	_, created, err := store.AppendSnapshot(ctx, "TEST.US", storePayload(), periodEnd, model.KindQuarterly, &original)
	require.NoError(t, err)
	require.True(t, created)

	// The restated filing lands under its own effective date; the original
	// snapshot stays untouched.
	restated := calendar.Date(2024, time.May, 30)
	_, created, err = store.AppendSnapshot(ctx, "TEST.US", storePayload(), periodEnd, model.KindQuarterly, &restated)
	require.NoError(t, err)
	require.True(t, created)

	snaps, err := store.ListSnapshots(ctx, "TEST.US")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, calendar.Date(2024, time.May, 16), snaps[0].EffectiveDate)
	assert.Equal(t, calendar.Date(2024, time.May, 30), snaps[1].EffectiveDate)
	assert.True(t, snaps[0].PeriodEnd.Equal(snaps[1].PeriodEnd))
}

func TestStore_RefusesFutureDatedSnapshot(t *testing.T) {
	store := newSQLiteStore(t)
	store.now = func() time.Time { return calendar.Date(2024, time.June, 1) }

	// Q2 files 2024-08-14, which is still in the future on 2024-06-01.
	reported := calendar.Date(2024, time.August, 14)
	_, _, err := store.AppendSnapshot(context.Background(), "TEST.US", storePayload(), calendar.Date(2024, time.June, 30), model.KindQuarterly, &reported)
	var pending *model.NotYetPublishableError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, calendar.Date(2024, time.August, 14), pending.EffectiveDate)
	assert.Equal(t, calendar.Date(2024, time.June, 1), pending.Today)

	snaps, err := store.ListSnapshots(context.Background(), "TEST.US")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestStore_ManifestReflectsSnapshotSet(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	q1 := calendar.Date(2024, time.May, 16)
	q2 := calendar.Date(2024, time.August, 14)
	_, _, err := store.AppendSnapshot(ctx, "TEST.US", storePayload(), calendar.Date(2024, time.March, 31), model.KindQuarterly, &q1)
	require.NoError(t, err)
	_, _, err = store.AppendSnapshot(ctx, "TEST.US", storePayload(), calendar.Date(2024, time.June, 30), model.KindQuarterly, &q2)
	require.NoError(t, err)

	m, err := store.SaveManifest(ctx, "TEST.US")
	require.NoError(t, err)
	assert.Equal(t, "TEST.US", m.Symbol)
	assert.Equal(t, 2, m.Count)
	assert.True(t, m.HasData)
	assert.Equal(t, "2024-05-16", m.MinEffectiveDate)
	assert.Equal(t, "2024-08-14", m.MaxEffectiveDate)
	assert.Equal(t, "2024-03-31", m.MinPeriodEnd)
	assert.Equal(t, "2024-06-30", m.MaxPeriodEnd)
	assert.Equal(t, []model.StatementKind{model.KindQuarterly}, m.StatementKinds)
	assert.Equal(t, []model.EffectiveSource{model.SourceReportedDate}, m.SourcesUsed)
}

func TestStore_ManifestForEmptySymbol(t *testing.T) {
	store := newSQLiteStore(t)

	m, err := store.GetManifest(context.Background(), "NODATA.US")
	require.NoError(t, err)
	assert.Equal(t, "NODATA.US", m.Symbol)
	assert.False(t, m.HasData)
	assert.Zero(t, m.Count)
}

func TestStore_CoverageAndReset(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	reported := calendar.Date(2024, time.May, 16)
	_, _, err := store.AppendSnapshot(ctx, "TEST.US", storePayload(), calendar.Date(2024, time.March, 31), model.KindQuarterly, &reported)
	require.NoError(t, err)

	ok, err := store.HasSufficientCoverage(ctx, "TEST.US", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasSufficientCoverage(ctx, "TEST.US", 4)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := store.Reset(ctx, "TEST.US")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	snaps, err := store.ListSnapshots(ctx, "TEST.US")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
