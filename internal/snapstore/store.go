package snapstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/pit-store/internal/calendar"
	"github.com/sells-group/pit-store/internal/model"
	"github.com/sells-group/pit-store/internal/pit"
)

// Store materializes and serves snapshots over a Backend. Appends for the
// same symbol are serialized by a per-symbol lock; different symbols proceed
// independently, and reads only ever observe committed snapshots.
type Store struct {
	backend  Backend
	resolver *pit.Resolver
	filter   *pit.Filter
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Store over the given backend and resolver.
func New(backend Backend, resolver *pit.Resolver) *Store {
	return &Store{
		backend:  backend,
		resolver: resolver,
		filter:   pit.NewFilter(resolver),
		now:      time.Now,
		locks:    map[string]*sync.Mutex{},
	}
}

func (s *Store) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}

// AppendSnapshot resolves the triggering period's effective date, filters
// the full payload down to what was publishable by that date, and persists a
// new snapshot. A snapshot with an identical key is a no-op: the call is
// idempotent and never overwrites. Returns the snapshot and whether it was
// newly created.
func (s *Store) AppendSnapshot(ctx context.Context, symbol string, payload model.RawPayload, periodEnd time.Time, kind model.StatementKind, reportedDate *time.Time) (*model.Snapshot, bool, error) {
	log := zap.L().With(zap.String("component", "snapstore"), zap.String("symbol", symbol))

	period := model.StatementPeriod{
		Symbol:          symbol,
		Kind:            kind,
		PeriodEnd:       calendar.Normalize(periodEnd),
		PublicationDate: reportedDate,
	}
	res, err := s.resolver.Resolve(period, payload)
	if err != nil {
		return nil, false, err
	}

	today := calendar.Normalize(s.now())
	if res.Date.After(today) {
		return nil, false, &model.NotYetPublishableError{
			Symbol:        symbol,
			Kind:          kind,
			PeriodEnd:     period.PeriodEnd,
			EffectiveDate: res.Date,
			Today:         today,
		}
	}

	filtered, err := s.filter.FilterToCutoff(symbol, payload, res.Date)
	if err != nil {
		return nil, false, err
	}

	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.backend.ListSnapshots(ctx, symbol)
	if err != nil {
		return nil, false, &model.StorageError{Op: "list", Symbol: symbol, Err: err}
	}
	for _, prev := range existing {
		if prev.Kind == kind && prev.PeriodEnd.Equal(period.PeriodEnd) && !prev.EffectiveDate.Equal(res.Date) {
			// Restatements are expected: the new snapshot coexists with the
			// old one under its own effective date.
			log.Info("restatement detected",
				zap.String("kind", string(kind)),
				zap.String("period_end", period.PeriodEnd.Format("2006-01-02")),
				zap.String("prior_effective", prev.EffectiveDate.Format("2006-01-02")),
				zap.String("new_effective", res.Date.Format("2006-01-02")),
			)
			break
		}
	}

	snap := model.Snapshot{
		ID:            uuid.New().String(),
		Symbol:        symbol,
		EffectiveDate: res.Date,
		Kind:          kind,
		PeriodEnd:     period.PeriodEnd,
		ReportedDate:  reportedDate,
		Source:        res.Source,
		Payload:       filtered,
		CreatedAt:     s.now().UTC(),
	}

	created, err := s.backend.InsertSnapshot(ctx, snap)
	if err != nil {
		return nil, false, &model.StorageError{Op: "insert", Symbol: symbol, Err: err}
	}
	if !created {
		log.Debug("snapshot already exists", zap.String("key", snap.Key()))
		return &snap, false, nil
	}

	log.Info("created snapshot",
		zap.String("key", snap.Key()),
		zap.String("source", string(res.Source)),
	)
	return &snap, true, nil
}

// ListSnapshots returns a symbol's snapshots ascending by effective date.
func (s *Store) ListSnapshots(ctx context.Context, symbol string) ([]model.Snapshot, error) {
	snaps, err := s.backend.ListSnapshots(ctx, symbol)
	if err != nil {
		return nil, &model.StorageError{Op: "list", Symbol: symbol, Err: err}
	}
	return snaps, nil
}

// GetManifest recomputes the derived manifest from the snapshot set.
func (s *Store) GetManifest(ctx context.Context, symbol string) (*model.Manifest, error) {
	snaps, err := s.ListSnapshots(ctx, symbol)
	if err != nil {
		return nil, err
	}
	m := buildManifest(symbol, snaps)
	return &m, nil
}

// SaveManifest recomputes and persists the manifest for observability.
func (s *Store) SaveManifest(ctx context.Context, symbol string) (*model.Manifest, error) {
	m, err := s.GetManifest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.backend.SaveManifest(ctx, *m); err != nil {
		return nil, &model.StorageError{Op: "save manifest", Symbol: symbol, Err: err}
	}
	return m, nil
}

// HasSufficientCoverage reports whether the symbol has at least minPeriods
// snapshots.
func (s *Store) HasSufficientCoverage(ctx context.Context, symbol string, minPeriods int) (bool, error) {
	snaps, err := s.ListSnapshots(ctx, symbol)
	if err != nil {
		return false, err
	}
	return len(snaps) >= minPeriods, nil
}

// Reset removes a symbol's entire snapshot set ahead of a full
// regeneration. Out-of-band and operator-triggered only.
func (s *Store) Reset(ctx context.Context, symbol string) (int, error) {
	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.backend.DeleteSnapshots(ctx, symbol)
	if err != nil {
		return 0, &model.StorageError{Op: "delete", Symbol: symbol, Err: err}
	}
	zap.L().Warn("snapshot set reset",
		zap.String("symbol", symbol),
		zap.Int("deleted", n),
	)
	return n, nil
}

func buildManifest(symbol string, snaps []model.Snapshot) model.Manifest {
	if len(snaps) == 0 {
		return model.Manifest{Symbol: symbol}
	}

	m := model.Manifest{
		Symbol:           symbol,
		Count:            len(snaps),
		HasData:          true,
		MinEffectiveDate: snaps[0].EffectiveDate.Format("2006-01-02"),
		MaxEffectiveDate: snaps[len(snaps)-1].EffectiveDate.Format("2006-01-02"),
	}

	minEnd, maxEnd := snaps[0].PeriodEnd, snaps[0].PeriodEnd
	kinds := map[model.StatementKind]bool{}
	sources := map[model.EffectiveSource]bool{}
	for _, snap := range snaps {
		if snap.PeriodEnd.Before(minEnd) {
			minEnd = snap.PeriodEnd
		}
		if snap.PeriodEnd.After(maxEnd) {
			maxEnd = snap.PeriodEnd
		}
		kinds[snap.Kind] = true
		sources[snap.Source] = true
	}
	m.MinPeriodEnd = minEnd.Format("2006-01-02")
	m.MaxPeriodEnd = maxEnd.Format("2006-01-02")

	for k := range kinds {
		m.StatementKinds = append(m.StatementKinds, k)
	}
	sort.Slice(m.StatementKinds, func(i, j int) bool { return m.StatementKinds[i] < m.StatementKinds[j] })
	for src := range sources {
		m.SourcesUsed = append(m.SourcesUsed, src)
	}
	sort.Slice(m.SourcesUsed, func(i, j int) bool { return m.SourcesUsed[i] < m.SourcesUsed[j] })

	return m
}
