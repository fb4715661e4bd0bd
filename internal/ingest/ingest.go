// Package ingest materializes point-in-time snapshots from fetched
// fundamentals payloads. Fetching itself belongs to the ingestion
// collaborator; this package only acts on payloads it is handed.
package ingest

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pit-store/internal/model"
	"github.com/sells-group/pit-store/internal/pit"
	"github.com/sells-group/pit-store/internal/snapstore"
)

// Options tunes materialization behavior.
type Options struct {
	// MinPeriodsRequired is the coverage threshold below which a symbol is
	// considered incomplete and worth materializing.
	MinPeriodsRequired int
	// MaxConcurrentSymbols bounds bulk ingestion parallelism. Appends for
	// different symbols are independent by design.
	MaxConcurrentSymbols int
}

// Materializer turns raw fundamentals payloads into immutable snapshots.
type Materializer struct {
	store  *snapstore.Store
	filter *pit.Filter
	opts   Options
}

// New builds a Materializer. The resolver must be the same one the store
// uses, so extraction order and snapshot effective dates agree.
func New(store *snapstore.Store, resolver *pit.Resolver, opts Options) *Materializer {
	if opts.MinPeriodsRequired <= 0 {
		opts.MinPeriodsRequired = 4
	}
	if opts.MaxConcurrentSymbols <= 0 {
		opts.MaxConcurrentSymbols = 4
	}
	return &Materializer{
		store:  store,
		filter: pit.NewFilter(resolver),
		opts:   opts,
	}
}

// EnsureSnapshots materializes snapshots for one symbol from its fetched
// payload. When coverage already meets the threshold and force is false,
// nothing happens. force triggers the operator regeneration path: the
// symbol's snapshot set is wholesale replaced, never edited. Returns the
// number of snapshots created.
func (m *Materializer) EnsureSnapshots(ctx context.Context, symbol string, payload model.RawPayload, force bool) (int, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("symbol", symbol))

	if !force {
		ok, err := m.store.HasSufficientCoverage(ctx, symbol, m.opts.MinPeriodsRequired)
		if err != nil {
			return 0, err
		}
		if ok {
			log.Debug("coverage sufficient, skipping")
			return 0, nil
		}
	} else {
		if _, err := m.store.Reset(ctx, symbol); err != nil {
			return 0, err
		}
	}

	periods := dedupePeriods(m.filter.ExtractPeriods(symbol, payload))
	if len(periods) == 0 {
		log.Warn("no datable periods in payload")
		return 0, nil
	}

	created := 0
	for _, dp := range periods {
		select {
		case <-ctx.Done():
			return created, ctx.Err()
		default:
		}

		_, isNew, err := m.store.AppendSnapshot(ctx, symbol, payload, dp.Period.PeriodEnd, dp.Period.Kind, dp.Period.PublicationDate)
		if err != nil {
			// One undatable or not-yet-publishable period never fails the
			// batch; a fresh quarter without a filing date lands here until
			// its fallback date arrives.
			var insufficient *model.InsufficientMetadataError
			var pending *model.NotYetPublishableError
			if errors.As(err, &insufficient) || errors.As(err, &pending) {
				log.Warn("skipping period", zap.Error(err))
				continue
			}
			return created, err
		}
		if isNew {
			created++
		}
	}

	if _, err := m.store.SaveManifest(ctx, symbol); err != nil {
		return created, err
	}

	log.Info("materialized snapshots", zap.Int("created", created), zap.Int("periods", len(periods)))
	return created, nil
}

// EnsureBulk materializes snapshots for many symbols concurrently. Failures
// are per-symbol; the first error cancels outstanding work.
func (m *Materializer) EnsureBulk(ctx context.Context, payloads map[string]model.RawPayload, force bool) (map[string]int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.MaxConcurrentSymbols)

	var mu sync.Mutex
	results := make(map[string]int, len(payloads))

	for symbol, payload := range payloads {
		g.Go(func() error {
			created, err := m.EnsureSnapshots(gctx, symbol, payload, force)
			if err != nil {
				return err
			}
			mu.Lock()
			results[symbol] = created
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	total := 0
	for _, n := range results {
		total += n
	}
	zap.L().Info("bulk ingestion complete",
		zap.Int("symbols", len(payloads)),
		zap.Int("created", total),
	)
	return results, nil
}

// CoverageReport returns the manifest for each symbol.
func (m *Materializer) CoverageReport(ctx context.Context, symbols []string) ([]model.Manifest, error) {
	reports := make([]model.Manifest, 0, len(symbols))
	for _, symbol := range symbols {
		manifest, err := m.store.GetManifest(ctx, symbol)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *manifest)
	}
	return reports, nil
}

// dedupePeriods collapses the per-statement-type duplicates of each
// (kind, period end) pair, keeping the earliest-published instance so the
// triggering period's publication date is never inferred from a later one.
// Input is publication-ordered; output preserves that order.
func dedupePeriods(periods []pit.DatedPeriod) []pit.DatedPeriod {
	type key struct {
		kind model.StatementKind
		end  string
	}
	seen := map[key]bool{}
	var out []pit.DatedPeriod
	for _, dp := range periods {
		k := key{dp.Period.Kind, dp.Period.PeriodEnd.Format("2006-01-02")}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, dp)
	}
	return out
}
