package pit

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pit-store/internal/calendar"
	"github.com/sells-group/pit-store/internal/model"
)

// SnapshotLister supplies a symbol's snapshot history, ascending by
// effective date.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, symbol string) ([]model.Snapshot, error)
}

// PanelBuilder materializes date-indexed panels from snapshot history with
// forward-fill over half-open validity windows.
type PanelBuilder struct {
	store SnapshotLister
}

// NewPanelBuilder builds a PanelBuilder over the given snapshot source.
func NewPanelBuilder(store SnapshotLister) *PanelBuilder {
	return &PanelBuilder{store: store}
}

// BuildPanel builds the panel for the business days in [start, end]. For
// each observation date the latest snapshot with effective date ≤ the date
// is selected; its validity window is [effective_date, next effective_date),
// so a boundary date always belongs to the newer snapshot. Dates before a
// symbol's first snapshot are left unpopulated. When two snapshots share an
// effective date, the one with the most recent period end wins.
func (b *PanelBuilder) BuildPanel(ctx context.Context, symbols []string, start, end time.Time) (*model.Panel, error) {
	log := zap.L().With(zap.String("component", "pit.panel"))
	dates := calendar.Range(start, end)

	panel := &model.Panel{
		Start:   calendar.Normalize(start),
		End:     calendar.Normalize(end),
		Symbols: symbols,
	}

	for _, symbol := range symbols {
		snaps, err := b.store.ListSnapshots(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if len(snaps) == 0 {
			log.Warn("no snapshots for symbol", zap.String("symbol", symbol))
			continue
		}

		// Secondary period-end ordering makes the last entry of an
		// equal-effective-date group the one with the newest period end.
		sort.SliceStable(snaps, func(i, j int) bool {
			if !snaps[i].EffectiveDate.Equal(snaps[j].EffectiveDate) {
				return snaps[i].EffectiveDate.Before(snaps[j].EffectiveDate)
			}
			return snaps[i].PeriodEnd.Before(snaps[j].PeriodEnd)
		})

		for _, date := range dates {
			snap := applicableSnapshot(snaps, date)
			if snap == nil {
				continue
			}
			panel.Rows = append(panel.Rows, model.PanelRow{
				Symbol:        symbol,
				Date:          date,
				EffectiveDate: snap.EffectiveDate,
				Kind:          snap.Kind,
				PeriodEnd:     snap.PeriodEnd,
				Source:        snap.Source,
				Fields:        FlattenPayload(snap.Payload),
			})
		}
	}

	log.Info("built panel",
		zap.Int("rows", len(panel.Rows)),
		zap.Int("symbols", len(symbols)),
		zap.Int("dates", len(dates)),
	)
	return panel, nil
}

// applicableSnapshot binary-searches the ordered history for the latest
// snapshot whose effective date is on or before the observation date.
func applicableSnapshot(snaps []model.Snapshot, date time.Time) *model.Snapshot {
	idx := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].EffectiveDate.After(date)
	})
	if idx == 0 {
		return nil
	}
	return &snaps[idx-1]
}
