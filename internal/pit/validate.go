package pit

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pit-store/internal/model"
)

// Validator independently re-checks a panel for look-ahead leakage. It is
// deliberately loud: violations are returned, never corrected, because
// auto-correction would mask the defect class this whole subsystem exists to
// prevent. Works against any panel regardless of origin.
type Validator struct {
	// CollectAll scans the whole panel and reports the violation count
	// instead of stopping at the first offending row.
	CollectAll bool
}

// Validate checks that every populated row satisfies
// effective_date ≤ observation_date. Returns nil on a clean panel; otherwise
// an error chain containing a LookAheadViolation for the first offending row.
func (v Validator) Validate(panel *model.Panel) error {
	if panel.Empty() {
		zap.L().Warn("validating empty panel")
		return nil
	}

	var (
		first *model.LookAheadViolation
		count int
	)
	for _, row := range panel.Rows {
		if !row.EffectiveDate.After(row.Date) {
			continue
		}
		count++
		if first == nil {
			first = &model.LookAheadViolation{
				Symbol:        row.Symbol,
				Date:          row.Date,
				EffectiveDate: row.EffectiveDate,
			}
			if !v.CollectAll {
				break
			}
		}
	}

	if first == nil {
		zap.L().Info("panel integrity validated", zap.Int("rows", len(panel.Rows)))
		return nil
	}

	zap.L().Error("panel integrity violated",
		zap.String("symbol", first.Symbol),
		zap.String("date", first.Date.Format("2006-01-02")),
		zap.String("effective_date", first.EffectiveDate.Format("2006-01-02")),
		zap.Int("violations", count),
	)
	if v.CollectAll {
		return eris.Wrapf(first, "panel failed integrity check: %d violating rows", count)
	}
	return first
}
