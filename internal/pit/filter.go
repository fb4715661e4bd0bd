package pit

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pit-store/internal/model"
)

// DatedPeriod pairs one extracted statement period with the publication date
// that governs its visibility. Publication is the explicit filing date when
// the vendor reported one, otherwise the resolved effective date.
type DatedPeriod struct {
	Period      model.StatementPeriod
	Publication time.Time
	Source      model.EffectiveSource
}

// Filter is the leakage-prevention core: it extracts statement periods from
// a raw payload and materializes cutoff-filtered copies that never contain a
// period published after the cutoff. Stateless and safe for concurrent use.
type Filter struct {
	resolver *Resolver
}

// NewFilter builds a Filter around the given resolver.
func NewFilter(r *Resolver) *Filter {
	return &Filter{resolver: r}
}

// ExtractPeriods walks every statement type and kind in the payload and
// returns all periods sorted by publication date ascending. Publication
// order is the only leakage-safe ordering: a period covering an earlier
// accounting window can be published later, and restatements invert the
// relationship the other way. Periods that cannot be dated are excluded
// (fail-closed) and logged.
func (f *Filter) ExtractPeriods(symbol string, payload model.RawPayload) []DatedPeriod {
	fin := payload.Financials()
	if fin == nil {
		return nil
	}

	var out []DatedPeriod
	for _, stype := range model.StatementTypes {
		byKind := model.AsMap(fin[stype])
		if byKind == nil {
			continue
		}
		for _, kind := range model.Kinds {
			periods := model.AsMap(byKind[string(kind)])
			for endKey, raw := range periods {
				data := model.AsMap(raw)
				if data == nil {
					continue
				}
				dp, err := f.datePeriod(symbol, kind, stype, endKey, data, payload)
				if err != nil {
					logExcluded(symbol, kind, endKey, err)
					continue
				}
				out = append(out, dp)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Publication.Equal(out[j].Publication) {
			return out[i].Publication.Before(out[j].Publication)
		}
		return out[i].Period.PeriodEnd.Before(out[j].Period.PeriodEnd)
	})
	return out
}

// FilterToCutoff returns a deep, independent copy of the payload containing
// only periods whose publication date is on or before cutoff. Excluded
// periods are absent entirely, never truncated in place. Non-financial
// sections pass through intact. A payload with zero publishable periods
// yields an empty-but-valid result.
func (f *Filter) FilterToCutoff(symbol string, payload model.RawPayload, cutoff time.Time) (model.RawPayload, error) {
	filtered, err := payload.Clone()
	if err != nil {
		return nil, err
	}

	fin := filtered.Financials()
	if fin == nil {
		return filtered, nil
	}

	for _, stype := range model.StatementTypes {
		byKind := model.AsMap(fin[stype])
		if byKind == nil {
			continue
		}
		for _, kind := range model.Kinds {
			periods := model.AsMap(byKind[string(kind)])
			for endKey, raw := range periods {
				data := model.AsMap(raw)
				if data == nil {
					delete(periods, endKey)
					continue
				}
				dp, err := f.datePeriod(symbol, kind, stype, endKey, data, payload)
				if err != nil {
					// Fail closed: an undatable period is never included.
					logExcluded(symbol, kind, endKey, err)
					delete(periods, endKey)
					continue
				}
				if dp.Publication.After(cutoff) {
					delete(periods, endKey)
				}
			}
		}
	}

	return filtered, nil
}

// datePeriod builds the StatementPeriod for one period-end entry and
// determines its publication date: explicit filing date first, resolver
// fallback otherwise.
func (f *Filter) datePeriod(symbol string, kind model.StatementKind, stype, endKey string, data map[string]any, payload model.RawPayload) (DatedPeriod, error) {
	periodEnd, err := model.ParseDate(endKey)
	if err != nil {
		return DatedPeriod{}, &model.InsufficientMetadataError{
			Symbol: symbol, Kind: kind, PeriodEnd: endKey,
			Reason: "unparseable period end",
		}
	}

	period := model.StatementPeriod{
		Symbol:        symbol,
		Kind:          kind,
		StatementType: stype,
		PeriodEnd:     periodEnd,
		Fields:        data,
	}

	if pub := explicitFilingDate(endKey, data); pub != nil {
		period.PublicationDate = pub
		return DatedPeriod{Period: period, Publication: *pub, Source: model.SourceReportedDate}, nil
	}

	res, err := f.resolver.Resolve(period, payload)
	if err != nil {
		return DatedPeriod{}, err
	}
	return DatedPeriod{Period: period, Publication: res.Date, Source: res.Source}, nil
}

// explicitFilingDate reads the vendor filing date for a period. Some feeds
// put it under "filing_date"; others reuse "date" for the filing date when
// it differs from the period-end key.
func explicitFilingDate(endKey string, data map[string]any) *time.Time {
	if s, ok := data["filing_date"].(string); ok && s != "" {
		if t, err := model.ParseDate(s); err == nil {
			return &t
		}
	}
	if s, ok := data["date"].(string); ok && s != "" && s != endKey {
		if t, err := model.ParseDate(s); err == nil {
			return &t
		}
	}
	return nil
}

func logExcluded(symbol string, kind model.StatementKind, endKey string, err error) {
	var insufficient *model.InsufficientMetadataError
	if errors.As(err, &insufficient) {
		zap.L().Warn("excluding undatable period",
			zap.String("symbol", symbol),
			zap.String("kind", string(kind)),
			zap.String("period_end", endKey),
			zap.String("reason", insufficient.Reason),
		)
		return
	}
	zap.L().Warn("excluding period",
		zap.String("symbol", symbol),
		zap.String("kind", string(kind)),
		zap.String("period_end", endKey),
		zap.Error(err),
	)
}
