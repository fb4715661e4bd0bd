// Package pit implements the point-in-time core: effective-date resolution,
// cutoff filtering of statement payloads, panel building over snapshot
// history, and leakage validation.
package pit

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pit-store/internal/calendar"
	"github.com/sells-group/pit-store/internal/model"
)

// ResolverConfig controls how an effective date is derived from period
// metadata. SourcePriority is ordered data, not code: operators reorder or
// extend the fallback chain through configuration.
type ResolverConfig struct {
	LagByKind               map[model.StatementKind]int
	SafetyBufferTradingDays int
	SourcePriority          []model.EffectiveSource
}

// DefaultResolverConfig mirrors the production lag table: quarterly and TTM
// filings assumed knowable 60 calendar days after period end, annual 90,
// with a two trading-day buffer on every resolved date.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		LagByKind: map[model.StatementKind]int{
			model.KindQuarterly: 60,
			model.KindAnnual:    90,
			model.KindTTM:       60,
		},
		SafetyBufferTradingDays: 2,
		SourcePriority: []model.EffectiveSource{
			model.SourceReportedDate,
			model.SourcePayloadUpdatedAt,
			model.SourcePeriodEndPlusLag,
		},
	}
}

// Resolution is a resolved effective date with its provenance.
type Resolution struct {
	Date   time.Time
	Source model.EffectiveSource
}

// Resolver derives the earliest date a statement period could lawfully be
// known. Stateless and safe for concurrent use.
type Resolver struct {
	cfg ResolverConfig
}

// NewResolver validates the configuration up front. An empty priority list,
// an unknown source name, or a missing lag entry is a ConfigurationError,
// never a silent default.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if len(cfg.SourcePriority) == 0 {
		return nil, model.NewConfigurationError("source_priority is empty")
	}
	for _, src := range cfg.SourcePriority {
		switch src {
		case model.SourceReportedDate, model.SourcePayloadUpdatedAt, model.SourcePeriodEndPlusLag:
		default:
			return nil, model.NewConfigurationError("unknown availability source %q", src)
		}
		if src == model.SourcePeriodEndPlusLag {
			for _, kind := range model.Kinds {
				if _, ok := cfg.LagByKind[kind]; !ok {
					return nil, model.NewConfigurationError("lag_by_kind missing entry for %q", kind)
				}
			}
		}
	}
	if cfg.SafetyBufferTradingDays < 0 {
		return nil, model.NewConfigurationError("safety_buffer_trading_days is negative")
	}
	return &Resolver{cfg: cfg}, nil
}

// Resolve returns the effective date for a period, trying each availability
// source in priority order. payload supplies the vendor-level updatedAt
// timestamp and may be nil. The safety buffer is applied unconditionally to
// whichever source wins.
func (r *Resolver) Resolve(period model.StatementPeriod, payload model.RawPayload) (Resolution, error) {
	var (
		availability time.Time
		source       model.EffectiveSource
	)

	for _, src := range r.cfg.SourcePriority {
		switch src {
		case model.SourceReportedDate:
			if period.PublicationDate != nil && !period.PublicationDate.IsZero() {
				availability = calendar.Normalize(*period.PublicationDate)
				source = src
			}
		case model.SourcePayloadUpdatedAt:
			if payload != nil {
				if t, ok := payload.UpdatedAt(); ok {
					availability = t
					source = src
				}
			}
		case model.SourcePeriodEndPlusLag:
			if period.PeriodEnd.IsZero() {
				continue
			}
			lag, ok := r.cfg.LagByKind[period.Kind]
			if !ok {
				// A zero-value lag for an unrecognized kind would date the
				// period at bare period end; refuse instead.
				return Resolution{}, &model.InsufficientMetadataError{
					Symbol:    period.Symbol,
					Kind:      period.Kind,
					PeriodEnd: formatPeriodEnd(period.PeriodEnd),
					Reason:    "no lag entry for statement kind",
				}
			}
			availability = calendar.NextBusinessDay(period.PeriodEnd.AddDate(0, 0, lag))
			source = src
		}
		if !availability.IsZero() {
			break
		}
	}

	if availability.IsZero() {
		return Resolution{}, &model.InsufficientMetadataError{
			Symbol:    period.Symbol,
			Kind:      period.Kind,
			PeriodEnd: formatPeriodEnd(period.PeriodEnd),
			Reason:    "no availability source resolved a date",
		}
	}

	effective := calendar.AddBusinessDays(availability, r.cfg.SafetyBufferTradingDays)

	// A vendor timestamp predating the accounting window it covers is bogus;
	// clamp to the first business day after period end.
	if !period.PeriodEnd.IsZero() && effective.Before(period.PeriodEnd) {
		clamped := calendar.NextBusinessDay(period.PeriodEnd.AddDate(0, 0, 1))
		zap.L().Warn("effective date before period end, clamping",
			zap.String("symbol", period.Symbol),
			zap.String("period_end", period.PeriodEnd.Format("2006-01-02")),
			zap.String("resolved", effective.Format("2006-01-02")),
			zap.String("clamped", clamped.Format("2006-01-02")),
		)
		effective = clamped
	}

	return Resolution{Date: effective, Source: source}, nil
}

func formatPeriodEnd(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
