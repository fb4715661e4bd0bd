package pit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pit-store/internal/calendar"
	"github.com/sells-group/pit-store/internal/model"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := calendar.Date(y, m, d)
	return &t
}

func TestResolver_ReportedDateWins(t *testing.T) {
	cfg := DefaultResolverConfig() // buffer = 2 trading days
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	period := model.StatementPeriod{
		Symbol:          "TEST.US",
		Kind:            model.KindQuarterly,
		PeriodEnd:       calendar.Date(2024, time.March, 31),
		PublicationDate: datePtr(2024, time.May, 16), // Thursday
	}

	res, err := r.Resolve(period, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SourceReportedDate, res.Source)
	// Thursday + 2 trading days = Monday. The buffer applies to the
	// reported-date path too, not only the fallback.
	assert.Equal(t, calendar.Date(2024, time.May, 20), res.Date)
}

func TestResolver_PayloadUpdatedAtFallback(t *testing.T) {
	cfg := DefaultResolverConfig()
	cfg.SafetyBufferTradingDays = 0
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	period := model.StatementPeriod{
		Symbol:    "TEST.US",
		Kind:      model.KindQuarterly,
		PeriodEnd: calendar.Date(2024, time.March, 31),
	}
	payload := model.RawPayload{"updatedAt": "2024-07-01"}

	res, err := r.Resolve(period, payload)
	require.NoError(t, err)
	assert.Equal(t, model.SourcePayloadUpdatedAt, res.Source)
	assert.Equal(t, calendar.Date(2024, time.July, 1), res.Date)
}

func TestResolver_PeriodEndPlusLagFallback(t *testing.T) {
	cfg := DefaultResolverConfig()
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	period := model.StatementPeriod{
		Symbol:    "TEST.US",
		Kind:      model.KindQuarterly,
		PeriodEnd: calendar.Date(2024, time.March, 31),
	}

	res, err := r.Resolve(period, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SourcePeriodEndPlusLag, res.Source)
	// 2024-03-31 + 60d = Thursday 2024-05-30, + 2 trading days = Monday.
	assert.Equal(t, calendar.Date(2024, time.June, 3), res.Date)
}

func TestResolver_AnnualLagDiffersFromQuarterly(t *testing.T) {
	r := newTestResolver(t)

	annual := model.StatementPeriod{
		Symbol:    "TEST.US",
		Kind:      model.KindAnnual,
		PeriodEnd: calendar.Date(2023, time.December, 31),
	}
	res, err := r.Resolve(annual, nil)
	require.NoError(t, err)
	// 2023-12-31 + 90d = Saturday 2024-03-30, rolled to Monday 2024-04-01.
	assert.Equal(t, calendar.Date(2024, time.April, 1), res.Date)
}

func TestResolver_PriorityOrderIsData(t *testing.T) {
	cfg := DefaultResolverConfig()
	cfg.SafetyBufferTradingDays = 0
	cfg.SourcePriority = []model.EffectiveSource{
		model.SourcePeriodEndPlusLag,
		model.SourceReportedDate,
	}
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	period := model.StatementPeriod{
		Symbol:          "TEST.US",
		Kind:            model.KindQuarterly,
		PeriodEnd:       calendar.Date(2024, time.March, 31),
		PublicationDate: datePtr(2024, time.May, 16),
	}

	res, err := r.Resolve(period, nil)
	require.NoError(t, err)
	// Reordered priority means the fallback wins despite a reported date.
	assert.Equal(t, model.SourcePeriodEndPlusLag, res.Source)
}

func TestResolver_ClampsBeforePeriodEnd(t *testing.T) {
	r := newTestResolver(t)

	period := model.StatementPeriod{
		Symbol:          "TEST.US",
		Kind:            model.KindQuarterly,
		PeriodEnd:       calendar.Date(2024, time.March, 31),
		PublicationDate: datePtr(2024, time.January, 1),
	}

	res, err := r.Resolve(period, nil)
	require.NoError(t, err)
	// A timestamp before the window it covers is clamped past period end.
	assert.Equal(t, calendar.Date(2024, time.April, 1), res.Date)
}

func TestNewResolver_EmptyPriority(t *testing.T) {
	cfg := DefaultResolverConfig()
	cfg.SourcePriority = nil

	_, err := NewResolver(cfg)
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewResolver_UnknownSource(t *testing.T) {
	cfg := DefaultResolverConfig()
	cfg.SourcePriority = []model.EffectiveSource{"press_release_date"}

	_, err := NewResolver(cfg)
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "press_release_date")
}

func TestNewResolver_MissingLagEntry(t *testing.T) {
	cfg := DefaultResolverConfig()
	delete(cfg.LagByKind, model.KindTTM)

	_, err := NewResolver(cfg)
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolver_InsufficientMetadata(t *testing.T) {
	cfg := DefaultResolverConfig()
	cfg.SourcePriority = []model.EffectiveSource{model.SourceReportedDate}
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	// No reported date, and the fallback is not in the priority list.
	period := model.StatementPeriod{
		Symbol:    "TEST.US",
		Kind:      model.KindQuarterly,
		PeriodEnd: calendar.Date(2024, time.March, 31),
	}

	_, err = r.Resolve(period, nil)
	var metaErr *model.InsufficientMetadataError
	require.ErrorAs(t, err, &metaErr)
	assert.Equal(t, "TEST.US", metaErr.Symbol)
}

func TestResolver_UnknownKindNeverDefaultsToZeroLag(t *testing.T) {
	r := newTestResolver(t)

	// A kind outside the lag table must not be dated at bare period end.
	period := model.StatementPeriod{
		Symbol:    "TEST.US",
		Kind:      "semiannual",
		PeriodEnd: calendar.Date(2024, time.June, 30),
	}
	_, err := r.Resolve(period, nil)
	var metaErr *model.InsufficientMetadataError
	require.ErrorAs(t, err, &metaErr)
	assert.Contains(t, metaErr.Reason, "lag")

	// An explicit reported date still resolves; the lag table is never
	// consulted on that path.
	period.PublicationDate = datePtr(2024, time.August, 14)
	res, err := r.Resolve(period, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SourceReportedDate, res.Source)
}

func TestResolver_NoPeriodEndAtAll(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(model.StatementPeriod{Symbol: "TEST.US", Kind: model.KindQuarterly}, nil)
	var metaErr *model.InsufficientMetadataError
	require.ErrorAs(t, err, &metaErr)
}
