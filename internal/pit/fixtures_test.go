package pit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/pit-store/internal/model"
)

// testPayload builds a fundamentals payload for a company with three 2024
// quarters and one 2023 annual period, each carrying its vendor filing date.
// The annual statement files before Q1 2024 even though its accounting
// window ends earlier, which is exactly the ordering trap publication-date
// sorting exists to handle.
func testPayload() model.RawPayload {
	quarterly := func(metrics map[string]map[string]any) map[string]any {
		out := map[string]any{}
		for end, fields := range metrics {
			out[end] = fields
		}
		return out
	}

	return model.RawPayload{
		"General": map[string]any{
			"Code": "TEST",
			"Type": "Common Stock",
			"Name": "Test Corp",
		},
		"Highlights": map[string]any{
			"MarketCapitalization": 1000000000.0,
			"EBITDA":               100000000.0,
		},
		"Financials": map[string]any{
			"Income_Statement": map[string]any{
				"quarterly": quarterly(map[string]map[string]any{
					"2024-09-30": {"date": "2024-09-30", "filing_date": "2024-10-31", "totalRevenue": 300000000.0, "netIncome": 30000000.0},
					"2024-06-30": {"date": "2024-06-30", "filing_date": "2024-08-14", "totalRevenue": 280000000.0, "netIncome": 28000000.0},
					"2024-03-31": {"date": "2024-03-31", "filing_date": "2024-05-16", "totalRevenue": 250000000.0, "netIncome": 25000000.0},
				}),
				"annual": map[string]any{
					"2023-12-31": map[string]any{"date": "2023-12-31", "filing_date": "2024-03-21", "totalRevenue": 1000000000.0, "netIncome": 100000000.0},
				},
			},
			"Balance_Sheet": map[string]any{
				"quarterly": quarterly(map[string]map[string]any{
					"2024-09-30": {"date": "2024-09-30", "filing_date": "2024-10-31", "totalAssets": 5000000000.0, "cash": 500000000.0},
					"2024-06-30": {"date": "2024-06-30", "filing_date": "2024-08-14", "totalAssets": 4800000000.0, "cash": 480000000.0},
					"2024-03-31": {"date": "2024-03-31", "filing_date": "2024-05-16", "totalAssets": 4500000000.0, "cash": 450000000.0},
				}),
				"annual": map[string]any{
					"2023-12-31": map[string]any{"date": "2023-12-31", "filing_date": "2024-03-21", "totalAssets": 4200000000.0, "cash": 420000000.0},
				},
			},
			"Cash_Flow": map[string]any{
				"quarterly": quarterly(map[string]map[string]any{
					"2024-09-30": {"date": "2024-09-30", "filing_date": "2024-10-31", "freeCashFlow": 50000000.0},
					"2024-06-30": {"date": "2024-06-30", "filing_date": "2024-08-14", "freeCashFlow": 48000000.0},
					"2024-03-31": {"date": "2024-03-31", "filing_date": "2024-05-16", "freeCashFlow": 45000000.0},
				}),
				"annual": map[string]any{
					"2023-12-31": map[string]any{"date": "2023-12-31", "filing_date": "2024-03-21", "freeCashFlow": 180000000.0},
				},
			},
		},
	}
}

// newTestResolver builds a resolver with the default lag table and no
// safety buffer, so dates in assertions stay exact.
func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	cfg := DefaultResolverConfig()
	cfg.SafetyBufferTradingDays = 0
	r, err := NewResolver(cfg)
	require.NoError(t, err)
	return r
}

// incomeQuarters returns the quarterly Income_Statement period-end keys
// present in a payload.
func incomeQuarters(t *testing.T, payload model.RawPayload) map[string]bool {
	t.Helper()
	fin := payload.Financials()
	require.NotNil(t, fin)
	income := model.AsMap(fin["Income_Statement"])
	require.NotNil(t, income)
	quarters := model.AsMap(income["quarterly"])
	out := map[string]bool{}
	for k := range quarters {
		out[k] = true
	}
	return out
}
