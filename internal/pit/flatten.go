package pit

import (
	"sort"

	"github.com/sells-group/pit-store/internal/model"
)

// FlattenPayload projects a filtered snapshot payload onto the flat metric
// columns the panel exposes. It only ever sees cutoff-filtered payloads, so
// "most recent quarter" here is the most recent quarter publishable at the
// snapshot's effective date.
func FlattenPayload(payload model.RawPayload) map[string]any {
	flat := map[string]any{}

	if shares := model.AsMap(payload["SharesStats"]); shares != nil {
		putIfPresent(flat, "shares_outstanding", shares, "SharesOutstanding")
	}

	if highlights := model.AsMap(payload["Highlights"]); highlights != nil {
		putIfPresent(flat, "market_cap", highlights, "MarketCapitalization")
		putIfPresent(flat, "ebitda_ttm", highlights, "EBITDA")
		putIfPresent(flat, "pe_ratio", highlights, "PERatio")
		putIfPresent(flat, "revenue_ttm", highlights, "RevenueTTM")
		putIfPresent(flat, "gross_profit_ttm", highlights, "GrossProfitTTM")
	}

	if valuation := model.AsMap(payload["Valuation"]); valuation != nil {
		putIfPresent(flat, "enterprise_value", valuation, "EnterpriseValue")
		putIfPresent(flat, "ev_to_ebitda", valuation, "EnterpriseValueEbitda")
	}

	fin := payload.Financials()
	if fin == nil {
		return flat
	}

	if latest := latestQuarter(fin, "Income_Statement"); latest != nil {
		putIfPresent(flat, "net_income", latest, "netIncome")
		putIfPresent(flat, "total_revenue", latest, "totalRevenue")
		putIfPresent(flat, "operating_income", latest, "operatingIncome")
		putIfPresent(flat, "gross_profit", latest, "grossProfit")
	}
	if latest := latestQuarter(fin, "Balance_Sheet"); latest != nil {
		putIfPresent(flat, "total_assets", latest, "totalAssets")
		putIfPresent(flat, "total_liabilities", latest, "totalLiab")
		putIfPresent(flat, "total_stockholder_equity", latest, "totalStockholderEquity")
		putIfPresent(flat, "cash", latest, "cash")
	}
	if latest := latestQuarter(fin, "Cash_Flow"); latest != nil {
		putIfPresent(flat, "free_cash_flow", latest, "freeCashFlow")
		putIfPresent(flat, "operating_cash_flow", latest, "totalCashFromOperatingActivities")
	}

	return flat
}

// PanelColumns lists every metric column FlattenPayload can emit, in the
// order exports write them.
func PanelColumns() []string {
	return []string{
		"shares_outstanding",
		"market_cap",
		"ebitda_ttm",
		"pe_ratio",
		"revenue_ttm",
		"gross_profit_ttm",
		"enterprise_value",
		"ev_to_ebitda",
		"net_income",
		"total_revenue",
		"operating_income",
		"gross_profit",
		"total_assets",
		"total_liabilities",
		"total_stockholder_equity",
		"cash",
		"free_cash_flow",
		"operating_cash_flow",
	}
}

func putIfPresent(flat map[string]any, column string, src map[string]any, key string) {
	if v, ok := src[key]; ok && v != nil {
		flat[column] = v
	}
}

// latestQuarter returns the most recent quarterly period present in the
// given statement section, keyed by period-end date string.
func latestQuarter(fin map[string]any, stype string) map[string]any {
	byKind := model.AsMap(fin[stype])
	if byKind == nil {
		return nil
	}
	periods := model.AsMap(byKind[string(model.KindQuarterly)])
	if len(periods) == 0 {
		return nil
	}

	keys := make([]string, 0, len(periods))
	for k := range periods {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return model.AsMap(periods[keys[0]])
}
