package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// RawPayload is a vendor fundamentals payload as fetched by the ingestion
// collaborator: arbitrary nested sections, with statement periods under
// Financials → statement type → statement kind → period-end date.
type RawPayload map[string]any

// StatementTypes lists the financial statement sections scanned for periods.
var StatementTypes = []string{"Income_Statement", "Balance_Sheet", "Cash_Flow"}

// Clone returns a deep, independent copy of the payload. Mutating the copy
// never affects the source.
func (p RawPayload) Clone() (RawPayload, error) {
	if p == nil {
		return RawPayload{}, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "payload: marshal for clone")
	}
	var out RawPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "payload: unmarshal clone")
	}
	return out, nil
}

// Financials returns the Financials section, or nil when absent.
func (p RawPayload) Financials() map[string]any {
	return AsMap(p["Financials"])
}

// UpdatedAt returns the vendor's payload-level update timestamp when one is
// present under "updatedAt" or "updated_at".
func (p RawPayload) UpdatedAt() (time.Time, bool) {
	for _, key := range []string{"updatedAt", "updated_at"} {
		s, ok := p[key].(string)
		if !ok || s == "" {
			continue
		}
		if t, err := ParseDate(s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AsMap coerces a decoded JSON value to a map, returning nil otherwise.
func AsMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses vendor date strings in the formats fundamentals payloads
// actually carry, normalized to a UTC civil date.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, eris.Errorf("payload: unparseable date %q", s)
}
