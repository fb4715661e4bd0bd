package model

import (
	"fmt"
	"time"
)

// StatementKind identifies the accounting window a statement covers.
type StatementKind string

const (
	KindQuarterly StatementKind = "quarterly"
	KindAnnual    StatementKind = "annual"
	KindTTM       StatementKind = "ttm"
)

// Kinds lists every statement kind in extraction order.
var Kinds = []StatementKind{KindQuarterly, KindAnnual, KindTTM}

// EffectiveSource records which availability signal dated a snapshot.
type EffectiveSource string

const (
	SourceReportedDate     EffectiveSource = "reported_date"
	SourcePayloadUpdatedAt EffectiveSource = "payload_updated_at"
	SourcePeriodEndPlusLag EffectiveSource = "period_end_plus_lag"
)

// StatementPeriod is one reported accounting period for one symbol.
// PublicationDate carries the vendor-reported filing date when known; it is
// never inferred from another period's data.
type StatementPeriod struct {
	Symbol          string         `json:"symbol"`
	Kind            StatementKind  `json:"statement_kind"`
	StatementType   string         `json:"statement_type,omitempty"` // Income_Statement, Balance_Sheet, Cash_Flow
	PeriodEnd       time.Time      `json:"period_end"`
	PublicationDate *time.Time     `json:"publication_date,omitempty"`
	Fields          map[string]any `json:"fields,omitempty"`
}

// Snapshot is an immutable record of everything knowable about a symbol's
// fundamentals as of EffectiveDate. Payload is the cumulative filtered
// payload; Kind and PeriodEnd identify the period that triggered it.
type Snapshot struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	EffectiveDate time.Time       `json:"effective_date"`
	Kind          StatementKind   `json:"statement_kind"`
	PeriodEnd     time.Time       `json:"period_end"`
	ReportedDate  *time.Time      `json:"reported_date,omitempty"`
	Source        EffectiveSource `json:"source"`
	Payload       RawPayload      `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Key returns the three-part logical address of a snapshot within a symbol.
func (s Snapshot) Key() string {
	return fmt.Sprintf("%s__%s__%s",
		s.EffectiveDate.Format("2006-01-02"), s.Kind, s.PeriodEnd.Format("2006-01-02"))
}

// Manifest is the derived per-symbol index over its snapshots. It is
// rebuildable from the snapshot set and never a source of truth.
type Manifest struct {
	Symbol           string            `json:"symbol" yaml:"symbol"`
	Count            int               `json:"count" yaml:"count"`
	HasData          bool              `json:"has_data" yaml:"has_data"`
	MinEffectiveDate string            `json:"min_effective_date,omitempty" yaml:"min_effective_date,omitempty"`
	MaxEffectiveDate string            `json:"max_effective_date,omitempty" yaml:"max_effective_date,omitempty"`
	MinPeriodEnd     string            `json:"min_period_end,omitempty" yaml:"min_period_end,omitempty"`
	MaxPeriodEnd     string            `json:"max_period_end,omitempty" yaml:"max_period_end,omitempty"`
	StatementKinds   []StatementKind   `json:"statement_kinds,omitempty" yaml:"statement_kinds,omitempty"`
	SourcesUsed      []EffectiveSource `json:"sources_used,omitempty" yaml:"sources_used,omitempty"`
}

// PanelRow is one (symbol, observation date) cell set, attributed to the
// snapshot that was valid on Date.
type PanelRow struct {
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	EffectiveDate time.Time       `json:"effective_date"`
	Kind          StatementKind   `json:"statement_kind"`
	PeriodEnd     time.Time       `json:"period_end"`
	Source        EffectiveSource `json:"source"`
	Fields        map[string]any  `json:"fields"`
}

// Panel is the consumption-facing date-indexed table built from snapshot
// history. Absence of a row for a (symbol, date) pair is always legal;
// presence implies the snapshot was knowable on that date.
type Panel struct {
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	Symbols []string   `json:"symbols"`
	Rows    []PanelRow `json:"rows"`
}

// Empty reports whether the panel has no populated rows.
func (p *Panel) Empty() bool {
	return p == nil || len(p.Rows) == 0
}
