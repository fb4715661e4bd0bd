package model

import (
	"fmt"
	"time"
)

// ConfigurationError reports bad or missing resolver configuration. It is
// fatal and surfaced immediately; configuration is never defaulted silently.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError builds a ConfigurationError from a format string.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientMetadataError reports a period that cannot be dated at all.
// The period is excluded from output and logged; the batch continues.
type InsufficientMetadataError struct {
	Symbol    string
	Kind      StatementKind
	PeriodEnd string
	Reason    string
}

func (e *InsufficientMetadataError) Error() string {
	return fmt.Sprintf("insufficient metadata for %s %s period %q: %s",
		e.Symbol, e.Kind, e.PeriodEnd, e.Reason)
}

// StorageError wraps a persistence I/O failure. It is propagated to the
// caller and never retried inside this core.
type StorageError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotYetPublishableError reports a period whose resolved effective date is
// still in the future. The period cannot be snapshotted yet; it is skipped
// and picked up by a later ingestion run once its date arrives.
type NotYetPublishableError struct {
	Symbol        string
	Kind          StatementKind
	PeriodEnd     time.Time
	EffectiveDate time.Time
	Today         time.Time
}

func (e *NotYetPublishableError) Error() string {
	return fmt.Sprintf("period not yet publishable: %s %s period %s resolves to %s, today is %s",
		e.Symbol, e.Kind, e.PeriodEnd.Format("2006-01-02"),
		e.EffectiveDate.Format("2006-01-02"), e.Today.Format("2006-01-02"))
}

// LookAheadViolation reports a panel row whose snapshot effective date
// exceeds its observation date. Always fatal to the consuming run; never
// downgraded to a warning.
type LookAheadViolation struct {
	Symbol        string
	Date          time.Time
	EffectiveDate time.Time
}

func (e *LookAheadViolation) Error() string {
	return fmt.Sprintf("look-ahead violation: %s on %s attributed to snapshot effective %s",
		e.Symbol, e.Date.Format("2006-01-02"), e.EffectiveDate.Format("2006-01-02"))
}
