package snapstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pit-store/internal/model"
)

// SQLiteBackend implements Backend using modernc.org/sqlite.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteBackend{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id             TEXT PRIMARY KEY,
	symbol         TEXT NOT NULL,
	effective_date TEXT NOT NULL,
	statement_kind TEXT NOT NULL,
	period_end     TEXT NOT NULL,
	reported_date  TEXT,
	source         TEXT NOT NULL,
	payload        TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (symbol, effective_date, statement_kind, period_end)
);

CREATE TABLE IF NOT EXISTS manifests (
	symbol     TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_effective ON snapshots(symbol, effective_date);
`

func (b *SQLiteBackend) Migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// InsertSnapshot writes one snapshot in a single statement, so a reader
// never observes a partial record. ON CONFLICT DO NOTHING makes the append
// idempotent without ever touching the existing row.
func (b *SQLiteBackend) InsertSnapshot(ctx context.Context, snap model.Snapshot) (bool, error) {
	payloadJSON, err := json.Marshal(snap.Payload)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal payload")
	}

	res, err := b.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, symbol, effective_date, statement_kind, period_end, reported_date, source, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (symbol, effective_date, statement_kind, period_end) DO NOTHING`,
		snap.ID,
		snap.Symbol,
		snap.EffectiveDate.Format("2006-01-02"),
		string(snap.Kind),
		snap.PeriodEnd.Format("2006-01-02"),
		formatNullableDate(snap.ReportedDate),
		string(snap.Source),
		string(payloadJSON),
		snap.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert snapshot %s", snap.Symbol)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (b *SQLiteBackend) ListSnapshots(ctx context.Context, symbol string) ([]model.Snapshot, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, symbol, effective_date, statement_kind, period_end, reported_date, source, payload, created_at
		 FROM snapshots WHERE symbol = ?
		 ORDER BY effective_date ASC, period_end ASC`,
		symbol,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list snapshots %s", symbol)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var (
			snap                          model.Snapshot
			effective, periodEnd, payload string
			reported                      sql.NullString
			kind, source                  string
		)
		if err := rows.Scan(&snap.ID, &snap.Symbol, &effective, &kind, &periodEnd, &reported, &source, &payload, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		if snap.EffectiveDate, err = model.ParseDate(effective); err != nil {
			return nil, err
		}
		if snap.PeriodEnd, err = model.ParseDate(periodEnd); err != nil {
			return nil, err
		}
		if reported.Valid && reported.String != "" {
			t, err := model.ParseDate(reported.String)
			if err != nil {
				return nil, err
			}
			snap.ReportedDate = &t
		}
		snap.Kind = model.StatementKind(kind)
		snap.Source = model.EffectiveSource(source)
		if err := json.Unmarshal([]byte(payload), &snap.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal payload")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (b *SQLiteBackend) DeleteSnapshots(ctx context.Context, symbol string) (int, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM snapshots WHERE symbol = ?`, symbol)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete snapshots %s", symbol)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (b *SQLiteBackend) SaveManifest(ctx context.Context, m model.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal manifest")
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO manifests (symbol, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (symbol) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		m.Symbol, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save manifest %s", m.Symbol)
}

func formatNullableDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format("2006-01-02")
}
