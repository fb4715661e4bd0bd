package snapstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pit-store/internal/model"
)

// Pool is the subset of pgxpool.Pool the backend uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresBackend implements Backend using pgx.
type PostgresBackend struct {
	pool Pool
}

// NewPostgres creates a PostgresBackend with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresBackend{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (or mock).
func NewPostgresFromPool(pool Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id             TEXT PRIMARY KEY,
	symbol         TEXT NOT NULL,
	effective_date DATE NOT NULL,
	statement_kind TEXT NOT NULL,
	period_end     DATE NOT NULL,
	reported_date  DATE,
	source         TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (symbol, effective_date, statement_kind, period_end)
);

CREATE TABLE IF NOT EXISTS manifests (
	symbol     TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_effective ON snapshots(symbol, effective_date);
`

func (b *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func (b *PostgresBackend) InsertSnapshot(ctx context.Context, snap model.Snapshot) (bool, error) {
	payloadJSON, err := json.Marshal(snap.Payload)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal payload")
	}

	tag, err := b.pool.Exec(ctx,
		`INSERT INTO snapshots (id, symbol, effective_date, statement_kind, period_end, reported_date, source, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (symbol, effective_date, statement_kind, period_end) DO NOTHING`,
		snap.ID,
		snap.Symbol,
		snap.EffectiveDate,
		string(snap.Kind),
		snap.PeriodEnd,
		snap.ReportedDate,
		string(snap.Source),
		payloadJSON,
		snap.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert snapshot %s", snap.Symbol)
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) ListSnapshots(ctx context.Context, symbol string) ([]model.Snapshot, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, symbol, effective_date, statement_kind, period_end, reported_date, source, payload, created_at
		 FROM snapshots WHERE symbol = $1
		 ORDER BY effective_date ASC, period_end ASC`,
		symbol,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list snapshots %s", symbol)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var (
			snap         model.Snapshot
			kind, source string
			payload      []byte
		)
		if err := rows.Scan(&snap.ID, &snap.Symbol, &snap.EffectiveDate, &kind, &snap.PeriodEnd, &snap.ReportedDate, &source, &payload, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snap.Kind = model.StatementKind(kind)
		snap.Source = model.EffectiveSource(source)
		if err := json.Unmarshal(payload, &snap.Payload); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal payload")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (b *PostgresBackend) DeleteSnapshots(ctx context.Context, symbol string) (int, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM snapshots WHERE symbol = $1`, symbol)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete snapshots %s", symbol)
	}
	return int(tag.RowsAffected()), nil
}

func (b *PostgresBackend) SaveManifest(ctx context.Context, m model.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal manifest")
	}
	_, err = b.pool.Exec(ctx,
		`INSERT INTO manifests (symbol, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (symbol) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		m.Symbol, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save manifest %s", m.Symbol)
}
