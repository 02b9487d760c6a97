package report

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weichenlin/twchip/internal/market"
)

// ErrNotFound indicates no record exists for the requested date.
var ErrNotFound = errors.New("chip record not found")

// PushLog is one delivery attempt to one target.
type PushLog struct {
	TradeDate market.TradeDate
	Target    string
	View      View
	Success   bool
	Error     string
	PushedAt  time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS chip_records (
	id            BIGSERIAL PRIMARY KEY,
	trade_date    CHAR(8) NOT NULL UNIQUE,
	taiex         JSONB,
	futures       JSONB,
	institutional JSONB,
	inst_futures  JSONB,
	top_traders   JSONB,
	options       JSONB,
	pc_ratio      JSONB,
	vix           JSONB,
	retail        JSONB,
	diagnostics   JSONB,
	pushed        BOOLEAN NOT NULL DEFAULT FALSE,
	pushed_at     TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS push_logs (
	id         BIGSERIAL PRIMARY KEY,
	trade_date CHAR(8) NOT NULL,
	target     TEXT NOT NULL,
	view_name  TEXT NOT NULL,
	success    BOOLEAN NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	pushed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_push_logs_trade_date ON push_logs (trade_date);
`

// Repository persists chip records and push logs in Postgres. Sections
// are stored as jsonb so a source adding a field never needs a
// migration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new chip record repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// Upsert inserts or refreshes the record for its trading date. The push
// state of an existing row is preserved; re-collecting a day never
// causes a duplicate push.
func (r *Repository) Upsert(ctx context.Context, rec *market.ChipRecord) error {
	query := `
		INSERT INTO chip_records (
			trade_date, taiex, futures, institutional, inst_futures,
			top_traders, options, pc_ratio, vix, retail, diagnostics
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (trade_date) DO UPDATE SET
			taiex         = EXCLUDED.taiex,
			futures       = EXCLUDED.futures,
			institutional = EXCLUDED.institutional,
			inst_futures  = EXCLUDED.inst_futures,
			top_traders   = EXCLUDED.top_traders,
			options       = EXCLUDED.options,
			pc_ratio      = EXCLUDED.pc_ratio,
			vix           = EXCLUDED.vix,
			retail        = EXCLUDED.retail,
			diagnostics   = EXCLUDED.diagnostics,
			updated_at    = now()
	`

	_, err := r.pool.Exec(ctx, query,
		string(rec.TradeDate),
		rec.Taiex, rec.Futures, rec.Institutional, rec.InstFutures,
		rec.TopTraders, rec.Options, rec.PCRatio, rec.VIX, rec.Retail,
		rec.Diagnostics,
	)
	return err
}

const recordColumns = `
	trade_date, taiex, futures, institutional, inst_futures,
	top_traders, options, pc_ratio, vix, retail, diagnostics,
	pushed, pushed_at, created_at, updated_at
`

func scanRecord(row pgx.Row) (*market.ChipRecord, error) {
	var rec market.ChipRecord
	var tradeDate string
	err := row.Scan(
		&tradeDate,
		&rec.Taiex, &rec.Futures, &rec.Institutional, &rec.InstFutures,
		&rec.TopTraders, &rec.Options, &rec.PCRatio, &rec.VIX, &rec.Retail,
		&rec.Diagnostics,
		&rec.Pushed, &rec.PushedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.TradeDate = market.TradeDate(tradeDate)
	return &rec, nil
}

// GetByDate retrieves the record for a trading date.
func (r *Repository) GetByDate(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM chip_records WHERE trade_date = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, string(date)))
}

// GetLatest retrieves the most recent record on file.
func (r *Repository) GetLatest(ctx context.Context) (*market.ChipRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM chip_records ORDER BY trade_date DESC LIMIT 1`
	return scanRecord(r.pool.QueryRow(ctx, query))
}

// ListRecent retrieves up to limit records, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*market.ChipRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM chip_records ORDER BY trade_date DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*market.ChipRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkPushed flags the record as delivered.
func (r *Repository) MarkPushed(ctx context.Context, date market.TradeDate) error {
	query := `UPDATE chip_records SET pushed = TRUE, pushed_at = now() WHERE trade_date = $1`

	tag, err := r.pool.Exec(ctx, query, string(date))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePushLog appends one delivery attempt.
func (r *Repository) SavePushLog(ctx context.Context, log PushLog) error {
	query := `
		INSERT INTO push_logs (trade_date, target, view_name, success, error, pushed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		string(log.TradeDate), log.Target, string(log.View), log.Success, log.Error, log.PushedAt,
	)
	return err
}

// PushLogsByDate lists delivery attempts for a trading date, oldest first.
func (r *Repository) PushLogsByDate(ctx context.Context, date market.TradeDate) ([]*PushLog, error) {
	query := `
		SELECT trade_date, target, view_name, success, error, pushed_at
		FROM push_logs
		WHERE trade_date = $1
		ORDER BY pushed_at ASC
	`

	rows, err := r.pool.Query(ctx, query, string(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*PushLog
	for rows.Next() {
		var log PushLog
		var tradeDate, view string
		if err := rows.Scan(&tradeDate, &log.Target, &view, &log.Success, &log.Error, &log.PushedAt); err != nil {
			return nil, err
		}
		log.TradeDate = market.TradeDate(tradeDate)
		log.View = View(view)
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
