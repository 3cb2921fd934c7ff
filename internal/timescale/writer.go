package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hl-basis-backtest/internal/backtest"
	"hl-basis-backtest/internal/config"
	"hl-basis-backtest/internal/series"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

var schemaPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Run is one persisted backtest.
type Run struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	EquityTicker string
	PerpCoin     string
	Result       *backtest.Result
}

type Writer struct {
	db     *sql.DB
	log    *zap.Logger
	schema string
}

// New returns a nil writer when the sink is disabled; a nil *Writer ignores writes.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema, err := normalizeSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := &Writer{db: db, log: log, schema: schema}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func normalizeSchema(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return "public", nil
	}
	if !schemaPattern.MatchString(schema) {
		return "", fmt.Errorf("invalid timescale schema %q", schema)
	}
	return schema, nil
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	for _, stmt := range schemaStatements(w.schema) {
		if err := w.exec(ctx, stmt); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, table := range []string{"backtest_pnl", "funding_rates"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(table))); err != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", table), zap.Error(err))
		}
	}
	return nil
}

func schemaStatements(schema string) []string {
	table := func(name string) string { return schema + "." + name }
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		equity_ticker TEXT NOT NULL,
		perp_coin TEXT NOT NULL,
		notional_usd DOUBLE PRECISION NOT NULL,
		entry_ts TIMESTAMPTZ NOT NULL,
		exit_ts TIMESTAMPTZ NOT NULL,
		hours INTEGER NOT NULL,
		market_hours INTEGER NOT NULL,
		total_price_pnl NUMERIC NOT NULL,
		total_funding_pnl NUMERIC NOT NULL,
		total_pnl NUMERIC NOT NULL,
		return_pct NUMERIC NOT NULL,
		annualized_return_pct NUMERIC NOT NULL,
		win_rate DOUBLE PRECISION NOT NULL,
		warnings INTEGER NOT NULL
	)`, table("backtest_runs")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		run_id UUID NOT NULL,
		market_open BOOLEAN NOT NULL,
		equity_price DOUBLE PRECISION NOT NULL,
		perp_price DOUBLE PRECISION NOT NULL,
		funding_rate DOUBLE PRECISION NOT NULL,
		equity_pnl NUMERIC NOT NULL,
		perp_pnl NUMERIC NOT NULL,
		funding_pnl NUMERIC NOT NULL,
		hour_pnl NUMERIC NOT NULL,
		cumulative_pnl NUMERIC NOT NULL,
		cumulative_funding NUMERIC NOT NULL,
		PRIMARY KEY (ts, run_id)
	)`, table("backtest_pnl")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		coin TEXT NOT NULL,
		funding_rate DOUBLE PRECISION NOT NULL,
		premium DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (ts, coin)
	)`, table("funding_rates")),
	}
}

// WriteRun stores the run summary and every hourly row in one transaction.
func (w *Writer) WriteRun(ctx context.Context, run Run) error {
	if w == nil || w.db == nil {
		return nil
	}
	if run.Result == nil {
		return errors.New("timescale: run has no result")
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, w.runInsert(), runArgs(run)...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, w.pnlInsert())
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range run.Result.Rows {
		if _, err := stmt.ExecContext(ctx, pnlArgs(run.ID, row)...); err != nil {
			return fmt.Errorf("insert pnl row %s: %w", row.Time.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	w.log.Info("backtest persisted",
		zap.String("run_id", run.ID.String()),
		zap.Int("rows", len(run.Result.Rows)),
	)
	return nil
}

// WriteFunding upserts funding history so repeated reports do not duplicate rows.
func (w *Writer) WriteFunding(ctx context.Context, coin string, records []series.FundingRecord) error {
	if w == nil || w.db == nil || len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, w.fundingUpsert())
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Time.UTC(), coin, rec.Rate, rec.Premium); err != nil {
			return fmt.Errorf("upsert funding %s: %w", rec.Time.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

func (w *Writer) runInsert() string {
	return fmt.Sprintf(`INSERT INTO %s (
		run_id, created_at, equity_ticker, perp_coin, notional_usd, entry_ts, exit_ts, hours, market_hours,
		total_price_pnl, total_funding_pnl, total_pnl, return_pct, annualized_return_pct, win_rate, warnings
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
	)`, w.table("backtest_runs"))
}

func (w *Writer) pnlInsert() string {
	return fmt.Sprintf(`INSERT INTO %s (
		ts, run_id, market_open, equity_price, perp_price, funding_rate,
		equity_pnl, perp_pnl, funding_pnl, hour_pnl, cumulative_pnl, cumulative_funding
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	)`, w.table("backtest_pnl"))
}

func (w *Writer) fundingUpsert() string {
	return fmt.Sprintf(`INSERT INTO %s (ts, coin, funding_rate, premium) VALUES ($1,$2,$3,$4)
	ON CONFLICT (ts, coin) DO UPDATE SET
		funding_rate = EXCLUDED.funding_rate,
		premium = EXCLUDED.premium`, w.table("funding_rates"))
}

func runArgs(run Run) []any {
	s := run.Result.Summary
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{
		run.ID.String(),
		created.UTC(),
		run.EquityTicker,
		run.PerpCoin,
		s.Notional,
		s.EntryTime.UTC(),
		s.ExitTime.UTC(),
		s.NumberOfHours,
		s.MarketHours,
		s.TotalPricePnL.String(),
		s.TotalFundingPnL.String(),
		s.TotalPnL.String(),
		s.ReturnPct.String(),
		s.AnnualizedReturnPct.String(),
		s.WinRate,
		len(run.Result.Warnings),
	}
}

func pnlArgs(runID uuid.UUID, row backtest.PnLRow) []any {
	return []any{
		row.Time.UTC(),
		runID.String(),
		row.MarketOpen,
		row.EquityPrice,
		row.PerpPrice,
		row.FundingRate,
		row.EquityPnL.String(),
		row.PerpPricePnL.String(),
		row.FundingPnL.String(),
		row.HourPnL.String(),
		row.CumulativePnL.String(),
		row.CumulativeFunding.String(),
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
