// Package store persists price history, data-quality findings and backtest
// output in SQLite. Decimals are stored as TEXT to avoid float drift; dates
// as ISO strings.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/quality"
	"github.com/quantforge/trendfollow/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const dateLayout = "2006-01-02"

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Migrate runs database migrations.
func (s *Store) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			name TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			sector TEXT NOT NULL,
			point_value TEXT NOT NULL,
			currency TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS daily_prices (
			instrument TEXT NOT NULL,
			date TEXT NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (instrument, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_instrument ON daily_prices(instrument)`,

		`CREATE TABLE IF NOT EXISTS quality_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument TEXT NOT NULL,
			date TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quality_instrument ON quality_log(instrument)`,

		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			instrument TEXT NOT NULL,
			strategy TEXT NOT NULL,
			start_capital TEXT NOT NULL,
			end_equity TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id TEXT NOT NULL,
			trade_id TEXT NOT NULL,
			instrument TEXT NOT NULL,
			side INTEGER NOT NULL,
			contracts INTEGER NOT NULL,
			entry_date TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			exit_date TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			gross_pl TEXT NOT NULL,
			costs TEXT NOT NULL,
			net_pl TEXT NOT NULL,
			holding_days INTEGER NOT NULL,
			forced_exit INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, trade_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bt_trades_run ON backtest_trades(run_id)`,

		`CREATE TABLE IF NOT EXISTS backtest_equity (
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			equity TEXT NOT NULL,
			realized_pl TEXT NOT NULL,
			unrealized_pl TEXT NOT NULL,
			PRIMARY KEY (run_id, date)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// UpsertInstrument saves or replaces an instrument definition.
func (s *Store) UpsertInstrument(ctx context.Context, spec types.InstrumentSpec) error {
	query := `INSERT OR REPLACE INTO instruments (name, ticker, sector, point_value, currency)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		spec.Name,
		spec.Ticker,
		spec.Sector,
		spec.PointValue.String(),
		spec.Currency,
	)
	if err != nil {
		return fmt.Errorf("upsert instrument: %w", err)
	}

	return nil
}

// StoreBars saves a bar series in one transaction, replacing any rows already
// present for the same dates.
func (s *Store) StoreBars(ctx context.Context, instrument string, bars []types.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO daily_prices (instrument, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, bar := range bars {
		_, err := stmt.ExecContext(ctx,
			instrument,
			bar.Date.Format(dateLayout),
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
			bar.Volume,
		)
		if err != nil {
			return fmt.Errorf("insert bar %s: %w", bar.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bars: %w", err)
	}

	return nil
}

// LoadBars returns the full stored series for an instrument in date order.
// Returns ErrNoData when nothing is stored.
func (s *Store) LoadBars(ctx context.Context, instrument string) ([]types.Bar, error) {
	query := `SELECT date, open, high, low, close, volume
		FROM daily_prices WHERE instrument = ? ORDER BY date`

	rows, err := s.db.QueryContext(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bars []types.Bar
	for rows.Next() {
		var dateStr, open, high, low, closePx string
		var volume int64

		if err := rows.Scan(&dateStr, &open, &high, &low, &closePx, &volume); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", dateStr, err)
		}

		bar := types.Bar{Date: date, Volume: volume}
		bar.Open, _ = decimal.NewFromString(open)
		bar.High, _ = decimal.NewFromString(high)
		bar.Low, _ = decimal.NewFromString(low)
		bar.Close, _ = decimal.NewFromString(closePx)
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no stored bars for %s", types.ErrNoData, instrument)
	}

	return bars, nil
}

// LogQualityIssues appends findings to the quality log.
func (s *Store) LogQualityIssues(ctx context.Context, issues []quality.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quality_log (instrument, date, kind, detail) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, issue := range issues {
		_, err := stmt.ExecContext(ctx,
			issue.Instrument,
			issue.Date.Format(dateLayout),
			issue.Kind,
			issue.Detail,
		)
		if err != nil {
			return fmt.Errorf("insert quality issue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quality log: %w", err)
	}

	return nil
}

// QualityIssues returns the logged findings for one instrument, oldest first.
func (s *Store) QualityIssues(ctx context.Context, instrument string) ([]quality.Issue, error) {
	query := `SELECT instrument, date, kind, detail
		FROM quality_log WHERE instrument = ? ORDER BY date, id`

	rows, err := s.db.QueryContext(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("query quality log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []quality.Issue
	for rows.Next() {
		var issue quality.Issue
		var dateStr string

		if err := rows.Scan(&issue.Instrument, &dateStr, &issue.Kind, &issue.Detail); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		issue.Date, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", dateStr, err)
		}

		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

// RunRecord describes one persisted backtest run.
type RunRecord struct {
	ID           string
	Instrument   string
	Strategy     string
	StartCapital decimal.Decimal
	EndEquity    decimal.Decimal
}

// SaveRun persists a run header plus its trades and equity curve in one
// transaction. A missing run ID is assigned a fresh UUID; the final ID is
// returned either way.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, trades []types.Trade, curve []types.EquityPoint) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO backtest_runs (id, instrument, strategy, start_capital, end_equity)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Instrument, run.Strategy,
		run.StartCapital.String(), run.EndEquity.String(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_trades
		(run_id, trade_id, instrument, side, contracts, entry_date, entry_price,
		 exit_date, exit_price, gross_pl, costs, net_pl, holding_days, forced_exit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare trade insert: %w", err)
	}
	defer func() { _ = tradeStmt.Close() }()

	for _, t := range trades {
		_, err := tradeStmt.ExecContext(ctx,
			run.ID, t.ID, t.Instrument, int(t.Side), t.Contracts,
			t.EntryDate.Format(dateLayout), t.EntryPrice.String(),
			t.ExitDate.Format(dateLayout), t.ExitPrice.String(),
			t.GrossPL.String(), t.Costs.String(), t.NetPL.String(),
			t.HoldingDays, boolToInt(t.ForcedExit),
		)
		if err != nil {
			return "", fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_equity (run_id, date, equity, realized_pl, unrealized_pl)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare equity insert: %w", err)
	}
	defer func() { _ = equityStmt.Close() }()

	for _, pt := range curve {
		_, err := equityStmt.ExecContext(ctx,
			run.ID, pt.Date.Format(dateLayout),
			pt.Equity.String(), pt.RealizedPL.String(), pt.UnrealizedPL.String(),
		)
		if err != nil {
			return "", fmt.Errorf("insert equity point %s: %w", pt.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}

	return run.ID, nil
}

// LoadTrades returns the trades of a run in close order.
func (s *Store) LoadTrades(ctx context.Context, runID string) ([]types.Trade, error) {
	query := `SELECT trade_id, instrument, side, contracts, entry_date, entry_price,
		exit_date, exit_price, gross_pl, costs, net_pl, holding_days, forced_exit
		FROM backtest_trades WHERE run_id = ? ORDER BY exit_date, trade_id`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trades []types.Trade
	for rows.Next() {
		var t types.Trade
		var side, forced int
		var entryDate, entryPrice, exitDate, exitPrice, grossPL, costs, netPL string

		if err := rows.Scan(&t.ID, &t.Instrument, &side, &t.Contracts,
			&entryDate, &entryPrice, &exitDate, &exitPrice,
			&grossPL, &costs, &netPL, &t.HoldingDays, &forced); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		t.Side = types.Side(side)
		t.ForcedExit = forced == 1
		if t.EntryDate, err = time.Parse(dateLayout, entryDate); err != nil {
			return nil, fmt.Errorf("parse entry date %q: %w", entryDate, err)
		}
		if t.ExitDate, err = time.Parse(dateLayout, exitDate); err != nil {
			return nil, fmt.Errorf("parse exit date %q: %w", exitDate, err)
		}
		t.EntryPrice, _ = decimal.NewFromString(entryPrice)
		t.ExitPrice, _ = decimal.NewFromString(exitPrice)
		t.GrossPL, _ = decimal.NewFromString(grossPL)
		t.Costs, _ = decimal.NewFromString(costs)
		t.NetPL, _ = decimal.NewFromString(netPL)

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// LoadEquityCurve returns the equity curve of a run in date order.
func (s *Store) LoadEquityCurve(ctx context.Context, runID string) ([]types.EquityPoint, error) {
	query := `SELECT date, equity, realized_pl, unrealized_pl
		FROM backtest_equity WHERE run_id = ? ORDER BY date`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var curve []types.EquityPoint
	for rows.Next() {
		var pt types.EquityPoint
		var dateStr, equity, realized, unrealized string

		if err := rows.Scan(&dateStr, &equity, &realized, &unrealized); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var err error
		if pt.Date, err = time.Parse(dateLayout, dateStr); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", dateStr, err)
		}
		pt.Equity, _ = decimal.NewFromString(equity)
		pt.RealizedPL, _ = decimal.NewFromString(realized)
		pt.UnrealizedPL, _ = decimal.NewFromString(unrealized)

		curve = append(curve, pt)
	}

	return curve, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
