package storage

// sqlite.go: persistencia de resultados de simulación.
//
// Estrategia:
//   - `runs`: una fila por ejecución (controlador, ventana, fitness y cartera final).
//   - `trades`: el log de eventos de cada ejecución, en orden (run_id, seq).
//   - Los importes se guardan como TEXT para no perder precisión decimal;
//     el orden por fitness usa CAST a REAL, suficiente para rankear.
//   - Prune automático al arrancar: ejecuciones de más de 90 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

const schema = `
-- Una fila por ejecución
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    controller   TEXT    NOT NULL,
    symbol       TEXT    NOT NULL,
    start_date   TEXT    NOT NULL,
    end_date     TEXT    NOT NULL,
    days         INTEGER NOT NULL DEFAULT 0,
    decisions    INTEGER NOT NULL DEFAULT 0,
    trades       INTEGER NOT NULL DEFAULT 0,
    final_close  TEXT    NOT NULL,
    ending_value TEXT    NOT NULL,
    baseline     TEXT    NOT NULL,
    fitness      TEXT    NOT NULL,
    cash         TEXT    NOT NULL,
    shares       INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL
);

-- Eventos del ledger por ejecución
CREATE TABLE IF NOT EXISTS trades (
    run_id     TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq        INTEGER NOT NULL,
    date       TEXT    NOT NULL,
    action     TEXT    NOT NULL,
    symbol     TEXT    NOT NULL,
    direction  TEXT,
    strike     TEXT,
    expiration TEXT,
    amount     INTEGER NOT NULL,
    price      TEXT    NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_symbol  ON runs(symbol);
`

const retentionRuns = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.ResultStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.ResultStorage = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia ejecuciones antiguas.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persiste la ejecución y su log de eventos en una transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run ports.RunRecord, trades []domain.TradeEvent) error {
	res := run.Result
	var (
		cash   = decimal.Zero
		shares int64
	)
	if res.Portfolio != nil {
		cash = res.Portfolio.Cash
		shares = res.Portfolio.Shares(res.Security)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, controller, symbol, start_date, end_date, days, decisions, trades,
			 final_close, ending_value, baseline, fitness, cash, shares, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Controller,
		res.Security.Symbol,
		dateString(res.Start),
		dateString(res.End),
		res.Days,
		res.Decisions,
		res.Trades,
		res.FinalClose.String(),
		res.EndingValue.String(),
		res.Baseline.String(),
		res.Fitness.String(),
		cash.String(),
		shares,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	if len(trades) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades
				(run_id, seq, date, action, symbol, direction, strike, expiration, amount, price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("storage.SaveRun: prepare: %w", err)
		}
		defer stmt.Close()

		for i, e := range trades {
			var direction, strike, expiration *string
			if e.Contract != nil {
				dir := e.Contract.Direction.String()
				str := e.Contract.Strike.String()
				exp := dateString(e.Contract.Expiration)
				direction, strike, expiration = &dir, &str, &exp
			}
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, dateString(e.Date), string(e.Action), e.Security.Symbol,
				direction, strike, expiration, e.Amount, e.Price.String(),
			); err != nil {
				return fmt.Errorf("storage.SaveRun: insert trade %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRuns devuelve las ejecuciones ordenadas por fitness desc, las mejores primero.
// limit <= 0 devuelve todas.
func (s *SQLiteStorage) GetRuns(ctx context.Context, limit int) ([]ports.RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: sin límite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, controller, symbol, start_date, end_date, days, decisions, trades,
		       final_close, ending_value, baseline, fitness, cash, shares
		FROM runs
		ORDER BY CAST(fitness AS REAL) DESC, created_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []ports.RunRecord
	for rows.Next() {
		var (
			run                                          ports.RunRecord
			symbol, start, end                           string
			finalClose, endingValue, baseline, fit, cash string
			shares                                       int64
		)
		if err := rows.Scan(
			&run.ID, &run.Controller, &symbol, &start, &end,
			&run.Result.Days, &run.Result.Decisions, &run.Result.Trades,
			&finalClose, &endingValue, &baseline, &fit, &cash, &shares,
		); err != nil {
			return nil, fmt.Errorf("storage.GetRuns: scan row: %w", err)
		}

		var dec rowDecoder
		res := &run.Result
		res.Security = domain.NewSecurity(symbol)
		res.Start = dec.date("start_date", start)
		res.End = dec.date("end_date", end)
		res.FinalClose = dec.decimal("final_close", finalClose)
		res.EndingValue = dec.decimal("ending_value", endingValue)
		res.Baseline = dec.decimal("baseline", baseline)
		res.Fitness = dec.decimal("fitness", fit)
		res.Portfolio = domain.NewPortfolio(dec.decimal("cash", cash),
			map[domain.Security]int64{res.Security: shares})
		if dec.err != nil {
			return nil, fmt.Errorf("storage.GetRuns: run %s: %w", run.ID, dec.err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetTrades devuelve el log de eventos de una ejecución en orden.
func (s *SQLiteStorage) GetTrades(ctx context.Context, runID string) ([]domain.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, action, symbol, direction, strike, expiration, amount, price
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTrades: query: %w", err)
	}
	defer rows.Close()

	var events []domain.TradeEvent
	for rows.Next() {
		var (
			date, action, symbol, price   string
			direction, strike, expiration sql.NullString
			amount                        int64
		)
		if err := rows.Scan(&date, &action, &symbol, &direction, &strike, &expiration, &amount, &price); err != nil {
			return nil, fmt.Errorf("storage.GetTrades: scan row: %w", err)
		}

		var dec rowDecoder
		e := domain.TradeEvent{
			Date:     dec.date("date", date),
			Action:   domain.TradeAction(action),
			Security: domain.NewSecurity(symbol),
			Amount:   amount,
			Price:    dec.decimal("price", price),
		}

		if direction.Valid {
			dir, err := domain.ParseDirection(direction.String)
			if err != nil {
				return nil, fmt.Errorf("storage.GetTrades: run %s: %w", runID, err)
			}
			o := domain.NewOption(dir, e.Security,
				dec.decimal("strike", strike.String), dec.date("expiration", expiration.String))
			e.Contract = &o
		}
		if dec.err != nil {
			return nil, fmt.Errorf("storage.GetTrades: run %s: %w", runID, dec.err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina ejecuciones antiguas para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	s.db.ExecContext(ctx, `DELETE FROM trades WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
}

// rowDecoder convierte columnas TEXT y conserva el primer error.
type rowDecoder struct {
	err error
}

func (d *rowDecoder) decimal(col, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

// date acepta "" como fecha vacía, igual que dateString la escribe.
func (d *rowDecoder) date(col, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("column %s: %w", col, err)
	}
	return t
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
