package storage

// sqlite.go — persistencia de parlays, legs y order snapshots.
//
// Estrategia:
//   - `parlays`: una fila por parlay, status transiciona in place y nunca
//     se borra (audit trail completo).
//   - `parlay_legs`: snapshot inmutable del precio que justificó cada leg.
//   - `order_snapshots`: una fila por intento de envío, también los fallidos.
//   - `markets`: mirror best-effort del catálogo del venue, vía UPSERT.
//   - Las transiciones de status son compare-and-set: UPDATE condicionado
//     al status previo, RowsAffected decide si hubo transición.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parlayhub/parlayd/internal/domain"
)

const schema = `
-- Una fila por parlay; el status transiciona in place
CREATE TABLE IF NOT EXISTS parlays (
    id               TEXT PRIMARY KEY,
    user_address     TEXT     NOT NULL,
    stake            REAL     NOT NULL,
    k_total          REAL     NOT NULL,
    expected_payout  REAL     NOT NULL,
    max_slippage_bps INTEGER  NOT NULL,
    status           TEXT     NOT NULL,
    actual_payout    REAL,
    realized_pnl     REAL,
    resolved_at      DATETIME,
    created_at       DATETIME NOT NULL
);

-- Snapshot inmutable de cada leg al momento de creación
CREATE TABLE IF NOT EXISTS parlay_legs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    parlay_id     TEXT    NOT NULL REFERENCES parlays(id),
    leg_index     INTEGER NOT NULL,
    market_id     TEXT    NOT NULL,
    outcome_index INTEGER NOT NULL,
    price_used    REAL    NOT NULL,
    size          REAL    NOT NULL,
    UNIQUE (parlay_id, leg_index)
);

-- Un intento de envío por fila, incluidos los fallidos
CREATE TABLE IF NOT EXISTS order_snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    parlay_id      TEXT     NOT NULL REFERENCES parlays(id),
    market_id      TEXT     NOT NULL,
    venue_order_id TEXT     NOT NULL DEFAULT '',
    side           TEXT     NOT NULL,
    price          REAL     NOT NULL,
    size           REAL     NOT NULL,
    status         TEXT     NOT NULL,
    raw            TEXT     NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL
);

-- Mirror best-effort del catálogo de mercados
CREATE TABLE IF NOT EXISTS markets (
    id         TEXT PRIMARY KEY,
    question   TEXT,
    outcomes   TEXT    NOT NULL DEFAULT '',
    end_date   DATETIME,
    status     TEXT    NOT NULL DEFAULT '',
    volume     REAL    NOT NULL DEFAULT 0,
    liquidity  REAL    NOT NULL DEFAULT 0,
    synced_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parlays_user    ON parlays(user_address, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_parlays_status  ON parlays(user_address, status);
CREATE INDEX IF NOT EXISTS idx_legs_parlay     ON parlay_legs(parlay_id, leg_index);
CREATE INDEX IF NOT EXISTS idx_snaps_parlay    ON order_snapshots(parlay_id, id);
CREATE INDEX IF NOT EXISTS idx_markets_status  ON markets(status);
`

// SQLiteStore implementa ports.ParlayStore y ports.MarketSyncer usando
// SQLite (pure Go, sin CGo). path acepta ":memory:" para tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// CreateParlay inserta el parlay con sus legs en una transacción.
func (s *SQLiteStore) CreateParlay(ctx context.Context, p domain.Parlay) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.CreateParlay: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO parlays
			(id, user_address, stake, k_total, expected_payout,
			 max_slippage_bps, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.UserAddress, p.Stake, p.KTotal, p.ExpectedPayout,
		p.MaxSlippageBps, string(p.Status), p.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.CreateParlay: insert parlay: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO parlay_legs (parlay_id, leg_index, market_id, outcome_index, price_used, size)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.CreateParlay: prepare legs: %w", err)
	}
	defer stmt.Close()

	for i, leg := range p.Legs {
		if _, err := stmt.ExecContext(ctx, p.ID, i, leg.MarketID, leg.OutcomeIndex, leg.PriceUsed, leg.Size); err != nil {
			return fmt.Errorf("storage.CreateParlay: insert leg %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.CreateParlay: commit: %w", err)
	}
	return nil
}

// GetParlay devuelve el parlay con sus legs, o domain.ErrParlayNotFound.
func (s *SQLiteStore) GetParlay(ctx context.Context, id string) (domain.Parlay, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_address, stake, k_total, expected_payout,
		       max_slippage_bps, status, actual_payout, realized_pnl,
		       resolved_at, created_at
		FROM parlays WHERE id = ?
	`, id)

	p, err := scanParlay(row)
	if err == sql.ErrNoRows {
		return domain.Parlay{}, domain.ErrParlayNotFound
	}
	if err != nil {
		return domain.Parlay{}, fmt.Errorf("storage.GetParlay: scan: %w", err)
	}

	legs, err := s.parlayLegs(ctx, id)
	if err != nil {
		return domain.Parlay{}, fmt.Errorf("storage.GetParlay: legs: %w", err)
	}
	p.Legs = legs
	return p, nil
}

// UserParlays devuelve los parlays del usuario, más recientes primero.
func (s *SQLiteStore) UserParlays(ctx context.Context, userAddress string) ([]domain.Parlay, error) {
	return s.queryParlays(ctx, `
		SELECT id, user_address, stake, k_total, expected_payout,
		       max_slippage_bps, status, actual_payout, realized_pnl,
		       resolved_at, created_at
		FROM parlays WHERE user_address = ?
		ORDER BY created_at DESC
	`, userAddress)
}

// UserParlaysByStatus filtra además por status.
func (s *SQLiteStore) UserParlaysByStatus(ctx context.Context, userAddress string, status domain.ParlayStatus) ([]domain.Parlay, error) {
	return s.queryParlays(ctx, `
		SELECT id, user_address, stake, k_total, expected_payout,
		       max_slippage_bps, status, actual_payout, realized_pnl,
		       resolved_at, created_at
		FROM parlays WHERE user_address = ? AND status = ?
		ORDER BY created_at DESC
	`, userAddress, string(status))
}

// UpdateParlayStatus aplica una transición condicional de status.
// Devuelve false si el parlay no estaba en el status `from` — otro caller
// ganó la transición o el parlay ya es terminal.
func (s *SQLiteStore) UpdateParlayStatus(ctx context.Context, id string, from, to domain.ParlayStatus, settlement *domain.Settlement) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if settlement != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE parlays
			SET status = ?, actual_payout = ?, realized_pnl = ?, resolved_at = ?
			WHERE id = ? AND status = ?
		`, string(to), settlement.ActualPayout, settlement.RealizedPnl, settlement.ResolvedAt.UTC(), id, string(from))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE parlays SET status = ? WHERE id = ? AND status = ?
		`, string(to), id, string(from))
	}
	if err != nil {
		return false, fmt.Errorf("storage.UpdateParlayStatus: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.UpdateParlayStatus: rows affected: %w", err)
	}
	if n == 0 {
		// Distinguir "no existe" de "status distinto"
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM parlays WHERE id = ?`, id).Scan(&exists); err == sql.ErrNoRows {
			return false, domain.ErrParlayNotFound
		} else if err != nil {
			return false, fmt.Errorf("storage.UpdateParlayStatus: exists check: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// SaveOrderSnapshot registra un intento de envío y devuelve el ID asignado.
func (s *SQLiteStore) SaveOrderSnapshot(ctx context.Context, snap domain.OrderSnapshot) (int64, error) {
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_snapshots
			(parlay_id, market_id, venue_order_id, side, price, size, status, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ParlayID, snap.MarketID, snap.VenueOrderID, string(snap.Side),
		snap.Price, snap.Size, string(snap.Status), snap.Raw, createdAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveOrderSnapshot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.SaveOrderSnapshot: last insert id: %w", err)
	}
	return id, nil
}

// OrderSnapshots devuelve los snapshots del parlay en orden de creación.
func (s *SQLiteStore) OrderSnapshots(ctx context.Context, parlayID string) ([]domain.OrderSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parlay_id, market_id, venue_order_id, side, price, size, status, raw, created_at
		FROM order_snapshots WHERE parlay_id = ?
		ORDER BY id ASC
	`, parlayID)
	if err != nil {
		return nil, fmt.Errorf("storage.OrderSnapshots: query: %w", err)
	}
	defer rows.Close()

	var snaps []domain.OrderSnapshot
	for rows.Next() {
		var (
			snap      domain.OrderSnapshot
			side      string
			status    string
			createdAt string
		)
		if err := rows.Scan(
			&snap.ID, &snap.ParlayID, &snap.MarketID, &snap.VenueOrderID,
			&side, &snap.Price, &snap.Size, &status, &snap.Raw, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage.OrderSnapshots: scan row: %w", err)
		}
		snap.Side = domain.Side(side)
		snap.Status = domain.OrderStatus(status)
		snap.CreatedAt = parseDBTime(createdAt)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// SyncMarkets hace upsert del catálogo de mercados. Implementa ports.MarketSyncer.
func (s *SQLiteStore) SyncMarkets(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SyncMarkets: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markets (id, question, outcomes, end_date, status, volume, liquidity, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question  = excluded.question,
			outcomes  = excluded.outcomes,
			end_date  = excluded.end_date,
			status    = excluded.status,
			volume    = excluded.volume,
			liquidity = excluded.liquidity,
			synced_at = excluded.synced_at
	`)
	if err != nil {
		return fmt.Errorf("storage.SyncMarkets: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range markets {
		var endDate *time.Time
		if !m.EndDate.IsZero() {
			t := m.EndDate.UTC()
			endDate = &t
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.Question, strings.Join(m.Outcomes, "|"), endDate,
			m.Status, m.Volume, m.Liquidity, now,
		); err != nil {
			return fmt.Errorf("storage.SyncMarkets: upsert %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// rowScanner cubre *sql.Row y *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanParlay(row rowScanner) (domain.Parlay, error) {
	var (
		p            domain.Parlay
		status       string
		actualPayout sql.NullFloat64
		realizedPnl  sql.NullFloat64
		resolvedAt   sql.NullString
		createdAt    string
	)
	if err := row.Scan(
		&p.ID, &p.UserAddress, &p.Stake, &p.KTotal, &p.ExpectedPayout,
		&p.MaxSlippageBps, &status, &actualPayout, &realizedPnl,
		&resolvedAt, &createdAt,
	); err != nil {
		return domain.Parlay{}, err
	}

	p.Status = domain.ParlayStatus(status)
	p.CreatedAt = parseDBTime(createdAt)
	if actualPayout.Valid {
		p.ActualPayout = &actualPayout.Float64
	}
	if realizedPnl.Valid {
		p.RealizedPnl = &realizedPnl.Float64
	}
	if resolvedAt.Valid {
		t := parseDBTime(resolvedAt.String)
		p.ResolvedAt = &t
	}
	return p, nil
}

// parseDBTime acepta los formatos con los que el driver serializa time.Time.
func parseDBTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (s *SQLiteStore) queryParlays(ctx context.Context, query string, args ...any) ([]domain.Parlay, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query parlays: %w", err)
	}
	defer rows.Close()

	var parlays []domain.Parlay
	for rows.Next() {
		p, err := scanParlay(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan parlay: %w", err)
		}
		parlays = append(parlays, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range parlays {
		legs, err := s.parlayLegs(ctx, parlays[i].ID)
		if err != nil {
			return nil, fmt.Errorf("storage: legs for %s: %w", parlays[i].ID, err)
		}
		parlays[i].Legs = legs
	}
	return parlays, nil
}

func (s *SQLiteStore) parlayLegs(ctx context.Context, parlayID string) ([]domain.ParlayLeg, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, outcome_index, price_used, size
		FROM parlay_legs WHERE parlay_id = ?
		ORDER BY leg_index ASC
	`, parlayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []domain.ParlayLeg
	for rows.Next() {
		var leg domain.ParlayLeg
		if err := rows.Scan(&leg.MarketID, &leg.OutcomeIndex, &leg.PriceUsed, &leg.Size); err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}
