package recorder

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the audit trail to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the engine writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id           TEXT PRIMARY KEY,
			timestamp    INTEGER NOT NULL,
			game         TEXT NOT NULL,
			account_id   TEXT NOT NULL,
			stake        TEXT NOT NULL,
			house_share  TEXT NOT NULL,
			pool_share   TEXT NOT NULL,
			slot         INTEGER NOT NULL,
			odds         TEXT NOT NULL,
			winnings     TEXT NOT NULL,
			pool_before  TEXT NOT NULL,
			pool_after   TEXT NOT NULL,
			jackpot      INTEGER NOT NULL DEFAULT 0,
			guarded      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_game_ts ON rounds(game, timestamp)`,

		`CREATE TABLE IF NOT EXISTS pool_snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			game           TEXT NOT NULL,
			pool_balance   TEXT NOT NULL,
			house_earnings TEXT NOT NULL,
			next_position  INTEGER,
			next_round     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON pool_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRound(rec *RoundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO rounds
		(id, timestamp, game, account_id, stake, house_share, pool_share,
		 slot, odds, winnings, pool_before, pool_after, jackpot, guarded)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Timestamp.UnixMilli(), rec.Game, rec.AccountID,
		rec.Stake.String(), rec.HouseShare.String(), rec.PoolShare.String(),
		rec.Slot, rec.Odds.String(), rec.Winnings.String(),
		rec.PoolBefore.String(), rec.PoolAfter.String(),
		rec.Jackpot, rec.Guarded,
	)
	return err
}

func (r *SQLiteRecorder) RecordPoolSnapshot(s *PoolSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO pool_snapshots
		(timestamp, game, pool_balance, house_earnings, next_position, next_round)
		VALUES (?,?,?,?,?,?)`,
		s.Timestamp.UnixMilli(), s.Game,
		s.PoolBalance.String(), s.HouseEarnings.String(),
		s.NextPosition, s.NextRound,
	)
	return err
}

// RecentRounds returns the newest rounds of a game, newest first.
func (r *SQLiteRecorder) RecentRounds(game string, limit int) ([]RoundRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, game, account_id, stake, house_share, pool_share,
		       slot, odds, winnings, pool_before, pool_after, jackpot, guarded
		FROM rounds WHERE game = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, game, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var rec RoundRecord
		var stake, house, pool, odds, win, before, after string
		if err := rows.Scan(&rec.ID, &rec.Game, &rec.AccountID, &stake, &house, &pool,
			&rec.Slot, &odds, &win, &before, &after, &rec.Jackpot, &rec.Guarded); err != nil {
			return nil, err
		}
		rec.Stake, _ = decimal.NewFromString(stake)
		rec.HouseShare, _ = decimal.NewFromString(house)
		rec.PoolShare, _ = decimal.NewFromString(pool)
		rec.Odds, _ = decimal.NewFromString(odds)
		rec.Winnings, _ = decimal.NewFromString(win)
		rec.PoolBefore, _ = decimal.NewFromString(before)
		rec.PoolAfter, _ = decimal.NewFromString(after)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SnapshotCount returns how many pool snapshots were written.
func (r *SQLiteRecorder) SnapshotCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pool_snapshots`).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
