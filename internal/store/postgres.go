package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/model"
)

// schema is applied by Migrate. Money is NUMERIC for exact decimal precision.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                TEXT PRIMARY KEY,
		username          TEXT NOT NULL DEFAULT '',
		email             TEXT NOT NULL DEFAULT '',
		capital           NUMERIC NOT NULL,
		position          INTEGER NOT NULL DEFAULT 0,
		loss_streak       INTEGER NOT NULL DEFAULT 0,
		downgrade_losses  INTEGER NOT NULL DEFAULT 0,
		last_paid_amount  NUMERIC NOT NULL DEFAULT 0,
		earned_from_pool  NUMERIC NOT NULL DEFAULT 0,
		version           BIGINT NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pools (
		game            TEXT PRIMARY KEY,
		pool_balance    NUMERIC NOT NULL DEFAULT 0 CHECK (pool_balance >= 0),
		house_earnings  NUMERIC NOT NULL DEFAULT 0,
		next_position   INTEGER NOT NULL DEFAULT 1,
		next_round      INTEGER NOT NULL DEFAULT 1,
		version         BIGINT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payouts (
		id          TEXT PRIMARY KEY,
		game        TEXT NOT NULL,
		account_id  TEXT NOT NULL REFERENCES accounts(id),
		amount      NUMERIC NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payouts_game_ts ON payouts (game, timestamp DESC)`,
}

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, username, email, capital, position, loss_streak, downgrade_losses,
		                       last_paid_amount, earned_from_pool, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10, $11, $12)`,
		a.ID, a.Username, a.Email, a.Capital.String(),
		a.Position, a.LossStreak, a.DowngradeLosses,
		a.LastPaidAmount.String(), a.EarnedFromPool.String(),
		a.Version, a.CreatedAt, a.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("account %s: %w", a.ID, ErrDuplicate)
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	var capital, lastPaid, earned string

	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, capital::TEXT, position, loss_streak, downgrade_losses,
		        last_paid_amount::TEXT, earned_from_pool::TEXT, version, created_at, updated_at
		 FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Username, &a.Email, &capital,
			&a.Position, &a.LossStreak, &a.DowngradeLosses,
			&lastPaid, &earned, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	a.Capital, _ = decimal.NewFromString(capital)
	a.LastPaidAmount, _ = decimal.NewFromString(lastPaid)
	a.EarnedFromPool, _ = decimal.NewFromString(earned)
	return &a, nil
}

func (s *PostgresStore) GetOrCreatePool(ctx context.Context, game model.Game) (*model.PoolState, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pools (game, updated_at) VALUES ($1, $2) ON CONFLICT (game) DO NOTHING`,
		string(game), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("ensure pool %s: %w", game, err)
	}

	p, err := scanPool(s.pool.QueryRow(ctx,
		`SELECT game, pool_balance::TEXT, house_earnings::TEXT, next_position, next_round, version, updated_at
		 FROM pools WHERE game = $1`, string(game)))
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", game, err)
	}
	return p, nil
}

func (s *PostgresStore) ListPools(ctx context.Context) ([]model.PoolState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT game, pool_balance::TEXT, house_earnings::TEXT, next_position, next_round, version, updated_at
		 FROM pools ORDER BY game`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.PoolState
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}

// CommitRound runs the whole round write in one transaction. Each UPDATE
// is conditioned on the version the caller read; zero affected rows means
// someone else committed first.
func (s *PostgresStore) CommitRound(ctx context.Context, c *model.RoundCommit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin round: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	a, p := c.Account, c.Pool

	tag, err := tx.Exec(ctx,
		`UPDATE accounts
		 SET capital = $3::NUMERIC, position = $4, loss_streak = $5, downgrade_losses = $6,
		     last_paid_amount = $7::NUMERIC, earned_from_pool = $8::NUMERIC,
		     version = version + 1, updated_at = $9
		 WHERE id = $1 AND version = $2`,
		a.ID, c.AccountVersion, a.Capital.String(), a.Position, a.LossStreak, a.DowngradeLosses,
		a.LastPaidAmount.String(), a.EarnedFromPool.String(), now)
	if err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", a.ID, ErrVersionConflict)
	}

	tag, err = tx.Exec(ctx,
		`UPDATE pools
		 SET pool_balance = $3::NUMERIC, house_earnings = $4::NUMERIC,
		     next_position = $5, next_round = $6,
		     version = version + 1, updated_at = $7
		 WHERE game = $1 AND version = $2`,
		string(p.Game), c.PoolVersion, p.PoolBalance.String(), p.HouseEarnings.String(),
		p.NextPosition, p.NextRound, now)
	if err != nil {
		return fmt.Errorf("update pool %s: %w", p.Game, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pool %s: %w", p.Game, ErrVersionConflict)
	}

	if e := c.Payout; e != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO payouts (id, game, account_id, amount, timestamp)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
			e.ID, string(e.Game), e.AccountID, e.Amount.String(), e.Timestamp); err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit round: %w", err)
	}

	a.Version = c.AccountVersion + 1
	a.UpdatedAt = now
	p.Version = c.PoolVersion + 1
	p.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListPayouts(ctx context.Context, game model.Game, limit int) ([]model.PayoutEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, game, account_id, amount::TEXT, timestamp
		 FROM payouts WHERE game = $1 ORDER BY timestamp DESC LIMIT $2`, string(game), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.PayoutEntry
	for rows.Next() {
		var e model.PayoutEntry
		var g, amount string
		if err := rows.Scan(&e.ID, &g, &e.AccountID, &amount, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Game = model.Game(g)
		e.Amount, _ = decimal.NewFromString(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanPool reads one pools row from a pgx.Row or pgx.Rows.
func scanPool(row pgx.Row) (*model.PoolState, error) {
	var p model.PoolState
	var g, balance, house string
	if err := row.Scan(&g, &balance, &house, &p.NextPosition, &p.NextRound, &p.Version, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Game = model.Game(g)
	p.PoolBalance, _ = decimal.NewFromString(balance)
	p.HouseEarnings, _ = decimal.NewFromString(house)
	return &p, nil
}
