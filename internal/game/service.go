// Package game settles stakes for the position, fruit-slot and lucky-3
// pools and exposes them over HTTP.
//
// Every play runs the same critical section: acquire the pool's gate, load
// the account and pool, split the stake, let the variant decide the payout,
// commit account + pool + payout entry with version checks, record the
// round, broadcast it, release the gate. All monetary values use
// shopspring/decimal.
package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/cursor"
	"github.com/moneypool/payout-engine/internal/fruit"
	"github.com/moneypool/payout-engine/internal/gate"
	"github.com/moneypool/payout-engine/internal/lucky"
	"github.com/moneypool/payout-engine/internal/metrics"
	"github.com/moneypool/payout-engine/internal/model"
	"github.com/moneypool/payout-engine/internal/payout"
	"github.com/moneypool/payout-engine/internal/recorder"
	"github.com/moneypool/payout-engine/internal/stake"
	"github.com/moneypool/payout-engine/internal/store"
)

// Rules bundles the per-variant engines the service drives.
type Rules struct {
	Stake  *stake.Processor
	Cursor *cursor.Cursor
	Payout *payout.Calculator
	Fruit  *fruit.Engine
	Lucky  *lucky.Engine

	// StartingCapital is credited to every new account.
	StartingCapital decimal.Decimal
}

// Service owns the settlement flow. Exclusion per pool comes from the gate;
// the store's version check backs it up if a lease expires mid-round.
type Service struct {
	store    store.Store
	gate     gate.Gate
	rules    Rules
	recorder recorder.Recorder
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new game service.
// Pass nil for rec or hub when auditing or broadcasting is not needed.
func NewService(st store.Store, g gate.Gate, rules Rules, rec recorder.Recorder, hub *WSHub) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if rules.StartingCapital.IsZero() {
		rules.StartingCapital = decimal.NewFromInt(10000)
	}
	return &Service{
		store:    st,
		gate:     g,
		rules:    rules,
		recorder: rec,
		wsHub:    hub,
	}
}

// --- Results ---

// PositionResult is the outcome of one position-game stake.
type PositionResult struct {
	Winnings       decimal.Decimal `json:"winnings"`
	PoolBalance    decimal.Decimal `json:"poolBalance"`
	HouseEarnings  decimal.Decimal `json:"houseEarnings"`
	Position       int             `json:"position"`
	NextPosition   int             `json:"nextPosition"`
	Chance         decimal.Decimal `json:"chance"`
	Jackpot        bool            `json:"jackpot"`
	UpdatedCapital decimal.Decimal `json:"updatedCapital"`
}

// FruitResult is the outcome of one fruit-slot spin.
type FruitResult struct {
	Round          int             `json:"round"`
	Symbols        fruit.Round     `json:"symbols"`
	Winnings       decimal.Decimal `json:"winnings"`
	UpdatedCapital decimal.Decimal `json:"updatedCapital"`
	PoolBalance    decimal.Decimal `json:"poolBalance"`
}

// LuckyResult is the outcome of one lucky-3 play.
type LuckyResult struct {
	Round          int             `json:"round"`
	DrawnNumbers   []int           `json:"drawnNumbers"`
	MatchedNumbers []int           `json:"matchedNumbers"`
	Winnings       decimal.Decimal `json:"winnings"`
	Message        string          `json:"message"`
	UpdatedCapital decimal.Decimal `json:"updatedCapital"`
}

// --- Accounts ---

// CreateAccount opens an account with the starting capital.
func (s *Service) CreateAccount(ctx context.Context, username, email string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, invalid("username", "is required")
	}
	if email != "" && !strings.Contains(email, "@") {
		return nil, invalid("email", "is not a valid address")
	}

	now := time.Now().UTC()
	acc := &model.Account{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          email,
		Capital:        s.rules.StartingCapital,
		LastPaidAmount: decimal.Zero,
		EarnedFromPool: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return nil, storageErr("create account", err)
	}

	slog.Info("account created", "id", acc.ID, "username", username)
	return acc, nil
}

// GetAccount loads an account.
func (s *Service) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, storageErr("get account", err)
	}
	return acc, nil
}

// --- Plays ---

// PlayPosition stakes amount on the position game.
func (s *Service) PlayPosition(ctx context.Context, accountID string, amount decimal.Decimal) (*PositionResult, error) {
	var step cursor.Step
	r, err := s.play(ctx, model.GamePosition, accountID, amount, func(r *round) settlement {
		step = s.rules.Cursor.Advance(cursor.State{
			Position:        r.pool.NextPosition,
			LossStreak:      r.acc.LossStreak,
			DowngradeLosses: r.acc.DowngradeLosses,
		}, cursor.Input{Amount: r.split.Amount, PoolBefore: r.poolBefore})

		var res payout.Result
		if step.Jackpot {
			res = s.rules.Payout.Jackpot(step.Position, r.available())
		} else {
			res = s.rules.Payout.Compute(step.Position, r.available())
		}

		r.acc.Position = step.Position
		r.acc.LossStreak = step.LossStreak
		r.acc.DowngradeLosses = step.DowngradeLosses
		r.pool.NextPosition = step.Next

		return settlement{
			Winnings:  res.Winnings,
			PoolAfter: r.afterPayout(res.PoolAfter),
			Slot:      step.Position,
			Odds:      res.Chance,
			Jackpot:   step.Jackpot,
			Guarded:   res.Guarded,
		}
	})
	if err != nil {
		return nil, err
	}

	return &PositionResult{
		Winnings:       r.out.Winnings,
		PoolBalance:    r.pool.PoolBalance,
		HouseEarnings:  r.pool.HouseEarnings,
		Position:       step.Position,
		NextPosition:   step.Next,
		Chance:         r.out.Odds,
		Jackpot:        step.Jackpot,
		UpdatedCapital: r.acc.Capital,
	}, nil
}

// PlayFruit spins the fruit slot. The pool share always counts toward the
// solvency guard here, so the timing setting does not change the outcome.
func (s *Service) PlayFruit(ctx context.Context, accountID string, amount decimal.Decimal) (*FruitResult, error) {
	var spin fruit.Outcome
	r, err := s.play(ctx, model.GameFruit, accountID, amount, func(r *round) settlement {
		spin = s.rules.Fruit.Spin(r.pool.NextRound, r.split.Amount, r.poolBefore, r.split.Pool)
		r.pool.NextRound = spin.NextRound
		return settlement{
			Winnings:  spin.Winnings,
			PoolAfter: spin.PoolAfter,
			Slot:      spin.Round,
			Odds:      spin.Multiplier,
			Guarded:   spin.Guarded,
		}
	})
	if err != nil {
		return nil, err
	}

	return &FruitResult{
		Round:          spin.Round,
		Symbols:        spin.Lines,
		Winnings:       spin.Winnings,
		UpdatedCapital: r.acc.Capital,
		PoolBalance:    r.pool.PoolBalance,
	}, nil
}

// PlayLucky plays three chosen numbers against the lucky-3 draw table.
func (s *Service) PlayLucky(ctx context.Context, accountID string, amount decimal.Decimal, numbers []int) (*LuckyResult, error) {
	picks, err := s.rules.Lucky.ParsePicks(numbers)
	if err != nil {
		return nil, err
	}

	var out lucky.Outcome
	r, err := s.play(ctx, model.GameLucky3, accountID, amount, func(r *round) settlement {
		out = s.rules.Lucky.Play(r.pool.NextRound, picks, r.split.Amount, r.available())
		r.pool.NextRound = out.NextRound
		return settlement{
			Winnings:  out.Winnings,
			PoolAfter: r.afterPayout(r.available().Sub(out.Winnings)),
			Slot:      out.Round,
			Odds:      out.Multiplier,
			Jackpot:   out.Winnings.IsPositive() && len(out.Matched) == lucky.PickCount,
			Guarded:   out.Forced,
		}
	})
	if err != nil {
		return nil, err
	}

	return &LuckyResult{
		Round:          out.Round,
		DrawnNumbers:   out.Drawn[:],
		MatchedNumbers: out.Matched,
		Winnings:       out.Winnings,
		Message:        out.Message,
		UpdatedCapital: r.acc.Capital,
	}, nil
}

// --- Settlement ---

// round is one play inside the critical section.
type round struct {
	game       model.Game
	acc        *model.Account
	pool       *model.PoolState
	split      stake.Split
	poolBefore decimal.Decimal
	timing     stake.Timing
	out        settlement
}

// settlement is what a variant decides for a round.
type settlement struct {
	Winnings  decimal.Decimal
	PoolAfter decimal.Decimal // final pool balance, pool share included
	Slot      int             // position or round index
	Odds      decimal.Decimal // chance percent or multiplier
	Jackpot   bool
	Guarded   bool
}

// available is the balance the payout is computed against.
func (r *round) available() decimal.Decimal {
	if r.timing == stake.TimingBefore {
		return r.poolBefore.Add(r.split.Pool)
	}
	return r.poolBefore
}

// afterPayout adds the pool share when it joins after the payout.
func (r *round) afterPayout(pool decimal.Decimal) decimal.Decimal {
	if r.timing == stake.TimingAfter {
		return pool.Add(r.split.Pool)
	}
	return pool
}

func (s *Service) play(ctx context.Context, game model.Game, accountID string, amount decimal.Decimal, decide func(*round) settlement) (*round, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, s.reject(game, invalid("accountId", "is required"))
	}
	if !amount.IsPositive() {
		return nil, s.reject(game, stake.ErrInvalidStake)
	}

	start := time.Now()
	release, err := s.gate.Acquire(ctx, string(game))
	if err != nil {
		if !errors.Is(err, gate.ErrBusy) && ctx.Err() == nil {
			err = &StorageError{Op: "acquire gate", Err: err}
		}
		return nil, s.reject(game, err)
	}
	defer release()

	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.reject(game, storageErr("load account", err))
	}
	split, err := s.rules.Stake.Process(acc.Capital, amount)
	if err != nil {
		return nil, s.reject(game, err)
	}
	pool, err := s.store.GetOrCreatePool(ctx, game)
	if err != nil {
		return nil, s.reject(game, storageErr("load pool", err))
	}

	accVer, poolVer := acc.Version, pool.Version
	r := &round{
		game:       game,
		acc:        acc,
		pool:       pool,
		split:      split,
		poolBefore: pool.PoolBalance,
		timing:     s.rules.Stake.Timing(),
	}
	r.out = decide(r)

	acc.Capital = acc.Capital.Sub(amount).Add(r.out.Winnings)
	acc.LastPaidAmount = amount
	acc.EarnedFromPool = acc.EarnedFromPool.Add(r.out.Winnings)
	pool.HouseEarnings = pool.HouseEarnings.Add(split.House)
	pool.PoolBalance = r.out.PoolAfter

	if pool.PoolBalance.IsNegative() {
		return nil, s.reject(game, &StorageError{Op: "settle", Err: errors.New("pool balance would go negative")})
	}

	now := time.Now().UTC()
	var entry *model.PayoutEntry
	if r.out.Winnings.IsPositive() {
		entry = &model.PayoutEntry{
			ID:        uuid.New().String(),
			Game:      game,
			AccountID: acc.ID,
			Amount:    r.out.Winnings,
			Timestamp: now,
		}
	}

	if err := s.store.CommitRound(ctx, &model.RoundCommit{
		Account: acc, AccountVersion: accVer,
		Pool: pool, PoolVersion: poolVer,
		Payout: entry,
	}); err != nil {
		return nil, s.reject(game, storageErr("commit round", err))
	}

	s.observe(r, start)

	// Recorded while the gate is still held, so audit rows keep pool order.
	if err := s.recorder.RecordRound(&recorder.RoundRecord{
		ID:         uuid.New().String(),
		Game:       string(game),
		AccountID:  acc.ID,
		Stake:      amount,
		HouseShare: split.House,
		PoolShare:  split.Pool,
		Slot:       r.out.Slot,
		Odds:       r.out.Odds,
		Winnings:   r.out.Winnings,
		PoolBefore: r.poolBefore,
		PoolAfter:  pool.PoolBalance,
		Jackpot:    r.out.Jackpot,
		Guarded:    r.out.Guarded,
		Timestamp:  now,
	}); err != nil {
		slog.Warn("record round failed", "game", game, "err", err)
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "round_settled",
			Game:          string(game),
			AccountID:     acc.ID,
			Slot:          r.out.Slot,
			Winnings:      r.out.Winnings.String(),
			PoolBalance:   pool.PoolBalance.String(),
			HouseEarnings: pool.HouseEarnings.String(),
			Jackpot:       r.out.Jackpot,
		})
	}

	slog.Info("round settled",
		"game", game,
		"account", acc.ID,
		"stake", amount.String(),
		"slot", r.out.Slot,
		"odds", r.out.Odds.String(),
		"winnings", r.out.Winnings.String(),
		"pool_before", r.poolBefore.String(),
		"pool_after", pool.PoolBalance.String(),
		"jackpot", r.out.Jackpot,
		"guarded", r.out.Guarded,
	)
	return r, nil
}

func (s *Service) observe(r *round, start time.Time) {
	g := string(r.game)
	outcome := "loss"
	switch {
	case r.out.Jackpot:
		outcome = "jackpot"
	case r.out.Winnings.IsPositive():
		outcome = "win"
	}
	metrics.RoundsTotal.WithLabelValues(g, outcome).Inc()
	metrics.RoundLatency.WithLabelValues(g).Observe(time.Since(start).Seconds())
	metrics.StakedTotal.WithLabelValues(g).Add(r.split.Amount.InexactFloat64())
	metrics.PaidTotal.WithLabelValues(g).Add(r.out.Winnings.InexactFloat64())
	if r.out.Guarded {
		metrics.GuardedRounds.WithLabelValues(g).Inc()
	}
	metrics.PoolBalance.WithLabelValues(g).Set(r.pool.PoolBalance.InexactFloat64())
	metrics.HouseEarnings.WithLabelValues(g).Set(r.pool.HouseEarnings.InexactFloat64())
}

func (s *Service) reject(game model.Game, err error) error {
	metrics.RejectedRounds.WithLabelValues(string(game), reason(err)).Inc()
	return err
}

// --- Pools ---

// Pool returns a game's pool, creating the zero state on first use.
func (s *Service) Pool(ctx context.Context, game model.Game) (*model.PoolState, error) {
	if !game.Valid() {
		return nil, store.ErrNotFound
	}
	p, err := s.store.GetOrCreatePool(ctx, game)
	if err != nil {
		return nil, storageErr("get pool", err)
	}
	return p, nil
}

// Pools returns every game's pool in display order.
func (s *Service) Pools(ctx context.Context) ([]model.PoolState, error) {
	out := make([]model.PoolState, 0, len(model.Games))
	for _, g := range model.Games {
		p, err := s.Pool(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// Payouts returns recent payout log entries of a game, newest first.
func (s *Service) Payouts(ctx context.Context, game model.Game, limit int) ([]model.PayoutEntry, error) {
	if !game.Valid() {
		return nil, store.ErrNotFound
	}
	entries, err := s.store.ListPayouts(ctx, game, limit)
	if err != nil {
		return nil, storageErr("list payouts", err)
	}
	if entries == nil {
		entries = []model.PayoutEntry{}
	}
	return entries, nil
}
