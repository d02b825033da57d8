// Package config loads engine settings from an optional YAML file and
// applies environment overrides and defaults on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/moneypool/payout-engine/internal/fruit"
	"github.com/moneypool/payout-engine/internal/lucky"
	"github.com/moneypool/payout-engine/internal/payout"
	"github.com/moneypool/payout-engine/internal/stake"
)

// Gate backends.
const (
	GateMemory = "memory"
	GateRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		URL        string `yaml:"url"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		URL      string        `yaml:"url"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Gate struct {
		Backend  string        `yaml:"backend"`
		Prefix   string        `yaml:"prefix"`
		LeaseTTL time.Duration `yaml:"lease_ttl"`
		Wait     time.Duration `yaml:"wait"`
	} `yaml:"gate"`
	Engine struct {
		HouseShare      decimal.Decimal `yaml:"house_share"`
		PoolShareTiming stake.Timing    `yaml:"pool_share_timing"`
		MinReserve      decimal.Decimal `yaml:"min_reserve"`
		Precision       int32           `yaml:"precision"`
		StartingCapital decimal.Decimal `yaml:"starting_capital"`
	} `yaml:"engine"`
	Position struct {
		JackpotStreak   int              `yaml:"jackpot_streak"`
		JackpotMinStake decimal.Decimal  `yaml:"jackpot_min_stake"`
		Odds            payout.OddsTable `yaml:"odds"`
	} `yaml:"position"`
	Fruit struct {
		ReferenceStake decimal.Decimal `yaml:"reference_stake"`
		Rounds         []fruit.Round   `yaml:"rounds"`
	} `yaml:"fruit"`
	Lucky struct {
		MaxNumber   int               `yaml:"max_number"`
		MaxRetries  int               `yaml:"max_retries"`
		Multipliers []decimal.Decimal `yaml:"multipliers"`
		Draws       [][]int           `yaml:"draws"`
	} `yaml:"lucky"`
	Schedule struct {
		SnapshotCron string `yaml:"snapshot_cron"`
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Lucky.MaxRetries = -1

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("GATE_BACKEND"); v != "" {
		cfg.Gate.Backend = v
	}
	if v := os.Getenv("GATE_WAIT"); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Gate.Wait = dur
		}
	}
	if v := os.Getenv("POOL_SHARE_TIMING"); v != "" {
		cfg.Engine.PoolShareTiming = stake.Timing(v)
	}
	if v := os.Getenv("HOUSE_SHARE"); v != "" {
		if dec, err := decimal.NewFromString(v); err == nil {
			cfg.Engine.HouseShare = dec
		}
	}
	if v := os.Getenv("MIN_RESERVE"); v != "" {
		if dec, err := decimal.NewFromString(v); err == nil {
			cfg.Engine.MinReserve = dec
		}
	}
	cfg.Position.JackpotStreak = getEnvInt("JACKPOT_STREAK", cfg.Position.JackpotStreak)
	if v := os.Getenv("SNAPSHOT_CRON"); v != "" {
		cfg.Schedule.SnapshotCron = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 30 * time.Second
	}
	if c.Gate.Backend == "" {
		c.Gate.Backend = GateMemory
	}
	if c.Gate.Prefix == "" {
		c.Gate.Prefix = "gate:"
	}
	if c.Gate.LeaseTTL == 0 {
		c.Gate.LeaseTTL = 10 * time.Second
	}
	// Wait stays 0 when unset: fail fast like a plain busy flag.
	if c.Engine.HouseShare.IsZero() {
		c.Engine.HouseShare = decimal.NewFromFloat(0.10)
	}
	if c.Engine.PoolShareTiming == "" {
		c.Engine.PoolShareTiming = stake.TimingAfter
	}
	if c.Engine.StartingCapital.IsZero() {
		c.Engine.StartingCapital = decimal.NewFromInt(10000)
	}
	if c.Position.JackpotStreak <= 0 {
		c.Position.JackpotStreak = 5
	}
	if len(c.Position.Odds) == 0 {
		c.Position.Odds = payout.DefaultOdds()
	}
	if c.Fruit.ReferenceStake.IsZero() {
		c.Fruit.ReferenceStake = decimal.NewFromInt(3000)
	}
	if len(c.Fruit.Rounds) == 0 {
		c.Fruit.Rounds = fruit.DefaultRounds()
	}
	if c.Lucky.MaxNumber == 0 {
		c.Lucky.MaxNumber = lucky.DefaultMaxNumber
	}
	if c.Lucky.MaxRetries < 0 {
		c.Lucky.MaxRetries = lucky.DefaultMaxRetries
	}
	if len(c.Lucky.Multipliers) == 0 {
		m := lucky.DefaultMultipliers()
		c.Lucky.Multipliers = m[:]
	}
	if c.Schedule.SnapshotCron == "" {
		c.Schedule.SnapshotCron = "0 * * * * *"
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Gate.Backend != GateMemory && c.Gate.Backend != GateRedis {
		return fmt.Errorf("gate.backend must be %q or %q, got %q", GateMemory, GateRedis, c.Gate.Backend)
	}
	if c.Gate.Backend == GateRedis && c.Redis.URL == "" {
		return errors.New("gate.backend redis requires redis.url")
	}
	if !c.Engine.PoolShareTiming.Valid() {
		return fmt.Errorf("engine.pool_share_timing must be before or after, got %q", c.Engine.PoolShareTiming)
	}
	if c.Engine.MinReserve.IsNegative() {
		return errors.New("engine.min_reserve must not be negative")
	}
	if !c.Engine.StartingCapital.IsPositive() {
		return errors.New("engine.starting_capital must be positive")
	}
	if len(c.Lucky.Multipliers) != lucky.PickCount+1 {
		return fmt.Errorf("lucky.multipliers needs %d entries, got %d", lucky.PickCount+1, len(c.Lucky.Multipliers))
	}
	return nil
}

// LuckyMultipliers returns the multiplier list as the engine's fixed array.
func (c *Config) LuckyMultipliers() [lucky.PickCount + 1]decimal.Decimal {
	var m [lucky.PickCount + 1]decimal.Decimal
	copy(m[:], c.Lucky.Multipliers)
	return m
}

// LuckyDraws converts the configured draw table, falling back to the stock
// table when none is set.
func (c *Config) LuckyDraws() ([]lucky.Draw, error) {
	if len(c.Lucky.Draws) == 0 {
		return lucky.DefaultDraws(), nil
	}
	draws := make([]lucky.Draw, 0, len(c.Lucky.Draws))
	for i, raw := range c.Lucky.Draws {
		if len(raw) != lucky.PickCount {
			return nil, fmt.Errorf("lucky.draws[%d]: %w", i, lucky.ErrInvalidDraw)
		}
		var dr lucky.Draw
		copy(dr[:], raw)
		draws = append(draws, dr)
	}
	return draws, nil
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}

	return n
}
