package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/lucky"
	"github.com/moneypool/payout-engine/internal/stake"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port: got %q", cfg.Server.Port)
	}
	if !cfg.Engine.HouseShare.Equal(d(0.10)) {
		t.Errorf("house share: got %s", cfg.Engine.HouseShare)
	}
	if cfg.Engine.PoolShareTiming != stake.TimingAfter {
		t.Errorf("timing: got %q", cfg.Engine.PoolShareTiming)
	}
	if cfg.Gate.Backend != GateMemory || cfg.Gate.Wait != 0 || cfg.Gate.LeaseTTL != 10*time.Second {
		t.Errorf("gate defaults: %+v", cfg.Gate)
	}
	if cfg.Position.JackpotStreak != 5 || len(cfg.Position.Odds) != 12 {
		t.Errorf("position defaults: streak=%d odds=%d", cfg.Position.JackpotStreak, len(cfg.Position.Odds))
	}
	if len(cfg.Fruit.Rounds) != 30 || !cfg.Fruit.ReferenceStake.Equal(d(3000)) {
		t.Errorf("fruit defaults: rounds=%d ref=%s", len(cfg.Fruit.Rounds), cfg.Fruit.ReferenceStake)
	}
	if cfg.Lucky.MaxRetries != lucky.DefaultMaxRetries || cfg.Lucky.MaxNumber != 9 {
		t.Errorf("lucky defaults: %+v", cfg.Lucky)
	}
	draws, err := cfg.LuckyDraws()
	if err != nil || len(draws) != 40 || draws[0] != (lucky.Draw{8, 3, 4}) {
		t.Errorf("lucky draws: %v %v", draws, err)
	}
}

func TestLoad_YAMLValues(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9090"
gate:
  backend: redis
  wait: 1500ms
redis:
  url: redis://localhost:6379/0
engine:
  house_share: "0.05"
  pool_share_timing: before
  min_reserve: 100
  precision: 2
position:
  jackpot_streak: 3
  odds:
    1: 50
    2: 25
fruit:
  reference_stake: 1000
  rounds:
    - []
    - [{symbol: cherry, quantity: 2, base_payout: 100}]
lucky:
  max_retries: 0
  multipliers: [0, 2, 4, 8]
  draws:
    - [1, 2, 3]
    - [4, 5, 6]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port: got %q", cfg.Server.Port)
	}
	if cfg.Gate.Wait != 1500*time.Millisecond {
		t.Errorf("wait: got %s", cfg.Gate.Wait)
	}
	if !cfg.Engine.HouseShare.Equal(d(0.05)) || !cfg.Engine.MinReserve.Equal(d(100)) {
		t.Errorf("engine: %+v", cfg.Engine)
	}
	if cfg.Engine.PoolShareTiming != stake.TimingBefore || cfg.Engine.Precision != 2 {
		t.Errorf("engine timing/precision: %+v", cfg.Engine)
	}
	if cfg.Position.JackpotStreak != 3 || !cfg.Position.Odds[1].Equal(d(50)) {
		t.Errorf("position: %+v", cfg.Position)
	}
	if len(cfg.Fruit.Rounds) != 2 || cfg.Fruit.Rounds[1][0].Quantity != 2 {
		t.Errorf("fruit rounds: %+v", cfg.Fruit.Rounds)
	}
	if cfg.Lucky.MaxRetries != 0 {
		t.Errorf("explicit zero retries should be kept, got %d", cfg.Lucky.MaxRetries)
	}
	if m := cfg.LuckyMultipliers(); !m[3].Equal(d(8)) {
		t.Errorf("multipliers: %v", m)
	}
	draws, err := cfg.LuckyDraws()
	if err != nil || len(draws) != 2 || draws[1] != (lucky.Draw{4, 5, 6}) {
		t.Errorf("draws: %v %v", draws, err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "server:\n  port: \"9090\"\n")
	t.Setenv("PORT", "7070")
	t.Setenv("POOL_SHARE_TIMING", "before")
	t.Setenv("HOUSE_SHARE", "0.2")
	t.Setenv("GATE_WAIT", "250ms")
	t.Setenv("JACKPOT_STREAK", "7")
	t.Setenv("SNAPSHOT_CRON", "*/10 * * * * *")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env should win over file, got %q", cfg.Server.Port)
	}
	if cfg.Engine.PoolShareTiming != stake.TimingBefore || !cfg.Engine.HouseShare.Equal(d(0.2)) {
		t.Errorf("engine env: %+v", cfg.Engine)
	}
	if cfg.Gate.Wait != 250*time.Millisecond || cfg.Position.JackpotStreak != 7 {
		t.Errorf("wait=%s streak=%d", cfg.Gate.Wait, cfg.Position.JackpotStreak)
	}
	if cfg.Schedule.SnapshotCron != "*/10 * * * * *" {
		t.Errorf("cron: %q", cfg.Schedule.SnapshotCron)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown gate", func(c *Config) { c.Gate.Backend = "etcd" }},
		{"redis gate without url", func(c *Config) { c.Gate.Backend = GateRedis; c.Redis.URL = "" }},
		{"bad timing", func(c *Config) { c.Engine.PoolShareTiming = "during" }},
		{"negative reserve", func(c *Config) { c.Engine.MinReserve = d(-1) }},
		{"short multipliers", func(c *Config) { c.Lucky.Multipliers = c.Lucky.Multipliers[:2] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "server: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLuckyDraws_WrongArity(t *testing.T) {
	cfg := &Config{}
	cfg.Lucky.Draws = [][]int{{1, 2}}
	if _, err := cfg.LuckyDraws(); err == nil {
		t.Error("expected error for two-number draw")
	}
}
