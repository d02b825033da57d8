package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/moneypool/payout-engine/internal/config"
	"github.com/moneypool/payout-engine/internal/cursor"
	"github.com/moneypool/payout-engine/internal/fruit"
	"github.com/moneypool/payout-engine/internal/game"
	"github.com/moneypool/payout-engine/internal/gate"
	"github.com/moneypool/payout-engine/internal/lucky"
	"github.com/moneypool/payout-engine/internal/metrics"
	"github.com/moneypool/payout-engine/internal/payout"
	"github.com/moneypool/payout-engine/internal/recorder"
	"github.com/moneypool/payout-engine/internal/rng"
	"github.com/moneypool/payout-engine/internal/snapshot"
	"github.com/moneypool/payout-engine/internal/stake"
	"github.com/moneypool/payout-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()
	fatal := func(msg string, err error) {
		slog.Error(msg, "err", err)
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		os.Exit(1)
	}

	// --- Redis (cache and/or gate) ---
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			fatal("invalid REDIS_URL", err)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	// --- Initialize store ---
	var st store.Store
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			cancel()
			fatal("database connection failed", err)
		}
		cleanup = append(cleanup, pool.Close)

		ps := store.NewPostgresStore(pool)
		err = ps.Migrate(ctx)
		cancel()
		if err != nil {
			fatal("database migration failed", err)
		}
		st = ps
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.Redis.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Gate ---
	gateOpts := gate.Options{LeaseTTL: cfg.Gate.LeaseTTL, Wait: cfg.Gate.Wait}
	var g gate.Gate
	switch cfg.Gate.Backend {
	case config.GateRedis:
		g = gate.NewRedisGate(rdb, cfg.Gate.Prefix, gateOpts)
	default:
		g = gate.NewMemoryGate(gateOpts)
	}
	slog.Info("gate ready", "backend", cfg.Gate.Backend, "lease_ttl", cfg.Gate.LeaseTTL, "wait", cfg.Gate.Wait)

	// --- Audit recorder ---
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			slog.Warn("init sqlite recorder failed, using noop", "err", err)
		} else {
			rec = sr
			cleanup = append(cleanup, func() { sr.Close() })
		}
	}

	// --- Game rules ---
	rules, err := buildRules(cfg)
	if err != nil {
		fatal("invalid game rules", err)
	}

	// --- WebSocket hub ---
	wsHub := game.NewWSHub()
	go wsHub.Run()
	cleanup = append(cleanup, wsHub.Stop)

	svc := game.NewService(st, g, rules, rec, wsHub)

	// --- Pool snapshots ---
	sched := snapshot.NewScheduler(st, rec)
	if err := sched.Register(cfg.Schedule.SnapshotCron); err != nil {
		fatal("register snapshot job", err)
	}
	sched.Start()
	cleanup = append(cleanup, sched.Stop)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"payout-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	svc.Routes(r)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("payout-engine listening", "port", cfg.Server.Port,
			"pool_share_timing", cfg.Engine.PoolShareTiming,
			"house_share", cfg.Engine.HouseShare.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down payout-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("payout-engine stopped")
}

// buildRules constructs every variant engine from config.
func buildRules(cfg *config.Config) (game.Rules, error) {
	src := rng.NewCrypto()

	sp, err := stake.NewProcessor(cfg.Engine.HouseShare, cfg.Engine.PoolShareTiming)
	if err != nil {
		return game.Rules{}, err
	}
	calc, err := payout.NewCalculator(cfg.Position.Odds, cfg.Engine.MinReserve, cfg.Engine.Precision)
	if err != nil {
		return game.Rules{}, err
	}
	fe, err := fruit.NewEngine(cfg.Fruit.Rounds, cfg.Fruit.ReferenceStake, cfg.Engine.MinReserve, cfg.Engine.Precision, src)
	if err != nil {
		return game.Rules{}, err
	}
	draws, err := cfg.LuckyDraws()
	if err != nil {
		return game.Rules{}, err
	}
	le, err := lucky.NewEngine(draws, cfg.Lucky.MaxNumber, cfg.LuckyMultipliers(), cfg.Lucky.MaxRetries, cfg.Engine.MinReserve, cfg.Engine.Precision)
	if err != nil {
		return game.Rules{}, err
	}

	return game.Rules{
		Stake: sp,
		Cursor: cursor.New(cursor.Rules{
			JackpotStreak:   cfg.Position.JackpotStreak,
			JackpotMinStake: cfg.Position.JackpotMinStake,
		}, src),
		Payout:          calc,
		Fruit:           fe,
		Lucky:           le,
		StartingCapital: cfg.Engine.StartingCapital,
	}, nil
}
