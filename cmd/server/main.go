package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/luckyline/game-engine/internal/broadcast"
	"github.com/luckyline/game-engine/internal/game"
	"github.com/luckyline/game-engine/internal/metrics"
	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/outcome"
	"github.com/luckyline/game-engine/internal/registry"
	"github.com/luckyline/game-engine/internal/scheduler"
	"github.com/luckyline/game-engine/internal/store"
	"github.com/luckyline/game-engine/internal/transfer"
	"github.com/luckyline/game-engine/internal/wallet"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Core services ---
	ledger := wallet.NewLedger(st, logger)

	tracks := model.DefaultTracks()
	reg := registry.New(tracks)

	hub := broadcast.NewHub()
	go hub.Run()

	retention := 24 * time.Hour
	transferSvc := transfer.NewService(st, ledger, retention, logger)

	c := cron.New()
	if err := transferSvc.StartSweep(c); err != nil {
		slog.Error("failed to schedule transfer sweep", "err", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	// --- Round schedulers, one per track ---
	schedCtx, stopSchedulers := context.WithCancel(context.Background())

	src := outcome.CryptoSource{}
	schedulers := make(map[string]*scheduler.Scheduler, len(tracks))
	var wg sync.WaitGroup
	for _, track := range tracks {
		sched := scheduler.New(track, src, reg, ledger, st, hub, scheduler.RealClock(), logger)
		schedulers[track.ID] = sched
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(schedCtx)
		}()
	}

	gameSvc := game.NewService(schedulers, reg, ledger, transferSvc, st)

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
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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
		w.Write([]byte(`{"status":"ok","service":"game-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for phase timers, results, and new rounds.
		r.Get("/ws", hub.HandleWS)

		// Betting.
		r.Post("/bets", gameSvc.PlaceBet)

		// Track state and history.
		r.Get("/tracks", gameSvc.ListTracks)
		r.Get("/tracks/{trackID}/state", gameSvc.GetTrackState)
		r.Get("/tracks/{trackID}/history", gameSvc.GetTrackHistory)

		// Player queries.
		r.Get("/players/{playerID}/balance", gameSvc.GetBalance)
		r.Get("/players/{playerID}/bet", gameSvc.GetCurrentBet)
		r.Get("/players/{playerID}/ledger", gameSvc.GetLedger)

		// Wallet transfers.
		r.Post("/transfers", gameSvc.CreateTransfer)
		r.Get("/transfers/pending", gameSvc.ListPendingTransfers)
		r.Post("/transfers/{orderID}/{action}", gameSvc.TransferAction)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("game-engine listening", "port", port, "tracks", len(tracks))
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

	slog.Info("shutting down game-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	// Stop round schedulers after the HTTP surface is closed so no new
	// bets arrive while tracks wind down.
	stopSchedulers()
	wg.Wait()

	fmt.Println("game-engine stopped")
}
