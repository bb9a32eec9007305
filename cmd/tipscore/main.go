package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"tipscore/internal/config"
	"tipscore/internal/database"
	"tipscore/internal/monitor"
	"tipscore/internal/pricefeed"
	"tipscore/internal/scoring"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("cannot connect to database: %v", err)
	}
	defer pool.Close()

	repo := database.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("cannot migrate schema: %v", err)
	}

	source, err := pricefeed.NewSource(logger, cfg.PriceFeed)
	if err != nil {
		log.Fatalf("cannot create price source: %v", err)
	}
	if streamer, ok := source.(pricefeed.Streamer); ok {
		go func() {
			if err := streamer.Start(ctx); err != nil {
				logger.Error("Price stream stopped", "source", source.Name(), "error", err)
			}
		}()
	}

	mon := monitor.NewMonitor(logger, repo, source, &cfg)
	engine := scoring.NewEngine(logger, repo, &cfg)

	// Rescore all creators on the same cadence as the monitor, offset by one
	// interval so fresh resolutions are picked up.
	go func() {
		ticker := time.NewTicker(cfg.Monitor.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := engine.RecomputeAll(ctx); err != nil {
					logger.Error("Score recompute failed", "error", err)
				}
			}
		}
	}()

	logger.Info("Monitor starting",
		"interval", cfg.Monitor.Interval().String(),
		"source", source.Name(),
	)
	if err := mon.Loop(ctx); err != nil {
		logger.Error("Monitor stopped", "error", err)
	}
}
