package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/config"
	"anoa.com/loyaltyledger/internal/entity"
	"anoa.com/loyaltyledger/internal/server"
	"anoa.com/loyaltyledger/pkg/database"
	"anoa.com/loyaltyledger/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := &cli.App{
		Name:  "loyaltyledger",
		Usage: "coin ledger, streaks, badges and rewards",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "migrate, sync the catalog and start the http server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: migrate,
			},
			{
				Name:   "sync-catalog",
				Usage:  "upsert catalog badges and rewards",
				Action: syncCatalog,
			},
			{
				Name:   "reconcile",
				Usage:  "compare cached balances against ledger entries",
				Action: reconcile,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logger.L.Fatal("command failed", zap.Error(err))
	}
}

type deps struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client
	srv   *server.Server
}

func (r *deps) Close() {
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func bootstrap(ctx context.Context, withMigrate bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if withMigrate {
		if err := database.Migrate(db, entity.Models()...); err != nil {
			return nil, err
		}
	}

	redisClient, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	srv, err := server.NewServer(cfg, db, redisClient, cat)
	if err != nil {
		return nil, err
	}
	return &deps{cfg: cfg, db: db, redis: redisClient, srv: srv}, nil
}

// connectRedis returns nil when url is empty; caches, cooldowns and push are
// then disabled.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		logger.L.Warn("REDIS_URL not set, running without redis")
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.L.Info("redis connected", zap.String("addr", opts.Addr))
	return client, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	rt, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.srv.SyncCatalog(ctx); err != nil {
		return err
	}
	return rt.srv.Run(ctx)
}

func migrate(*cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	return database.Migrate(db, entity.Models()...)
}

func syncCatalog(c *cli.Context) error {
	rt, err := bootstrap(c.Context, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.srv.SyncCatalog(c.Context); err != nil {
		return err
	}
	logger.L.Info("catalog synced")
	return nil
}

func reconcile(c *cli.Context) error {
	rt, err := bootstrap(c.Context, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	mismatches, err := rt.srv.Reconcile(c.Context)
	if err != nil {
		return err
	}
	for _, m := range mismatches {
		logger.L.Warn("balance mismatch",
			zap.String("user_id", m.UserID.String()),
			zap.Int64("balance", m.Balance),
			zap.Int64("ledger", m.Ledger),
		)
	}
	logger.L.Info("reconcile finished", zap.Int("mismatches", len(mismatches)))
	if len(mismatches) > 0 {
		return cli.Exit(fmt.Sprintf("%d accounts out of balance", len(mismatches)), 2)
	}
	return nil
}
