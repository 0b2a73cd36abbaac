package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/config"
	"anoa.com/loyaltyledger/internal/jobs"
	"anoa.com/loyaltyledger/internal/middleware"
	"anoa.com/loyaltyledger/pkg/clock"
	"anoa.com/loyaltyledger/pkg/coupon"
	"anoa.com/loyaltyledger/pkg/logger"
	"anoa.com/loyaltyledger/pkg/metrics"
	"anoa.com/loyaltyledger/pkg/ratelimit"

	accountHttp "anoa.com/loyaltyledger/internal/modules/account/delivery/http"
	accountService "anoa.com/loyaltyledger/internal/modules/account/service"

	badgeRepo "anoa.com/loyaltyledger/internal/modules/badge/repository"
	badgeService "anoa.com/loyaltyledger/internal/modules/badge/service"

	leaderboardHttp "anoa.com/loyaltyledger/internal/modules/leaderboard/delivery/http"
	leaderboardRepo "anoa.com/loyaltyledger/internal/modules/leaderboard/repository"
	leaderboardService "anoa.com/loyaltyledger/internal/modules/leaderboard/service"

	ledgerHttp "anoa.com/loyaltyledger/internal/modules/ledger/delivery/http"
	ledgerRepo "anoa.com/loyaltyledger/internal/modules/ledger/repository"
	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"

	notiHttp "anoa.com/loyaltyledger/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/loyaltyledger/internal/modules/notification/repository"
	notifService "anoa.com/loyaltyledger/internal/modules/notification/service"

	rewardHttp "anoa.com/loyaltyledger/internal/modules/reward/delivery/http"
	rewardRepo "anoa.com/loyaltyledger/internal/modules/reward/repository"
	rewardService "anoa.com/loyaltyledger/internal/modules/reward/service"

	searchService "anoa.com/loyaltyledger/internal/modules/search/service"

	streakHttp "anoa.com/loyaltyledger/internal/modules/streak/delivery/http"
	streakService "anoa.com/loyaltyledger/internal/modules/streak/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	cfg         *config.Config
	db          *gorm.DB
	redisClient *redis.Client

	ledgerSvc ledgerService.LedgerService
	badgeSvc  badgeService.BadgeService
	rewardSvc rewardService.RewardService
	scheduler *jobs.Scheduler
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, cat *catalog.Catalog) (*Server, error) {
	clk := clock.Real()
	calc := streakService.NewCalculator(cfg.StreakTimezone)

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, redisClient, splitOrigins(cfg.AllowedOrigins))

	badgeRepository := badgeRepo.NewBadgeRepository(db)
	badgeSvc := badgeService.NewBadgeService(badgeRepository, cat, clk, notificationSvc)

	ledgerRepository := ledgerRepo.NewLedgerRepository(db)
	ledgerSvc := ledgerService.NewLedgerService(db, ledgerRepository, badgeSvc, notificationSvc, cat, clk, cfg.TxMaxRetries)
	ledgerHandler := ledgerHttp.NewLedgerHandler(ledgerSvc)

	streakSvc := streakService.NewStreakService(ledgerSvc, cat, calc, clk)
	streakHandler := streakHttp.NewStreakHandler(streakSvc)

	coupons, err := coupon.NewHashIDGenerator(cfg.CouponSalt, cfg.CouponPrefix, cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("coupon generator: %w", err)
	}

	rewardRepository := rewardRepo.NewRewardRepository(db)
	rewardSvc := rewardService.NewRewardService(
		rewardRepository,
		ledgerSvc,
		notificationSvc,
		cat,
		coupons,
		ratelimit.NewRedisLimiter(redisClient),
		newSearch(cfg),
		clk,
		rewardService.Options{
			CouponTTL:         cfg.CouponTTL,
			CouponMaxAttempts: cfg.CouponMaxAttempts,
			RedeemCooldown:    cfg.RedeemCooldown,
		},
	)
	rewardHandler := rewardHttp.NewRewardHandler(rewardSvc)

	leaderboardRepository := leaderboardRepo.NewLeaderboardRepository(db)
	leaderboardSvc := leaderboardService.NewLeaderboardService(leaderboardRepository, ledgerRepository, cat, calc, redisClient, clk, cfg.LeaderboardCacheTTL)
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(leaderboardSvc)

	accountSvc := accountService.NewAccountService(ledgerSvc, streakSvc, badgeSvc, cat)
	accountHandler := accountHttp.NewAccountHandler(accountSvc)

	scheduler := jobs.NewScheduler(calc.Location(), 10*time.Minute)
	if err := scheduler.Register(jobs.NewReconcileJob(ledgerSvc, cfg.ReconcileSchedule)); err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.PrometheusMiddleware())

	router.GET("/healthz", healthz(db, redisClient))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.InternalAPIKey)

	api := router.Group("/api")

	// Public routes (identity optional)
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/rewards", rewardHandler.ListRewards)
		public.GET("/rewards/search", rewardHandler.SearchRewards)
		public.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/rewards/daily-claim", streakHandler.ClaimDaily)
		protected.POST("/rewards/:reward_id/redeem", rewardHandler.Redeem)

		me := protected.Group("/me")
		{
			me.GET("/summary", accountHandler.GetSummary)
			me.GET("/transactions", accountHandler.ListTransactions)
			me.GET("/redemptions", rewardHandler.ListRedemptions)
		}

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)
	}

	// Collaborator routes (course platform, order service, back office)
	internal := router.Group("/internal")
	internal.Use(authMiddleware.RequireInternalKey())
	{
		internal.POST("/events", ledgerHandler.RecordEvent)
		internal.POST("/events/course-completed", ledgerHandler.CourseCompleted)
		internal.POST("/transactions", ledgerHandler.ApplyTransaction)
	}

	return &Server{
		engine:      router,
		cfg:         cfg,
		db:          db,
		redisClient: redisClient,
		ledgerSvc:   ledgerSvc,
		badgeSvc:    badgeSvc,
		rewardSvc:   rewardSvc,
		scheduler:   scheduler,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SyncCatalog upserts catalog badges and rewards into their tables.
func (s *Server) SyncCatalog(ctx context.Context) error {
	if err := s.badgeSvc.Sync(ctx); err != nil {
		return fmt.Errorf("sync badges: %w", err)
	}
	if err := s.rewardSvc.Sync(ctx); err != nil {
		return fmt.Errorf("sync rewards: %w", err)
	}
	return nil
}

func (s *Server) Reconcile(ctx context.Context) ([]ledgerService.Mismatch, error) {
	return s.ledgerSvc.Reconcile(ctx)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, groupCtx := errgroup.WithContext(ctx)

	s.scheduler.Start()
	defer s.scheduler.Stop()

	eg.Go(func() error {
		logger.L.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", s.cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		logger.L.Info("server stopping")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.L.Info("server stopped")
	return nil
}

func newSearch(cfg *config.Config) searchService.RewardSearch {
	host := cfg.MeiliSearchHost
	if host == "" {
		logger.L.Info("meilisearch disabled, reward search falls back to catalog scan")
		return searchService.NewNoopSearch()
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}
	client := meilisearch.New(host, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	return searchService.NewMeiliSearchService(client)
}

func healthz(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok"}
		code := http.StatusOK

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			status["redis"] = "ok"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				// Redis only backs caches and push; degraded, not down.
				status["redis"] = "degraded"
			}
		}

		c.JSON(code, status)
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	origins := splitOrigins(allowedOrigins)
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.InternalKeyHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
