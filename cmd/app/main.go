package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain/ports/adapter"
	aiAdapters "ai-chat-subscription/internal/infra/adapters/ai"
	pg "ai-chat-subscription/internal/infra/db/postgres"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
	red "ai-chat-subscription/internal/infra/redis"
	"ai-chat-subscription/internal/infra/sched"
	"ai-chat-subscription/internal/infra/security"
	"ai-chat-subscription/internal/infra/web"
	"ai-chat-subscription/internal/infra/worker"
	"ai-chat-subscription/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI backend, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	go func() {
		tick := time.NewTicker(15 * time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Column encryption ----
	var enc *security.EncryptionService
	if key := cfg.Security.EncryptionKey; key != "" {
		if enc, err = security.NewEncryptionService(key); err != nil {
			logger.Fatal().Err(err).Msg("encryption init failed")
		}
	} else if !cfg.Runtime.Dev {
		logger.Warn().Msg("security.encryption_key unset; withdrawal account info stored in plaintext")
	}

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPostgresPlanRepo(pool), redisClient, cfg.Redis.TTL)
	codeRepo := pg.NewPostgresActivationCodeRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	commissionRepo := pg.NewCommissionRepo(pool)
	balanceRepo := pg.NewBalanceRepo(pool)
	withdrawalRepo := pg.NewWithdrawalRepo(pool, enc)
	convRepo := pg.NewConversationRepo(pool)
	msgRepo := pg.NewMessageRepo(pool)

	// ---- Worker pool ----
	pool4 := worker.NewPool(4, logger)
	pool4.Start(ctx)
	defer pool4.Stop()

	// ---- AI backend ----
	var ai adapter.AIStreamer
	if cfg.Runtime.Dev || cfg.AI.BaseURL == "" {
		ai = aiAdapters.NewNoopStreamer()
		logger.Warn().Msg("AI backend: noop echo streamer")
	} else {
		ai, err = aiAdapters.NewStreamAdapter(&cfg.AI)
		if err != nil {
			logger.Fatal().Err(err).Msg("ai adapter init failed")
		}
		logger.Info().Str("base_url", cfg.AI.BaseURL).Str("model", cfg.AI.Model).Msg("AI backend ready")
	}

	// ---- Use cases ----
	entitleUC := usecase.NewEntitlementUseCase(userRepo, subRepo, planRepo, cfg.Quota.FreeLimit, logger)
	commissionUC := usecase.NewCommissionUseCase(userRepo, commissionRepo, balanceRepo, txm,
		cfg.Billing.Level0Pct, cfg.Billing.Level1Pct, logger)
	activationUC := usecase.NewActivationUseCase(codeRepo, planRepo, userRepo, entitleUC,
		commissionUC, pool4, txm, logger)
	chatUC := usecase.NewChatUseCase(convRepo, msgRepo, userRepo, entitleUC, ai,
		cfg.Quota.MaxChatsPerConversation, cfg.Quota.WarningThreshold, logger)
	withdrawalUC := usecase.NewWithdrawalUseCase(withdrawalRepo, balanceRepo, txm,
		cfg.Billing.WithdrawalDebitPhase, logger)
	planUC := usecase.NewPlanUseCase(planRepo)
	statsUC := usecase.NewStatsUseCase(userRepo, subRepo, commissionRepo, withdrawalRepo, logger)

	// ---- Expiry sweep (hourly) ----
	expiry := sched.NewExpiryWorker(time.Hour, subRepo, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := web.NewServer(chatUC, activationUC, commissionUC, withdrawalUC, planUC, statsUC,
		auth, rateLimiter, cfg, logger)

	public := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.PublicRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout, // must cover the longest AI stream
	}
	admin := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.AdminPort),
		Handler: srv.AdminRouter(),
	}

	go func() {
		logger.Info().Str("addr", public.Addr).Msg("public api listening")
		if err := public.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("public server stopped")
		}
	}()
	go func() {
		logger.Info().Str("addr", admin.Addr).Msg("admin api listening")
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = public.Shutdown(shutdownCtx)
	_ = admin.Shutdown(shutdownCtx)
	cancel()
}
