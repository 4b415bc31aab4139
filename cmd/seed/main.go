package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/config"
	pg "ai-chat-subscription/internal/infra/db/postgres"
	"ai-chat-subscription/internal/usecase"
)

// syncSubmitter runs settlement inline; seeding has no worker pool.
type syncSubmitter struct{}

func (syncSubmitter) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	demoCodes := flag.Int("codes", 10, "demo activation codes to generate for the first plan")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	logger := zerolog.New(io.Discard)
	txm := pg.NewTxManager(pool)
	userRepo := pg.NewPostgresUserRepo(pool)
	planRepo := pg.NewPostgresPlanRepo(pool)
	codeRepo := pg.NewPostgresActivationCodeRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	commissionRepo := pg.NewCommissionRepo(pool)
	balanceRepo := pg.NewBalanceRepo(pool)

	planUC := usecase.NewPlanUseCase(planRepo)
	entitleUC := usecase.NewEntitlementUseCase(userRepo, subRepo, planRepo, cfg.Quota.FreeLimit, &logger)
	commissionUC := usecase.NewCommissionUseCase(userRepo, commissionRepo, balanceRepo, txm,
		cfg.Billing.Level0Pct, cfg.Billing.Level1Pct, &logger)
	activationUC := usecase.NewActivationUseCase(codeRepo, planRepo, userRepo, entitleUC,
		commissionUC, syncSubmitter{}, txm, &logger)

	// If plans already exist, do nothing
	plans, err := planUC.ListAll(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		return
	}

	type seedPlan struct {
		Name       string
		PriceCents int64
		Days       int // 0 means times-card
		Chats      int
	}
	seed := []seedPlan{
		{Name: "Monthly", PriceCents: 9_900, Days: 30},
		{Name: "Quarterly", PriceCents: 24_900, Days: 90},
		{Name: "Yearly", PriceCents: 79_900, Days: 365},
		{Name: "100 Chats", PriceCents: 6_900, Chats: 100},
	}

	var firstPlanID string
	for _, s := range seed {
		var err error
		if s.Days > 0 {
			p, perr := planUC.CreateTimeBoxed(ctx, s.Name, s.PriceCents, s.Days)
			if perr == nil && firstPlanID == "" {
				firstPlanID = p.ID
			}
			err = perr
		} else {
			_, err = planUC.CreateTimesCard(ctx, s.Name, s.PriceCents, s.Chats)
		}
		if err != nil {
			log.Fatalf("create plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (price=%d cents)\n", s.Name, s.PriceCents)
	}

	if *demoCodes > 0 && firstPlanID != "" {
		ttl := cfg.Billing.CodeTTL
		if ttl <= 0 {
			ttl = 90 * 24 * time.Hour
		}
		codes, err := activationUC.GenerateBatch(ctx, firstPlanID, *demoCodes, ttl)
		if err != nil {
			log.Fatalf("generate demo codes: %v", err)
		}
		fmt.Printf("generated %d demo codes for plan %s:\n", len(codes), firstPlanID)
		for _, c := range codes {
			fmt.Printf("  %s\n", c.Code)
		}
	}

	fmt.Println("seeding complete")
}
