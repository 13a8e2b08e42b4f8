package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/api"
	"github.com/playearn/backend/internal/auth"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/database"
	"github.com/playearn/backend/internal/migrations"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/payment"
	"github.com/playearn/backend/internal/plans"
	appredis "github.com/playearn/backend/internal/redis"
	"github.com/playearn/backend/internal/sms"
	"github.com/playearn/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := appredis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Runtime overrides from the database win over env defaults
	if err := admin.ApplyRuntimeConfigToConfig(ctx, db, cfg); err != nil {
		log.Printf("[CONFIG] Warning: failed to apply runtime config: %v", err)
	}
	admin.SyncMaintenanceCache(ctx, rdb, cfg)

	if smsClient := sms.NewClient(cfg, rdb); smsClient != nil {
		sms.SetDefault(smsClient)
		log.Printf("[SMS] SMS client initialized (sender=%s)", cfg.SMSSenderID)
	} else {
		log.Printf("[SMS] SMS is not configured (SMS_API_KEY missing)")
	}

	var verifier payment.Verifier
	if client := payment.NewClient(cfg); client != nil {
		verifier = client
		log.Printf("[PAYMENT] Paystack client initialized")
	} else {
		log.Printf("[PAYMENT] Paystack not configured - deposits cannot be verified")
	}

	authSvc := auth.NewService(db, rdb, cfg)

	hub := ws.NewHub()
	go hub.Run(ctx)
	ws.StartEventSubscriber(ctx, rdb, hub)

	go payment.StartReconciler(ctx, db, verifier, cfg.DepositReconcileMins, func(userID string, s *payment.Settlement) {
		notify.WalletChanged(context.Background(), rdb, userID, map[string]interface{}{"funding_balance": s.FundingBalance})
	})
	go plans.StartExpirySweeper(ctx, db, cfg.PlanSweepMinutes)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, rdb, cfg, authSvc, verifier, hub)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Printf("Starting PlayEarn server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
