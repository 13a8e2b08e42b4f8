package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/api/handlers"
	"github.com/playearn/backend/internal/auth"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/middleware"
	"github.com/playearn/backend/internal/payment"
	"github.com/playearn/backend/internal/ws"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config, authSvc *auth.Service, verifier payment.Verifier, hub *ws.Hub) {
	router.Use(middleware.CORSMiddleware(cfg))

	// No-cache must come before any handler in development
	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] Aggressive no-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/status/maintenance", handlers.MaintenanceStatus(rdb, cfg))
		v1.GET("/config", handlers.GetConfig(cfg))
		v1.GET("/plans", handlers.ListPlans(db))

		// Paystack server-to-server events
		v1.POST("/payments/webhook", handlers.PaystackWebhook(db, rdb, cfg))

		public := v1.Group("/auth")
		{
			public.POST("/signup", handlers.SignUp(authSvc))
			public.POST("/signin", handlers.SignIn(authSvc))
			public.POST("/password/reset-request", handlers.RequestPasswordReset(authSvc, cfg))
			public.POST("/password/reset", handlers.ResetPassword(authSvc))
			public.POST("/verification/resend", handlers.ResendVerification(authSvc, cfg))
			public.POST("/verification/confirm", handlers.VerifyEmail(authSvc))
		}

		// Session routes stay reachable during maintenance
		session := v1.Group("/auth")
		session.Use(middleware.AuthMiddleware(authSvc))
		{
			session.POST("/signout", handlers.SignOut(authSvc))
			session.GET("/session", handlers.GetSession(authSvc, db))
		}

		user := v1.Group("")
		user.Use(middleware.AuthMiddleware(authSvc), middleware.RejectBanned(db, rdb), middleware.MaintenanceGate(db, rdb, cfg))
		{
			wallet := user.Group("/wallet")
			{
				wallet.GET("", handlers.GetWallet(db))
				wallet.GET("/transactions", handlers.GetTransactions(db))
				wallet.POST("/deposits/initialize", handlers.InitializeDeposit(db, cfg))
				wallet.POST("/deposits/verify", handlers.VerifyDeposit(db, rdb, verifier))
				wallet.GET("/deposits", handlers.ListDeposits(db))
				wallet.GET("/withdrawals/eligibility", handlers.WithdrawalEligibility(db, cfg))
				wallet.POST("/withdrawals", handlers.CreateWithdrawal(db, rdb, cfg))
				wallet.GET("/withdrawals", handlers.ListWithdrawals(db))
				wallet.POST("/withdrawals/:id/edit-fee", handlers.InitializeEditFee(cfg))
				wallet.POST("/withdrawals/:id/edit-requests", handlers.SubmitEditRequest(db, verifier, cfg))
				wallet.GET("/edit-requests", handlers.ListMyEditRequests(db))
			}

			user.POST("/plans/:code/renew", handlers.RenewPlan(db, rdb, cfg))
			user.GET("/referrals", handlers.ListReferrals(db))

			games := user.Group("/games")
			{
				games.POST("/:type/start", handlers.StartGame(db, rdb, cfg))
				games.POST("/sessions/:token/finish", handlers.FinishGame(db, rdb))
				games.GET("/plays", handlers.PlaysToday(db))
			}

			store := user.Group("/store")
			{
				store.GET("/items", handlers.ListStoreItems(db))
				store.POST("/items/:id/purchase", handlers.PurchaseItem(db, rdb))
				store.GET("/purchases", handlers.ListPurchases(db))
			}

			user.GET("/notifications", handlers.ListNotifications(db))
			user.POST("/notifications/:id/read", handlers.MarkNotificationRead(db))
			user.GET("/ws", middleware.WebSocketCORSCheck(cfg), handlers.Realtime(hub))
		}

		adm := v1.Group("/admin")
		adm.Use(middleware.AuthMiddleware(authSvc), middleware.RequireAdmin(db))
		{
			adm.GET("/withdrawals", handlers.AdminListWithdrawals(db))
			adm.POST("/withdrawals/:id/status", handlers.AdminUpdateWithdrawalStatus(db, rdb))
			adm.PUT("/withdrawals/:id/details", handlers.AdminUpdateWithdrawalDetails(db))
			adm.GET("/edit-requests", handlers.AdminListEditRequests(db))
			adm.POST("/edit-requests/:id/process", handlers.AdminProcessEditRequest(db, rdb))

			adm.GET("/users", handlers.AdminSearchUsers(db))
			adm.POST("/users/:id/ban", handlers.AdminBanUser(db, rdb))
			adm.POST("/users/:id/plan", handlers.AdminSetUserPlan(db))
			adm.POST("/users/:id/adjust-balance", handlers.AdminAdjustBalance(db, rdb, cfg))

			adm.GET("/deposits", handlers.AdminListDeposits(db))
			adm.GET("/transactions", handlers.AdminListTransactions(db))
			adm.GET("/stats", handlers.AdminStats(db))

			adm.POST("/notifications", handlers.AdminSendNotification(db, rdb))
			adm.POST("/maintenance", handlers.AdminSetMaintenance(db, rdb, cfg))
			adm.GET("/config", handlers.GetAdminRuntimeConfig(db))
			adm.PUT("/config/:key", handlers.UpdateAdminRuntimeConfig(db, rdb, cfg))
			adm.GET("/audit", handlers.GetAdminAuditLogs(db))
		}
	}
}
