package handler

import (
	"book-rental-engine/internal/adapter/http/middleware"
	"book-rental-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ContractSvc    ports.ContractService
	BillingSvc     ports.BillingService
	RewardSvc      ports.RewardService
	WalletSvc      ports.WalletService
	TokenVerifier  ports.TokenVerifier
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Billing run trigger. Reachable only from inside the platform network;
	// the ingress never routes /internal.
	billingHandler := NewBillingHandler(deps.BillingSvc)
	r.POST("/internal/billing/run", billingHandler.Run)

	// API v1 routes (all user-facing, all JWT-authenticated)
	jwtAuth := middleware.JWTAuth(deps.TokenVerifier, deps.Logger)
	v1 := r.Group("/api/v1")

	contractHandler := NewContractHandler(deps.ContractSvc)
	contracts := v1.Group("/contracts", jwtAuth)
	{
		contracts.POST("", contractHandler.Create)
		contracts.GET("", contractHandler.List)
		contracts.GET("/:id", contractHandler.Get)
		contracts.POST("/:id/agree", contractHandler.Agree)
		contracts.POST("/:id/return", contractHandler.RequestReturn)
		contracts.POST("/:id/return/agree", contractHandler.AgreeReturn)
	}

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.GET("/balance", walletHandler.GetBalance)
		wallets.POST("/topup", walletHandler.Topup)
		wallets.GET("/transactions", walletHandler.History)
	}

	rewardHandler := NewRewardHandler(deps.RewardSvc)
	rewards := v1.Group("/rewards", jwtAuth)
	{
		rewards.POST("/evaluate", rewardHandler.Evaluate)
		rewards.GET("", rewardHandler.ListClaims)
	}

	return r
}
