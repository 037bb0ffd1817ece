package main

import (
	"context"
	"log"
	"log/slog"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"alive-keeper/internal/config"
	"alive-keeper/internal/handlers"
	"alive-keeper/internal/middleware"
	"alive-keeper/internal/services"
)

func newLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	ethClient, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("Failed to connect to RPC: %v", err)
	}
	defer ethClient.Close()

	wallet, err := services.NewKeyWallet(cfg.WalletPrivateKey, ethClient)
	if err != nil {
		log.Fatalf("Failed to load wallet: %v", err)
	}

	contracts, err := services.NewContractService(ethClient, wallet, services.ContractAddresses{
		Token:      cfg.TokenContract,
		Claim:      cfg.ClaimContract,
		Activation: cfg.ActivationContract,
	})
	if err != nil {
		log.Fatalf("Failed to bind contracts: %v", err)
	}

	backend := services.NewBackendClient(cfg.APIURL, cfg.Tuning.HTTPTimeout, logger)
	subgraph := services.NewSubgraphClient(cfg.SubgraphURL, cfg.Tuning.HTTPTimeout)

	store := services.NewSnapshotStore()
	defer store.Close()

	hub := handlers.NewWebSocketHub(logger)
	store.Subscribe(hub)

	session := services.NewSession(services.SessionDeps{
		Wallet:  wallet,
		Backend: backend,
		Cache:   redisService,
		Journal: redisService,
		Store:   store,
		Logger:  logger,
	}, big.NewInt(cfg.ChainID), cfg.Tuning)
	backend.OnUnauthorized(session.HandleUnauthorized)

	reconciler := services.NewReconciler(backend, contracts, store, session, cfg.Tuning.ReconcileInterval, logger)
	session.OnStateChange(func(state services.SessionState) {
		if state == services.StateAuthenticated {
			reconciler.Trigger("authenticated")
		}
	})

	gateway := services.NewActionGateway(services.GatewayDeps{
		Backend:   backend,
		Chain:     contracts,
		Referrals: subgraph,
		Store:     store,
		Refresher: reconciler,
		Session:   session,
		Journal:   redisService,
		Notifier:  hub,
		Logger:    logger,
	}, services.GatewayConfig{
		ActivationFee: cfg.ActivationFee,
		Treasury:      cfg.TreasuryAddress,
		PollAttempts:  cfg.Tuning.ActivationPollAttempts,
		PollInterval:  cfg.Tuning.ActivationPollInterval,
	})

	timers := services.NewSurvivalTimers(store, cfg.Tuning.DecayInterval, cfg.Tuning.EmissionInterval)
	go timers.Run(ctx)
	go reconciler.Run(ctx)

	if state, err := session.Connect(ctx); err != nil {
		logger.Warn("wallet connect failed", "state", state, "error", err)
	} else {
		logger.Info("wallet connected", "address", session.Address(), "state", state)
	}

	authHandler := handlers.NewAuthHandler(session)
	userHandler := handlers.NewUserHandler(session, store, redisService)
	gameHandler := handlers.NewGameHandler(gateway, store, reconciler)
	wsHandler := handlers.NewWebSocketHandler(hub, store, reconciler)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	auth := router.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware(redisService))
	{
		auth.GET("/status", authHandler.Status)
		auth.POST("/connect", authHandler.Connect)
		auth.POST("/login", authHandler.Login)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(session), middleware.RateLimitMiddleware(redisService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)
		protected.GET("/decorations", userHandler.GetDecorations)
		protected.PUT("/decorations", userHandler.UpdateDecoration)
		protected.GET("/actions", userHandler.GetActionHistory)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		protected.GET("/dashboard", gameHandler.GetDashboard)
		protected.POST("/refresh", gameHandler.Refresh)
		protected.POST("/checkin", gameHandler.CheckIn)
		protected.POST("/claim", gameHandler.Claim)
		protected.POST("/reconnect", gameHandler.Reconnect)
		protected.POST("/activate", gameHandler.Activate)

		items := protected.Group("/items")
		{
			items.GET("", gameHandler.ListItems)
			items.POST("/purchase", gameHandler.Purchase)
		}

		referrals := protected.Group("/referrals")
		{
			referrals.GET("", gameHandler.GetReferralStats)
			referrals.GET("/list", gameHandler.GetReferralList)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	logger.Info("server starting", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
