package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mintgate/mintgate/internal/config"
	"github.com/mintgate/mintgate/internal/dispatch"
	"github.com/mintgate/mintgate/internal/handler"
	"github.com/mintgate/mintgate/internal/ledger"
	"github.com/mintgate/mintgate/internal/middleware"
	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/oracle"
	"github.com/mintgate/mintgate/internal/pkg/logger"
	"github.com/mintgate/mintgate/internal/registry"
	"github.com/mintgate/mintgate/internal/repository"
	"github.com/mintgate/mintgate/internal/service"
	"github.com/mintgate/mintgate/internal/settle"
	"github.com/mintgate/mintgate/internal/signer"
	"github.com/mintgate/mintgate/internal/stream"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel, "mintgate")

	custody := common.HexToAddress(cfg.Domain.VerifyingContract)
	domain := signer.Domain{
		Name:              cfg.Domain.Name,
		Version:           cfg.Domain.Version,
		ChainID:           cfg.Chain.ChainID,
		VerifyingContract: custody,
	}
	hasher := signer.NewHasher(domain)

	// 2. Registries (admin-owned; the engine gets the read-only view)
	reg := registry.New(cfg.Fees.RateBps, common.HexToAddress(cfg.Fees.Collector))
	seedRegistry(reg, cfg)

	// 3. Persistence (Redis > Memory for nonces, Postgres optional for receipts)
	var nonces service.NonceStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("Connected to Redis")
			nonces = redisClient
		} else {
			logger.Error("Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if nonces == nil {
		nonces = service.NewMemNonceStore()
	}

	var receipts service.ReceiptStore
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("Connected to PostgreSQL")
			receipts = repository.NewPostgresReceiptStore(db)
		} else {
			logger.Error("Failed to connect to DB, receipts will not be persisted", "error", err)
		}
	}

	// 4. Execution environment: a live chain when configured, otherwise
	// the in-memory ledger for development.
	var led ledger.Ledger
	if cfg.Chain.RPCURL != "" && cfg.Chain.PrivateKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		chainLedger, err := ledger.NewChainLedger(ctx, cfg.Chain.RPCURL, custody,
			cfg.Chain.PrivateKey, cfg.Chain.ChainID, time.Duration(cfg.Chain.TimeoutMs)*time.Millisecond)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize chain ledger: %v", err)
		}
		led = chainLedger
		logger.Info("Settling against chain", "rpc", cfg.Chain.RPCURL, "chain_id", cfg.Chain.ChainID)
	} else {
		led = ledger.NewMemLedger(cfg.Chain.ChainID, custody)
		logger.Warn("No chain configured, settling against the in-memory ledger")
	}

	// 5. Price oracle: on-chain feeds where configured, static prices otherwise.
	var source oracle.PriceSource
	if len(cfg.Oracle.Feeds) > 0 && cfg.Chain.RPCURL != "" {
		source, err = oracle.NewFeedSource(cfg.Chain.RPCURL, cfg.Oracle.Feeds,
			time.Duration(cfg.Oracle.CacheSeconds)*time.Second,
			time.Duration(cfg.Oracle.StaleAfterSeconds)*time.Second,
			time.Duration(cfg.Chain.TimeoutMs)*time.Millisecond,
			cfg.Chain.Retries)
	} else {
		source, err = oracle.NewStaticSource(cfg.Oracle.StaticPrices)
	}
	if err != nil {
		log.Fatalf("Failed to initialize price oracle: %v", err)
	}

	// 6. Core services
	broadcaster := stream.NewBroadcaster()
	engine := service.NewEngine(
		hasher,
		service.NewEligibilityGuard(reg, nonces),
		oracle.NewConverter(source),
		settle.NewSettler(led, custody),
		dispatch.NewRouter(led),
		led,
		reg,
		nonces,
		receipts,
		broadcaster,
	)

	// 7. Handlers
	settlementHandler := handler.NewSettlementHandler(engine)
	adminHandler := handler.NewAdminHandler(reg)

	// 8. Router
	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "mintgate"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(cfg))
	{
		v1.POST("/settlements", settlementHandler.Settle)
		v1.POST("/orders/digest", settlementHandler.Digest)
		v1.GET("/receipts/:id", settlementHandler.GetReceipt)
		v1.GET("/stream", gin.WrapF(broadcaster.Handle))
	}

	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.PUT("/fee", adminHandler.SetFee)
		admin.POST("/pause", adminHandler.Pause)
		admin.POST("/unpause", adminHandler.Unpause)
		admin.POST("/bans/:address", adminHandler.Ban)
		admin.DELETE("/bans/:address", adminHandler.Unban)
		admin.POST("/collections/:address", adminHandler.AddCollection)
		admin.DELETE("/collections/:address", adminHandler.RemoveCollection)
		admin.POST("/payment-tokens/:address", adminHandler.AddPaymentToken)
		admin.DELETE("/payment-tokens/:address", adminHandler.RemovePaymentToken)
	}

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("MintGate started", "port", cfg.Server.Port, "domain", cfg.Domain.Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broadcaster.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

func seedRegistry(reg *registry.Registry, cfg *config.Config) {
	for _, addr := range cfg.Registry.Collections {
		if common.IsHexAddress(addr) {
			reg.SetCollection(common.HexToAddress(addr), true)
		}
	}
	for _, addr := range cfg.Registry.PaymentTokens {
		if common.IsHexAddress(addr) {
			reg.SetPaymentToken(common.HexToAddress(addr), true)
		}
	}
	for _, addr := range cfg.Registry.BannedAccounts {
		if common.IsHexAddress(addr) {
			reg.SetBanned(common.HexToAddress(addr), true)
		}
	}
	if cfg.Registry.AllowNative {
		reg.SetPaymentToken(model.NativeToken, true)
	}
}
