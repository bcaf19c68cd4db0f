package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rps_arena/internal/chain"
	"rps_arena/internal/cipher"
	"rps_arena/internal/config"
	"rps_arena/internal/db"
	httpServer "rps_arena/internal/http"
	"rps_arena/internal/logger"
	"rps_arena/internal/match"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
	"rps_arena/internal/settlement"
	"rps_arena/internal/worker"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

// matches retried per worker pass
const retryBatch = 50

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	rdb := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}

	moveCipher, err := cipher.NewFromBase64(cfg.MoveCipherKey)
	if err != nil {
		logger.Fatal("invalid MOVE_CIPHER_KEY", "error", err)
	}

	var backend match.Backend
	switch cfg.MatchBackend {
	case config.BackendRedis:
		if rdb == nil {
			logger.Fatal("MATCH_BACKEND=redis but redis is unreachable", "addr", cfg.RedisAddr)
		}
		backend = match.NewRedisBackend(rdb, cfg.MatchTTL)
	default:
		backend = match.NewMemoryBackend()
	}
	store := match.NewStore(backend, moveCipher)

	escrow, err := chain.NewEscrow(chain.EscrowConfig{
		AlgodURL:   cfg.AlgodURL,
		AlgodToken: cfg.AlgodToken,
		Mnemonic:   cfg.EscrowAdminMnemonic,
		FlatFee:    cfg.EscrowFeeMicroAlgos,
		WaitRounds: cfg.EscrowWaitRounds,
	})
	if err != nil {
		logger.Fatal("escrow init failed", "error", err)
	}
	indexer := chain.NewIndexer(cfg.IndexerURL, cfg.IndexerToken)
	poller := chain.NewPoller(cfg.PollMinInterval, cfg.PollMaxInterval, cfg.PollMaxRetries)

	// a shared lock is required once more than one instance settles
	var locker settlement.Locker = settlement.NewMemoryLocker()
	if rdb != nil {
		locker = settlement.NewRedisLocker(rdb)
	}

	matchRepo := repository.NewMatchRepository(dbPool)
	auditService := service.NewAuditService(dbPool)
	trigger := settlement.NewTrigger(matchRepo, escrow, locker, cfg.SettleLockTTL)

	matchService := service.NewMatchService(matchRepo, store, trigger, indexer, poller, auditService)
	authService := service.NewAuthService(cfg.AuthDomain, auditService)

	hub := ws.NewHub(matchService, store.Reveal)
	store.SetNotifier(hub)

	retry, err := worker.NewSettlementRetry(matchService, cfg.SettleRetryInterval, retryBatch)
	if err != nil {
		logger.Fatal("settlement retry worker init failed", "error", err)
	}
	retry.Start()

	r := gin.Default()
	r.Use(httpServer.CORS(cfg.AllowedOrigin))
	httpServer.RegisterRoutes(r, cfg, httpServer.Deps{
		DB:      dbPool,
		Redis:   rdb,
		Matches: matchService,
		Auth:    authService,
		Audit:   auditService,
		Hub:     hub,
		Version: version,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started",
			"port", cfg.AppPort,
			"match_backend", cfg.MatchBackend,
			"escrow_admin", escrow.AdminAddress(),
			"redis", rdb != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	if err := retry.Stop(); err != nil {
		logger.Warn("settlement retry worker stop", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
