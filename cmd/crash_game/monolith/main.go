package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hollow93/social-casino/internal/config"
	analyticsModule "github.com/Hollow93/social-casino/internal/modules/analytics"
	analyticsDomain "github.com/Hollow93/social-casino/internal/modules/analytics/domain"
	analyticsDB "github.com/Hollow93/social-casino/internal/modules/analytics/repository/db"
	authUseCase "github.com/Hollow93/social-casino/internal/modules/auth/usecase"
	gmsHttp "github.com/Hollow93/social-casino/internal/modules/crash_game/gms/adapter/http"
	gmsDomain "github.com/Hollow93/social-casino/internal/modules/crash_game/gms/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/fair"
	gmsMachine "github.com/Hollow93/social-casino/internal/modules/crash_game/gms/machine"
	gmsRepo "github.com/Hollow93/social-casino/internal/modules/crash_game/gms/repository/db"
	gmsUseCase "github.com/Hollow93/social-casino/internal/modules/crash_game/gms/usecase"
	gsDomain "github.com/Hollow93/social-casino/internal/modules/crash_game/gs/domain"
	gsDB "github.com/Hollow93/social-casino/internal/modules/crash_game/gs/repository/db"
	gsUseCase "github.com/Hollow93/social-casino/internal/modules/crash_game/gs/usecase"
	gatewayHttp "github.com/Hollow93/social-casino/internal/modules/gateway/adapter/http"
	gatewayUseCase "github.com/Hollow93/social-casino/internal/modules/gateway/usecase"
	"github.com/Hollow93/social-casino/internal/modules/gateway/ws"
	walletModule "github.com/Hollow93/social-casino/internal/modules/wallet"
	walletDomain "github.com/Hollow93/social-casino/internal/modules/wallet/domain"
	walletDB "github.com/Hollow93/social-casino/internal/modules/wallet/repository/db"
	walletRedis "github.com/Hollow93/social-casino/internal/modules/wallet/repository/redis"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// roundDrainTimeout bounds how long shutdown waits for the running round to end
const roundDrainTimeout = 30 * time.Second

func main() {
	pprofPort := flag.String("pprof-port", "", "Port to run pprof server on (e.g., 6060)")
	background := flag.Bool("d", false, "Run in background mode (disable console logging)")
	envFile := flag.String("env", ".env", "Optional .env file")
	flag.Parse()

	cfg, err := config.LoadMonolithConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithFile(cfg.Log.File, cfg.Log.Level, cfg.Log.Format, cfg.Log.Console && !*background)
	defer logger.Flush()

	if *pprofPort != "" {
		go func() {
			addr := "localhost:" + *pprofPort
			logger.InfoGlobal().Str("addr", addr).Msg("📈 Starting pprof server")
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.ErrorGlobal().Err(err).Msg("Failed to start pprof server")
			}
		}()
	}

	fmt.Printf("🚀 Starting Crash Game Monolith... Logs are being written to %s (rotating)\n", cfg.Log.File)
	logger.InfoGlobal().Msg("🎮 Starting Crash Game Monolith...")

	// 1. Infrastructure
	gormLog := logger.NewGormLogger()
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to get database instance")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to ping database")
	}
	if err := db.AutoMigrate(
		&walletDomain.Player{},
		&gmsDomain.CrashRound{},
		&gsDomain.BetOrder{},
		&analyticsDomain.GameEvent{},
	); err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to migrate schema")
	}
	logger.InfoGlobal().Msg("✅ Database connected")

	// 2. Wallet
	var walletSvc service.WalletService
	switch cfg.CrashGame.WalletStore {
	case "memory":
		walletSvc = walletModule.NewMemoryStore(cfg.CrashGame.StartingBalance)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to connect to redis")
		}
		walletSvc = walletRedis.NewBalanceRepository(rdb)
	default:
		walletSvc = walletDB.NewBalanceRepository(db)
	}
	logger.InfoGlobal().Str("store", cfg.CrashGame.WalletStore).Msg("✅ Wallet module initialized")

	// 3. Analytics
	sink := analyticsModule.NewSink(
		analyticsDB.NewEventRepository(db),
		cfg.Analytics.QueueSize,
		cfg.Analytics.BatchSize,
		cfg.Analytics.FlushInterval,
	)

	// 4. Crash game: GS ledger, then GMS machine driving it
	logger.InfoGlobal().Msg("🎲 Initializing Crash Game...")
	ledger := gsUseCase.NewBetLedger(walletSvc, sink, gsDB.NewBetOrderRepository(db))

	engine := fair.NewEngine(cfg.CrashGame.HouseEdge, cfg.CrashGame.ClientSeed, cfg.CrashGame.SeedCeiling)
	stateMachine := gmsMachine.NewStateMachine(engine, ledger, ledger, cfg.CrashGame.HistorySize)
	stateMachine.Countdown = cfg.CrashGame.Countdown
	stateMachine.CooldownDuration = cfg.CrashGame.Cooldown
	ledger.SetRoundClock(stateMachine)

	roundUC := gmsUseCase.NewRoundUseCase(stateMachine, gmsRepo.NewCrashRoundRepository(db), cfg.CrashGame.ClientSeed, cfg.CrashGame.HouseEdge)
	logger.InfoGlobal().Msg("✅ Crash Game ready")

	// 5. Gateway
	validator, err := authUseCase.NewValidator(
		cfg.Gateway.Auth.BotToken,
		cfg.Gateway.Auth.BotID,
		cfg.Gateway.Auth.PublicKeyHex,
		cfg.Gateway.Auth.MaxAge,
		cfg.Gateway.Auth.MaxSkew,
	)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to create initData validator")
	}

	wsCfg := cfg.Gateway.WebSocket
	wsManager := ws.NewManager(ws.Options{
		PingInterval:   wsCfg.PingInterval,
		WriteWait:      wsCfg.WriteWait,
		PongWait:       wsCfg.PongWait,
		MaxMessageSize: wsCfg.MaxMessageSize,
		SendBuffer:     wsCfg.SendBuffer,
	})
	gatewayUC := gatewayUseCase.NewGatewayUseCase(ledger, stateMachine, walletSvc, sink)
	gatewayHandler := gatewayHttp.NewHandler(gatewayUC, wsManager, validator, cfg.Gateway.Auth.HandshakeTimeout)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())

	gatewayHandler.RegisterRoutes(router)
	gmsHttp.NewHandler(roundUC).RegisterRoutes(router.Group("/api/crash"))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"phase":            stateMachine.Phase().String(),
			"online":           ledger.Online(),
			"events_dropped":   sink.Dropped(),
			"events_persisted": sink.Written(),
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Gateway.Server.Port,
		Handler: router,
	}

	// 6. Run until signalled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinkCtx, stopSink := context.WithCancel(context.Background())
	sinkDone := make(chan error, 1)
	go func() { sinkDone <- sink.Run(sinkCtx) }()

	machineCtx, stopMachine := context.WithCancel(context.Background())
	defer stopMachine()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stateMachine.Start(machineCtx)
		return nil
	})
	g.Go(func() error {
		logger.InfoGlobal().
			Str("port", cfg.Gateway.Server.Port).
			Str("ws_url", fmt.Sprintf("ws://localhost:%s/ws?initData=...", cfg.Gateway.Server.Port)).
			Msg("🚀 Crash Game Monolith running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoGlobal().Msg("🛑 Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorGlobal().Err(err).Msg("Gateway server forced to shutdown")
		}

		logger.InfoGlobal().Msg("⏳ Waiting for current round to finish...")
		stateMachine.Stop()
		// past the deadline a countdown refunds and a flight crashes at once
		time.AfterFunc(roundDrainTimeout, stopMachine)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.ErrorGlobal().Err(err).Msg("Server error")
	}

	logger.InfoGlobal().Msg("🔌 Closing all WebSocket connections...")
	wsManager.Shutdown()

	stopSink()
	if err := <-sinkDone; err != nil {
		logger.ErrorGlobal().Err(err).Msg("Analytics sink failed")
	}
	logger.InfoGlobal().
		Uint64("events_dropped", sink.Dropped()).
		Uint64("events_persisted", sink.Written()).
		Msg("👋 Server exited properly")
}
