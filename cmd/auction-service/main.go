package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-core/internal/api/handlers"
	"auction-core/internal/bidding"
	"auction-core/internal/clock"
	"auction-core/internal/config"
	"auction-core/internal/infrastructure/leader"
	"auction-core/internal/infrastructure/mysql"
	"auction-core/internal/infrastructure/redis"
	"auction-core/internal/services"
	"auction-core/internal/store"
	"auction-core/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting auction control-plane service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	lotRepo := mysql.NewMySQLLotRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	// Redis-backed components
	stateCache := redis.NewRedisLotStateCache(rdb)
	eventPublisher := redis.NewRedisEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Core engine
	clk := clock.System()
	lotStore := store.NewLotStore()
	timerEngine := bidding.NewTimerEngine(bidding.TimerConfig{
		ExtensionWindow:  cfg.Bidding.ExtensionWindow,
		ClosingThreshold: cfg.Bidding.ClosingThreshold,
		MaxExtensions:    cfg.Bidding.MaxExtensions,
	}, clk)

	// The control plane mirrors committed events cross-instance only; it
	// carries no local subscribers.
	sink := services.NewCompositeSink(nil, eventPublisher, log)

	coordinator := bidding.NewCoordinator(lotStore, timerEngine, clk, sink,
		cfg.Bidding.CommitTimeout, cfg.Instance.ID, log)
	coordinator.SetPersistence(lotRepo, bidRepo, stateCache)

	lotManager := services.NewLotManager(lotStore, coordinator, auctionRepo,
		lotRepo, bidRepo, leaderElection, clk,
		services.LifecycleConfig{
			LotDuration: cfg.Bidding.LotDuration,
			LotStagger:  cfg.Bidding.LotStagger,
		},
		cfg.Instance.ID, log)

	scheduler := services.NewCronLotScheduler(schedulerRepo, lotManager, log)
	lotManager.SetScheduler(scheduler)
	coordinator.SetScheduler(scheduler)

	if err := lotManager.Restore(context.Background()); err != nil {
		log.Error("Failed to restore state", "error", err)
		os.Exit(1)
	}

	// Track commits made on the bidding instances; no local fan-out here
	relayCtx, relayCancel := context.WithCancel(context.Background())
	defer relayCancel()
	relay := services.NewEventRelay(eventSubscriber, coordinator, nil, cfg.Instance.ID, log)
	go func() {
		if err := relay.Start(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event relay stopped", "error", err)
		}
	}()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(lotManager, log)

	api := e.Group("/api/v1")
	api.POST("/auctions", auctionHandler.CreateAuction)
	api.GET("/auctions/:id", auctionHandler.GetAuction)
	api.POST("/auctions/:id/lots", auctionHandler.AddLot)
	api.GET("/lots/:id", auctionHandler.GetLot)
	api.POST("/lots/:id/open", auctionHandler.OpenLot)
	api.POST("/lots/:id/close", auctionHandler.CloseLot)
	api.POST("/lots/:id/extend", auctionHandler.ExtendLot)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-control-plane",
			"timestamp": time.Now().Format(time.RFC3339),
			"port":      cfg.Admin.Port,
		})
	})

	// Start background services
	go func() {
		if err := scheduler.Start(context.Background()); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	// Try to become leader
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became scheduler leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Admin.Port)
	log.Info("Starting control-plane server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down control-plane service...")

	relayCancel()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Control-plane service stopped")
}
