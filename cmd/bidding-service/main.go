package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-core/internal/api/handlers"
	"auction-core/internal/bidding"
	"auction-core/internal/broadcast"
	"auction-core/internal/clock"
	"auction-core/internal/config"
	"auction-core/internal/infrastructure/leader"
	"auction-core/internal/infrastructure/mysql"
	"auction-core/internal/infrastructure/redis"
	ws "auction-core/internal/infrastructure/websocket"
	"auction-core/internal/services"
	"auction-core/internal/store"
	"auction-core/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
)

func main() {
	log := logger.New()
	log.Info("Starting bidding service")

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

	// Broadcast plane: registry tracks interests, fanout owns the bounded
	// per-connection mailboxes.
	registry := broadcast.NewRegistry()
	fanout := broadcast.NewFanout(registry, cfg.Bidding.SubscriberQueueSize, log)

	// Committed events go to local subscribers and to Redis for other
	// instances.
	sink := services.NewCompositeSink(fanout, eventPublisher, log)

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

	if err := lotManager.Restore(context.Background()); err != nil {
		log.Error("Failed to restore state", "error", err)
		os.Exit(1)
	}

	// Relay commits from other instances into the local fan-out
	relayCtx, relayCancel := context.WithCancel(context.Background())
	defer relayCancel()
	relay := services.NewEventRelay(eventSubscriber, coordinator, fanout, cfg.Instance.ID, log)
	go func() {
		if err := relay.Start(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event relay stopped", "error", err)
		}
	}()

	// HTTP + WebSocket surface
	bidHandler := handlers.NewBidHandler(coordinator, lotManager, log)
	wsHandler := ws.NewHandler(coordinator, lotManager, registry, fanout, log)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/lots/{id}/bids", bidHandler.SubmitBid).Methods("POST")
	api.HandleFunc("/lots/{id}", bidHandler.GetSnapshot).Methods("GET")

	router.HandleFunc("/ws", wsHandler.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"service":   "bidding-service",
			"instance":  cfg.Instance.ID,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}).Methods("GET")

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// No server-wide read/write timeouts: WebSocket connections are
	// long-lived and manage their own deadlines.
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	log.Info("Starting bidding server", "address", serverAddr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	relayCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
