package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/connectwithme/relay/internal/auth"
	"github.com/connectwithme/relay/internal/broker"
	"github.com/connectwithme/relay/internal/config"
	"github.com/connectwithme/relay/internal/handler"
	"github.com/connectwithme/relay/internal/health"
	"github.com/connectwithme/relay/internal/hub"
	"github.com/connectwithme/relay/internal/metrics"
	"github.com/connectwithme/relay/internal/relay"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log.Println("Starting realtime relay")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	collector := metrics.NewPrometheusCollector()

	// Cross-instance bridge, disabled unless configured
	var bridge broker.Broker = broker.Nop{}
	if cfg.Redis.Enabled {
		redisBridge, err := broker.NewRedis(ctx, cfg.Redis.Address, cfg.Redis.Password,
			cfg.Redis.DB, cfg.Redis.Channel, uuid.NewString())
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		bridge = redisBridge
		log.Printf("Bridging events via redis at %s", cfg.Redis.Address)
	}

	// Relay service
	verifier := auth.NewVerifier(cfg.Auth.Secret)
	if verifier.Enabled() {
		log.Println("Setup token verification enabled")
	}
	h := hub.New()
	service := relay.New(h, verifier, collector, bridge)
	if err := service.Run(ctx); err != nil {
		log.Fatalf("Failed to start bridge subscription: %v", err)
	}

	// Health checks
	checker := health.NewChecker()
	checker.Register("hub", func(context.Context) (health.Status, error) {
		return health.StatusUp, nil
	})
	checker.Start()
	defer checker.Stop()

	// Handlers
	wsHandler := handler.NewWebSocketHandler(cfg, service, collector)
	httpHandler := handler.NewHTTPHandler(service, checker)

	// Create HTTP router
	router := mux.NewRouter()
	router.Handle(cfg.WebSocket.Path, wsHandler)
	router.Handle("/metrics", collector.Handler()).Methods("GET")
	httpHandler.SetupRoutes(router)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTP.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	cancel()
	if err := bridge.Close(); err != nil {
		log.Printf("Bridge close error: %v", err)
	}

	log.Println("Shutdown complete")
}
