package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"exchangeflow/internal/api"
	"exchangeflow/internal/config"
	"exchangeflow/pkg/factory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Could not load configuration: %v\n", err)
		os.Exit(1)
	}

	appFactory, err := factory.NewFactory(context.Background(), cfg)
	if err != nil {
		fmt.Printf("Could not start: %v\n", err)
		os.Exit(1)
	}
	defer appFactory.Close()

	log := appFactory.GetLogger()
	log.Info("Starting exchange service", map[string]interface{}{"env": cfg.AppEnv, "driver": cfg.Database.Driver})

	health := map[string]api.HealthCheck{
		"database": appFactory.GetDB().PingContext,
	}
	if client := appFactory.GetRedisClient(); client != nil {
		health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	handler := api.NewRouter(api.Services{
		Applications: appFactory.GetApplicationService(),
		Programs:     appFactory.GetProgramService(),
		Offers:       appFactory.GetOfferService(),
		Users:        appFactory.GetUserService(),
		Auth:         appFactory.GetAuthService(),
		Cache:        appFactory.GetGraph(),
		Health:       health,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"port": cfg.Server.Port})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down", map[string]interface{}{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		return
	}

	log.Info("Server stopped", map[string]interface{}{})
}
