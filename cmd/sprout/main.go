package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fernhollow/sprout/internal/database"
	"github.com/fernhollow/sprout/internal/email"
	"github.com/fernhollow/sprout/internal/logging"
	"github.com/fernhollow/sprout/internal/server"
	"github.com/fernhollow/sprout/internal/token"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("SPROUT_LOG_LEVEL"))

	port := getenv("SPROUT_PORT", "8080")
	dbPath := getenv("SPROUT_DB_PATH", "sprout.db")
	baseURL := getenv("SPROUT_BASE_URL", "http://localhost:"+port)

	jwtSecret := os.Getenv("SPROUT_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("SPROUT_JWT_SECRET is required")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	tokens := token.NewService(jwtSecret)
	emailClient := email.NewClient(
		os.Getenv("SPROUT_POSTMARK_TOKEN"),
		getenv("SPROUT_FROM_EMAIL", "noreply@sprout.local"),
		baseURL,
	)
	if !emailClient.Configured() {
		logger.Warn("no email provider configured; invite links will be returned in API responses")
	}

	srv := server.New(db, tokens, emailClient, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Background cleanup goroutine: the rate limiter keys on client IPs, so
	// expired windows must be reclaimed or the map grows without bound.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("sprout listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
