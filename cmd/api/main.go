package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"claystudio/config"
	_ "claystudio/docs"
	"claystudio/internal/adapters/auth"
	"claystudio/internal/adapters/seatevents"
	httpdelivery "claystudio/internal/delivery/http"
	"claystudio/internal/delivery/http/controllers"
	"claystudio/internal/delivery/http/middleware"
	"claystudio/internal/repository/postgres"
	"claystudio/internal/services"
)

// @title Clay Studio Workshop Registrations API
// @version 1.0
// @description Workshop registration lifecycle and seat inventory for the pottery studio storefront.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.ContextTimeout)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		log.Fatalf("database ping: %v", err)
	}

	publisher, err := seatevents.NewPublisher(seatevents.Config{
		Provider:    cfg.SeatEventsProvider,
		RabbitMQURL: cfg.RabbitMQURL,
	})
	if err != nil {
		log.Fatalf("seat events: %v", err)
	}
	defer publisher.Close()

	store := postgres.NewRegistrationStore(db)
	registrationService := services.NewRegistrationService(store, publisher, logger, cfg.ContextTimeout)
	registrationController := controllers.NewRegistrationController(logger, registrationService)
	healthController := controllers.NewHealthController(logger, db)
	requireAuth := middleware.RequireAuth(auth.NewJWTVerifier(cfg.JWTSecret), logger)

	router := httpdelivery.NewRouter(registrationController, healthController, requireAuth)
	handler := middleware.CORS(cfg.CORSAllowedOrigins, middleware.LoggingMiddleware(logger, router))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment, "seat_events", cfg.SeatEventsProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
