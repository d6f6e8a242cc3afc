package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"gm-occasions/internal/config"
	"gm-occasions/internal/kafka"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/notify"
	"gm-occasions/internal/occasion"
	"gm-occasions/internal/occasion/db"
	rediswrap "gm-occasions/internal/occasion/redis"
	"gm-occasions/internal/payment"
	"gm-occasions/internal/publicapi"
	"gm-occasions/internal/roster"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting public occasions API")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	ctx := context.Background()

	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()
	log.Info("DATABASE", "PostgreSQL connection successful")

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	httpClient := &http.Client{Timeout: 10 * time.Second}

	gateway, err := payment.NewGateway(cfg.Payment, httpClient, log)
	if err != nil {
		log.Fatal("PAYMENT", fmt.Sprintf("Gateway init failed: %v", err))
	}
	log.Info("PAYMENT", fmt.Sprintf("Payment gateway: %s", cfg.Payment.Provider))

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
	}

	mailer := notify.NewService(
		notify.NewResendClient(cfg.Email, httpClient, log),
		cfg.Email, cfg.Links, log,
	)

	dbLayer := &db.DB{Bun: bunDB}
	lock := rediswrap.NewRedis(redisClient, cfg.Redis.AdmissionLockTTL)

	admission := occasion.NewAdmissionService(dbLayer, lock, gateway, mailer, publisherOrNil(producer), cfg.Payment, log)
	occasions := occasion.NewService(dbLayer, mailer, occasionPublisherOrNil(producer), cfg.Links, log)
	rosterService := roster.NewService(dbLayer, log)

	handler := publicapi.NewHandler(admission, occasions, rosterService, mailer, log)

	server := &http.Server{
		Addr:         cfg.Server.PublicAddr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Public occasions API running on %s", cfg.Server.PublicAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Public occasions API shutdown complete")
	}
}

func publisherOrNil(producer *kafka.Producer) occasion.AdmissionPublisher {
	if producer == nil {
		return nil
	}
	return producer
}

func occasionPublisherOrNil(producer *kafka.Producer) occasion.Publisher {
	if producer == nil {
		return nil
	}
	return producer
}
