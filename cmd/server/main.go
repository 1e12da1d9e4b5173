package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hopingminds/menrol-api/internal/config"
	"github.com/hopingminds/menrol-api/internal/database"
	"github.com/hopingminds/menrol-api/internal/notify"
	"github.com/hopingminds/menrol-api/internal/router"
	"github.com/hopingminds/menrol-api/internal/service"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment")
	}
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("unable to create connection pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("unable to ping database")
	}
	log.Info("connected to database")

	broker := notify.NewBroker()
	go broker.Run()
	defer broker.Close()

	queries := database.New(pool)
	newStore := func(db database.DBTX) service.Store {
		return database.New(db)
	}
	svc := service.NewFulfillmentService(pool, queries, newStore, broker)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.New(cfg, svc, broker, log),
	}

	go func() {
		log.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
