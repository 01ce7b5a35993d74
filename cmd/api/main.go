package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ironbank/ironbank/internal/bank"
	"github.com/ironbank/ironbank/internal/config"
	"github.com/ironbank/ironbank/internal/handler"
	"github.com/ironbank/ironbank/internal/integrations/campaign"
	"github.com/ironbank/ironbank/internal/rates"
	"github.com/ironbank/ironbank/internal/repository"
	"github.com/ironbank/ironbank/internal/service"
	"github.com/ironbank/ironbank/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db, cfg.HMACSecret)
	registry := bank.NewRegistry()
	gateway := campaign.NewClient(cfg, logger)
	scales := rates.EnvScaleProvider{Defaults: rates.DefaultScales()}
	mailer := email.NewSender(cfg, logger)
	svc := service.NewService(repo, registry, gateway, scales, mailer, cfg, logger)
	if err := svc.LoadState(); err != nil {
		logger.Fatalf("Failed to restore state: %v", err)
	}

	// Setup router
	r := mux.NewRouter()
	h := handler.NewHandler(svc, logger)
	h.RegisterRoutes(r, cfg)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Daily settlement schedule
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.SettlementSchedule, func() {
		if err := svc.RunDailySettlement(context.Background()); err != nil {
			logger.Errorf("Settlement run failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule settlement: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}
}
