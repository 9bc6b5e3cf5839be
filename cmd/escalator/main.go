package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peopleflow/internal/config"
	"peopleflow/internal/handler"
	"peopleflow/internal/httpserver"
	"peopleflow/internal/model"
	"peopleflow/internal/repository"
	"peopleflow/internal/service/escalation"
	"peopleflow/internal/service/router"
	"peopleflow/pkg/db"
	"peopleflow/pkg/logger"
	"peopleflow/pkg/mq"
	"peopleflow/pkg/redis"
	"peopleflow/pkg/util"

	"go.uber.org/zap"
)

const runLockName = "escalation-scan"

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting escalator...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.Int("tick_minutes", cfg.Engine.TickMinutes),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// MQ publisher for notification.created
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Redis run lock
	rdb := redis.NewClient(cfg.Redis)
	defer rdb.Close()
	runLock := util.NewRunLock(rdb, time.Duration(cfg.Engine.RunLockTTLMinutes)*time.Minute)

	// Repositories
	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	preferenceRepo := repository.NewPreferenceRepository(dbConn, log)
	ruleRepo := repository.NewRuleRepository(dbConn, log)
	historyRepo := repository.NewHistoryRepository(dbConn, log)
	entityRepo := repository.NewEntityRepository(dbConn, log)

	// Services
	defaults := model.DefaultPreferences()
	notificationRouter := router.NewRouter(notificationRepo, preferenceRepo, publisher, &defaults, log)
	engine := escalation.NewEngine(
		entityRepo,
		historyRepo,
		ruleRepo,
		notificationRouter,
		time.Duration(cfg.Engine.StoreTimeoutSeconds)*time.Second,
		log,
	)

	// Escalation scan loop
	scanCtx, stopScans := context.WithCancel(context.Background())
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)

		ticker := time.NewTicker(time.Duration(cfg.Engine.TickMinutes) * time.Minute)
		defer ticker.Stop()

		runScan(scanCtx, engine, runLock, log)
		for {
			select {
			case <-ticker.C:
				runScan(scanCtx, engine, runLock, log)
			case <-scanCtx.Done():
				return
			}
		}
	}()

	// Admin HTTP API
	ruleHandler := handler.NewRuleHandler(ruleRepo)
	preferenceHandler := handler.NewPreferenceHandler(notificationRouter)
	notificationHandler := handler.NewNotificationHandler(notificationRouter, notificationRepo)
	httpRouter := httpserver.NewRouter(ruleHandler, preferenceHandler, notificationHandler, cfg.JWT.Secret, dbConn)

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := httpRouter.Run(cfg.Server.Port); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("escalator is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down escalator gracefully...")
	stopScans()
	<-scanDone
	log.Info("escalator shutdown complete")
}

// runScan runs one escalation scan under the distributed run lock, so two
// replicas (or an overlapping tick) never scan at the same time.
func runScan(ctx context.Context, engine *escalation.Engine, runLock *util.RunLock, log *zap.Logger) {
	if !runLock.Acquire(ctx, runLockName) {
		log.Info("Escalation scan already running elsewhere, skipping tick")
		return
	}
	defer runLock.Release(ctx, runLockName)

	engine.ProcessEscalations(ctx)
}
