package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/config"
	"taskplanner/internal/handler"
	"taskplanner/internal/httpserver"
	"taskplanner/internal/mailer"
	"taskplanner/internal/repository"
	"taskplanner/internal/service"
	"taskplanner/internal/service/notify"
	"taskplanner/pkg/db"
	"taskplanner/pkg/logger"
	"taskplanner/pkg/mq"
	"taskplanner/pkg/redis"
	"taskplanner/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting taskplanner...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("server_port", cfg.Server.Port),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis (immediate-path dedup)
	rdb := redis.NewRedisClient(cfg.Redis)
	deduper := util.NewDeduper(rdb, 10*time.Minute, log)

	// MQ Publisher (optional)
	var publisher notify.EventPublisher
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Warn("MQ publisher unavailable, events disabled", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// Repositories
	taskRepo := repository.NewTaskRepository(dbConn, log)
	userRepo := repository.NewUserRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)

	// Notification engine
	smtpMailer := mailer.NewSMTPMailer(cfg.Mail, log)
	if !smtpMailer.Configured() {
		log.Warn("Mail transport not configured, notifications will be logged only")
	}
	gateway := notify.NewGateway(smtpMailer, log)
	engine := notify.NewEngine(notificationRepo, gateway, log, time.Now,
		cfg.Notify.ReminderLeadDays, cfg.Notify.MaxRetries)
	immediate := notify.NewImmediate(gateway, notificationRepo, deduper, log, time.Now)
	sweeper := notify.NewSweeper(notificationRepo, taskRepo, userRepo, engine, gateway,
		publisher, log, time.Now, cfg.Notify.RetentionDays)

	// Scheduler
	scheduler := notify.NewScheduler(sweeper, cfg.Notify, time.Local, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Services
	taskService := service.NewTaskService(taskRepo, userRepo, notificationRepo,
		engine, immediate, publisher, log)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, log)

	// HTTP
	authHandler := handler.NewAuthHandler(authService, log)
	taskHandler := handler.NewTaskHandler(taskService, log)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, log)

	router := httpserver.NewRouter(authHandler, taskHandler, notificationHandler,
		cfg.JWT.Secret, dbConn, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("taskplanner is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down taskplanner gracefully...")

	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("taskplanner shutdown complete")
}
