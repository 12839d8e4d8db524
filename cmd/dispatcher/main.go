package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"eventpass/config"
	"eventpass/internal/adapters/email"
	"eventpass/internal/repository/postgres"
	"eventpass/internal/services"
)

func main() {
	remindEvent := flag.String("schedule-reminders", "", "Schedule reminder jobs for the given event ID on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := config.NewLogger()
	logger.Info("starting notification dispatcher", "environment", cfg.Environment)

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	eventRepo := postgres.NewEventRepository(db)
	regRepo := postgres.NewRegistrationRepository(db)

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
		},
		SendGridAPIKey: cfg.SendGridAPIKey,
	})
	if err != nil {
		logger.Error("failed to create mailer", "error", err)
		os.Exit(1)
	}

	queue := services.NewDispatchQueue(mailer, eventRepo, regRepo, services.QueueConfig{
		DispatchInterval: cfg.DispatchInterval,
		RetryDelay:       cfg.RetryDelay,
		MaxAttempts:      cfg.MaxAttempts,
	}, logger)

	if *remindEvent != "" {
		if err := queue.ScheduleEventReminders(context.Background(), *remindEvent); err != nil {
			logger.Error("failed to schedule event reminders", "event_id", *remindEvent, "error", err)
			os.Exit(1)
		}
	}

	queue.Start()
	defer queue.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down", "pending", queue.Status().Pending)
}
