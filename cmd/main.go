package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"capsule-service/internal/api"
	"capsule-service/internal/capsule"
	"capsule-service/internal/config"
	"capsule-service/internal/db"
	"capsule-service/internal/delivery"
	"capsule-service/internal/escalation"
	"capsule-service/internal/feed"
	"capsule-service/internal/inactivity"
	"capsule-service/internal/kafka"
	"capsule-service/internal/logging"
	"capsule-service/internal/models"
	"capsule-service/internal/scheduler"
	"capsule-service/pkg/pdf"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	feedMgr := feed.NewManager(logger)

	// Delivery adapters, one per delivery method
	notifier := delivery.NewGuardianNotifier(cfg, logger)
	renderer := pdf.NewClient(cfg.Renderer.URL, cfg.Renderer.Timeout)
	adapters := map[string]delivery.Adapter{
		models.MethodEmail:                delivery.NewEmailAdapter(cfg),
		models.MethodGuardianNotification: delivery.NewGuardianAdapter(dbConn, notifier, logger),
		models.MethodLegalNotice:          delivery.NewLegalAdapter(renderer, dbConn),
		models.MethodSocialMedia:          delivery.NewSocialAdapter(),
	}
	router := delivery.NewRouter(adapters, cfg.Scheduler.AdapterTimeout, logger)

	capsuleSvc := capsule.NewService(dbConn, router, feedMgr, logger)
	coordinator := escalation.New(dbConn, notifier, cfg.Inactivity.Cooldown, logger)
	runner := scheduler.NewRunner(scheduler.Deps{
		Store:     dbConn,
		Escalator: coordinator,
		Deliverer: capsuleSvc,
		Thresholds: inactivity.Thresholds{
			WarningDays:   cfg.Inactivity.WarningDays,
			CriticalDays:  cfg.Inactivity.CriticalDays,
			EmergencyDays: cfg.Inactivity.EmergencyDays,
		},
		MaxWorkers: cfg.Scheduler.MaxWorkers,
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka consumer for activity and life-event messages
	consumer := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.GroupID, dbConn, logger)
	var wg sync.WaitGroup
	consumer.Start(ctx, &wg)
	logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)

	handler := api.NewHandler(dbConn, capsuleSvc, coordinator, runner, feedMgr, logger)
	engine := api.NewRouter(handler, logger, cfg)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutting down")
		cancel()
		consumer.Close()
		wg.Wait()
		os.Exit(0)
	}()

	logger.Infof("Starting API server on %s", cfg.API.Port)
	if err := engine.Run(cfg.API.Port); err != nil {
		logger.Errorf("API server failed: %v", err)
	}
}
