package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port       string
		BasePath   string
		CronSecret string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Telegram struct {
		BotToken string
	}
	Renderer struct {
		URL     string
		Timeout time.Duration
	}
	Inactivity struct {
		WarningDays   int
		CriticalDays  int
		EmergencyDays int
		Cooldown      time.Duration
	}
	Scheduler struct {
		MaxWorkers     int
		NotifyRate     int
		AdapterTimeout time.Duration
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")
	cfg.API.CronSecret = os.Getenv("CRON_SECRET")

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	cfg.SMS.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	cfg.Renderer.URL = os.Getenv("PDF_RENDERER_URL")
	if d, err := time.ParseDuration(os.Getenv("PDF_RENDERER_TIMEOUT")); err == nil {
		cfg.Renderer.Timeout = d
	}

	if d, err := strconv.Atoi(os.Getenv("INACTIVITY_WARNING_DAYS")); err == nil {
		cfg.Inactivity.WarningDays = d
	}
	if d, err := strconv.Atoi(os.Getenv("INACTIVITY_CRITICAL_DAYS")); err == nil {
		cfg.Inactivity.CriticalDays = d
	}
	if d, err := strconv.Atoi(os.Getenv("INACTIVITY_EMERGENCY_DAYS")); err == nil {
		cfg.Inactivity.EmergencyDays = d
	}
	if d, err := time.ParseDuration(os.Getenv("ESCALATION_COOLDOWN")); err == nil {
		cfg.Inactivity.Cooldown = d
	}

	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Scheduler.MaxWorkers = mw
	}
	if nr, err := strconv.Atoi(os.Getenv("NOTIFY_RATE_PER_SECOND")); err == nil {
		cfg.Scheduler.NotifyRate = nr
	}
	if d, err := time.ParseDuration(os.Getenv("ADAPTER_TIMEOUT")); err == nil {
		cfg.Scheduler.AdapterTimeout = d
	}

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.API.CronSecret == "" {
		missing = append(missing, "CRON_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "life-events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "capsule-service"
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30 * time.Second
	}
	if cfg.Inactivity.WarningDays == 0 {
		cfg.Inactivity.WarningDays = 30
	}
	if cfg.Inactivity.CriticalDays == 0 {
		cfg.Inactivity.CriticalDays = 60
	}
	if cfg.Inactivity.EmergencyDays == 0 {
		cfg.Inactivity.EmergencyDays = 90
	}
	if cfg.Inactivity.Cooldown == 0 {
		cfg.Inactivity.Cooldown = 72 * time.Hour
	}
	if cfg.Scheduler.MaxWorkers == 0 {
		cfg.Scheduler.MaxWorkers = 10
	}
	if cfg.Scheduler.NotifyRate == 0 {
		cfg.Scheduler.NotifyRate = 20
	}
	if cfg.Scheduler.AdapterTimeout == 0 {
		cfg.Scheduler.AdapterTimeout = 30 * time.Second
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
