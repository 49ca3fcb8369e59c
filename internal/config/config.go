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
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string // optional: empty disables the delivery archive
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
	Live struct {
		HubURL      string // ws:// or wss:// endpoint the supervisor dials
		FarmID      string // farm topic to subscribe once the channel opens
		TokenFile   string // bearer token file, rotated out-of-band
		BaseDelay   time.Duration
		CapDelay    time.Duration
		MaxAttempts int
	}
	API struct {
		Port     string
		BasePath string
	}
	Dispatch struct {
		QueueSize  int
		MaxWorkers int
	}
	Logging struct {
		Dir   string
		Level string
	}
	RateLimit struct {
		TelegramPerSecond int
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN (delivery archive, optional)
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// SMS settings
	cfg.SMS.AccountSID = os.Getenv("SMS_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("SMS_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("SMS_FROM_NUMBER")

	// Live channel settings
	cfg.Live.HubURL = os.Getenv("LIVE_HUB_URL")
	cfg.Live.FarmID = os.Getenv("LIVE_FARM_ID")
	cfg.Live.TokenFile = os.Getenv("LIVE_TOKEN_FILE")
	if ms, err := strconv.Atoi(os.Getenv("LIVE_BASE_DELAY_MS")); err == nil {
		cfg.Live.BaseDelay = time.Duration(ms) * time.Millisecond
	}
	if ms, err := strconv.Atoi(os.Getenv("LIVE_CAP_DELAY_MS")); err == nil {
		cfg.Live.CapDelay = time.Duration(ms) * time.Millisecond
	}
	if n, err := strconv.Atoi(os.Getenv("LIVE_MAX_ATTEMPTS")); err == nil {
		cfg.Live.MaxAttempts = n
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Dispatch worker settings
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Dispatch.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Dispatch.MaxWorkers = mw
	}

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Rate limits
	if r, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.RateLimit.TelegramPerSecond = r
	}

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.Kafka.Topic == "" {
		missing = append(missing, "KAFKA_TOPIC")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "farm-alert-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Dispatch.QueueSize == 0 {
		cfg.Dispatch.QueueSize = 500
	}
	if cfg.Dispatch.MaxWorkers == 0 {
		cfg.Dispatch.MaxWorkers = 10
	}
	if cfg.Live.BaseDelay == 0 {
		cfg.Live.BaseDelay = time.Second
	}
	if cfg.Live.CapDelay == 0 {
		cfg.Live.CapDelay = 30 * time.Second
	}
	if cfg.Live.MaxAttempts == 0 {
		cfg.Live.MaxAttempts = 3
	}
	if cfg.RateLimit.TelegramPerSecond == 0 {
		cfg.RateLimit.TelegramPerSecond = 25
	}

	return cfg, nil
}
