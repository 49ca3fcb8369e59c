package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"farm-alert-service/internal/alerts"
	"farm-alert-service/internal/api"
	"farm-alert-service/internal/config"
	"farm-alert-service/internal/db"
	"farm-alert-service/internal/dispatch"
	"farm-alert-service/internal/hub"
	"farm-alert-service/internal/kafka"
	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
	"farm-alert-service/internal/providers"
	"farm-alert-service/internal/ws"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed:", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatal("Logger init failed:", err)
	}

	// Connect the delivery archive when a DSN is configured
	var archive dispatch.Archive
	var dbConn *db.DB
	if cfg.DB.DSN != "" {
		dbConn, err = db.New(cfg.DB.DSN)
		if err != nil {
			logger.Errorf("DB connect failed: %v", err)
			log.Fatal("DB connect failed:", err)
		}
		defer dbConn.Close()
		archive = dbConn
	}

	// Live channel hub (server side)
	liveHub := hub.New(logger)
	liveHub.Authenticate = func(token string) string {
		// Tokens are issued by the platform's auth service as
		// "<recipient_id>.<signature>"; verification happens upstream at
		// the ingress, so the hub only needs the subject.
		if i := strings.IndexByte(token, '.'); i > 0 {
			return token[:i]
		}
		return ""
	}

	// Channel providers
	channels := map[models.Channel]dispatch.SendFunc{
		models.ChannelPush:     providers.NewPush(liveHub),
		models.ChannelEmail:    providers.NewEmail(cfg),
		models.ChannelSMS:      providers.NewSMS(cfg),
		models.ChannelTelegram: providers.NewTelegram(cfg, logger),
	}

	// Dispatcher and its worker pool
	dispatcher := dispatch.New(channels, archive, logger, cfg.Dispatch.QueueSize, cfg.Dispatch.MaxWorkers)
	var wg sync.WaitGroup
	dispatcher.Start(&wg)

	// Alert engine: every new alert is queued for delivery fan-out and
	// broadcast to clients watching the farm.
	engine := alerts.NewEngine(alerts.NewStore(), logger)
	engine.OnCreated = func(a models.Alert) {
		dispatcher.QueueAlert(a, dispatcher.Recipients())
		liveHub.BroadcastFarm(a.FarmID, hub.NotificationFromAlert(a))
		if dbConn != nil {
			if err := dbConn.SaveAlert(context.Background(), a); err != nil {
				logger.Errorf("Alert archive failed: %v", err)
			}
		}
	}

	// Readings consumer
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg, engine, logger)
	consumer.Start(consumerCtx, &wg)

	// Client side of the live channel: keeps this instance synchronized
	// with the central hub when one is configured.
	var supervisor *ws.Supervisor
	tokens := &ws.RenewableToken{}
	if cfg.Live.HubURL != "" {
		router := ws.NewRouter(logger)
		router.On(models.MsgNotification, "log", func(msgType string, payload json.RawMessage) {
			var n models.NotificationPayload
			if err := json.Unmarshal(payload, &n); err != nil {
				logger.Warnf("Bad notification payload: %v", err)
				return
			}
			logger.Infof("Live notification: [%s] %s", n.Priority, n.Title)
		})
		router.On(ws.CatchAll, "trace", func(msgType string, payload json.RawMessage) {
			logger.Debugf("Live frame: type=%s size=%d", msgType, len(payload))
		})

		supervisor = ws.NewSupervisor(ws.Config{
			URL:         cfg.Live.HubURL,
			BaseDelay:   cfg.Live.BaseDelay,
			CapDelay:    cfg.Live.CapDelay,
			MaxAttempts: cfg.Live.MaxAttempts,
		}, tokens, router, logger)
		supervisor.Events = ws.Events{
			OnConnected: func() {
				if err := router.Send(models.ControlMessage{Action: models.ActionSubscribe, FarmID: cfg.Live.FarmID}); err != nil {
					logger.Errorf("Subscribe control failed: %v", err)
				}
			},
			OnReconnecting: func(attempt int, delay time.Duration) {
				logger.Warnf("Live channel reconnecting: attempt=%d delay=%s", attempt, delay)
			},
			OnFailed: func() {
				logger.Errorf("Live updates unavailable, degrading to polling")
			},
		}

		refreshToken(tokens, cfg.Live.TokenFile, logger)
		supervisor.Connect()
	}

	// Periodic maintenance: alert expiry sweep and token renewal. The
	// engine and supervisor hold no internal timers.
	scheduler := cron.New()
	scheduler.AddFunc("@every 1m", func() {
		engine.SweepExpired(time.Now())
	})
	if cfg.Live.HubURL != "" {
		scheduler.AddFunc("@every 5m", func() {
			refreshToken(tokens, cfg.Live.TokenFile, logger)
			supervisor.Connect() // no-op unless a token just became available
		})
	}
	scheduler.Start()

	// Start API server
	r := api.NewRouter(engine, dispatcher, liveHub, logger, cfg)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := r.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	scheduler.Stop()
	if supervisor != nil {
		supervisor.Shutdown()
	}
	consumerCancel()
	consumer.Close()
	dispatcher.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}

// refreshToken installs the latest bearer token from the rotated token
// file. A missing file leaves the supervisor in its deferred state.
func refreshToken(tokens *ws.RenewableToken, path string, logger *logging.Logger) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("Token read failed: %v", err)
		return
	}
	tokens.Set(strings.TrimSpace(string(data)))
}
