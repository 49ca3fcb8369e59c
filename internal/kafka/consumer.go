package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"farm-alert-service/internal/alerts"
	"farm-alert-service/internal/config"
	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

// Consumer reads condition readings from the readings topic and feeds them
// to the alert engine. Alert fan-out happens through the engine's OnCreated
// hook, not here.
type Consumer struct {
	reader *kafka.Reader
	engine *alerts.Engine
	logger *logging.Logger
}

func NewConsumer(cfg config.Config, engine *alerts.Engine, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Kafka.Broker},
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	return &Consumer{reader: r, engine: engine, logger: logger}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Readings consumer started: topic=%s", c.reader.Config().Topic)

		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var reading models.Reading
			if err := json.Unmarshal(msg.Value, &reading); err != nil {
				c.logger.Errorf("Unmarshal reading failed: %v", err)
				continue
			}
			if reading.FarmID == "" {
				c.logger.Errorf("Invalid reading: missing farm_id")
				continue
			}

			created := c.engine.CreateFromReading(reading.FarmID, reading)
			if len(created) > 0 {
				c.logger.Infof("Reading for farm %s raised %d alerts", reading.FarmID, len(created))
			}
		}
	}()
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Close reader failed: %v", err)
	}
}
