package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"kopy/internal/events"
	"kopy/internal/logger"
	"kopy/internal/shopify"
)

// Consumer reads job events from Kafka and hands them to the engine. It is
// the second trigger for a job; the pending guard in ProcessJob makes the
// overlap with the API's fire-and-forget start harmless.
type Consumer struct {
	reader *kafka.Reader
	engine *Engine
	admin  shopify.AdminAPI
	logger *logger.Logger
}

func NewConsumer(brokers, topic string, engine *Engine, admin shopify.AdminAPI, logger *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        strings.Split(brokers, ","),
		Topic:          topic,
		GroupID:        "kopy-worker",
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	return &Consumer{
		reader: reader,
		engine: engine,
		admin:  admin,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("[Worker] consuming job events")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("[Worker] shutting down consumer")
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.logger.Error("[Worker] error reading message: %v", err)
			time.Sleep(time.Second)
			continue
		}

		var event events.JobEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("[Worker] malformed job event: %v", err)
			continue
		}
		if event.Type != events.EventBulkImportCreated {
			c.logger.Debug("[Worker] ignoring event type %s", event.Type)
			continue
		}

		c.logger.Info("[Worker] received job %s for shop %s", event.JobID, event.Shop)
		c.engine.ProcessJob(ctx, event.JobID, c.admin)
	}
}

func (c *Consumer) Stop() error {
	return c.reader.Close()
}
