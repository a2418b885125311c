// Package events publishes job lifecycle events to Kafka so the worker
// process can pick them up.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"kopy/internal/logger"
)

const EventBulkImportCreated = "bulk_import.created"

// JobEvent is the wire format carried on the job topic.
type JobEvent struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Shop      string    `json:"shop"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewPublisher returns nil when no brokers are configured; callers treat a
// nil publisher as event publishing disabled.
func NewPublisher(brokers []string, topic string, logger *logger.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

func (p *Publisher) PublishJobCreated(ctx context.Context, jobID, shop string) error {
	if p == nil {
		return nil
	}
	event := JobEvent{
		Type:      EventBulkImportCreated,
		JobID:     jobID,
		Shop:      shop,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(jobID),
		Value: payload,
	})
	if err != nil {
		p.logger.Error("[Events] failed to publish %s for job %s: %v", event.Type, jobID, err)
		return err
	}
	p.logger.Debug("[Events] published %s for job %s", event.Type, jobID)
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
