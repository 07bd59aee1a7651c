package config

import (
	"context"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
)

type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka, channel or mock
	KafkaBrokers string
	SessionTopic string
}

func (c *EventConfig) GetKafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// CreateEventPublisher builds the configured publisher. Disabled publishing
// discards events; unknown publishers fall back to the in-memory mock.
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled")
		return events.NopEventPublisher{}, nil
	}

	cfg := events.PublisherConfig{
		KafkaBrokers: c.GetKafkaBrokers(),
		TopicName:    c.SessionTopic,
		Logger:       logger,
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher", "brokers", c.KafkaBrokers, "topic", c.SessionTopic)
		return events.NewKafkaEventPublisher(cfg)
	case "channel":
		logger.Info("Creating in-process event publisher", "topic", c.SessionTopic)
		pub, sub := events.NewChannelEventPublisher(cfg)
		if err := events.LogSessionEvents(context.Background(), sub, c.SessionTopic, logger); err != nil {
			pub.Close()
			return nil, err
		}
		return pub, nil
	case "mock":
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}
