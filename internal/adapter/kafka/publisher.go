// Package kafka publishes fired alerts to the notification topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/envsense/insight-engine/internal/domain"
)

// AlertEvent is the wire envelope for one fired alert.
type AlertEvent struct {
	UserID   string           `json:"user_id"`
	AlertID  string           `json:"alert_id"`
	Category domain.Category  `json:"category"`
	Severity domain.RiskLevel `json:"severity"`
	FiredAt  time.Time        `json:"fired_at"`
}

// Publisher produces alert events to a Kafka topic.
// It implements engine.AlertPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the alerts topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishAlerts serializes and publishes the user's fired alerts in a single
// WriteMessages call. Messages are keyed by user so one user's alerts stay
// ordered on a single partition.
func (p *Publisher) PublishAlerts(ctx context.Context, userID string, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i, alert := range alerts {
		msg, err := serializeToMessage(userID, alert)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals one alert into a Kafka message.
func serializeToMessage(userID string, alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(AlertEvent{
		UserID:   userID,
		AlertID:  alert.ID,
		Category: alert.Category,
		Severity: alert.Severity,
		FiredAt:  alert.FiredAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(userID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(alert.Category)},
			{Key: "severity", Value: []byte(alert.Severity.String())},
			{Key: "fired_at", Value: []byte(alert.FiredAt.Format(time.RFC3339))},
		},
	}, nil
}
