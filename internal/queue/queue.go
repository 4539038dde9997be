// Package queue is the best-effort observability side-channel for ingest
// lifecycle events (pkg/ingest.EventPublisher), adapted from the prior codebase's
// internal/queue: a single topic exchange replaces the prior codebase's four
// durable work queues plus their retry/DLQ ladder, since these events are
// fire-and-forget telemetry, not work items a consumer must eventually
// process to completion.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/lexigraph/lexigraph/pkg/logger"
)

const exchangeName = "ingest_events"

// Publisher publishes ingest lifecycle events to a topic exchange. A nil
// *Publisher is valid and silently drops every event, so callers that run
// without RabbitMQ configured can still construct an Ingestor.
type Publisher struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

// Connect dials RabbitMQ at url (RABBITMQ_URL) and declares the topic
// exchange events publish to.
func Connect(url string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue: declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

// Publish satisfies pkg/ingest.EventPublisher. Failures are logged, never
// returned or propagated — a broker outage must not fail an ingest.
func (p *Publisher) Publish(eventType string, payload map[string]any) {
	if p == nil || p.ch == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("queue: marshal event failed", "event", eventType, "err", err)
		return
	}
	err = p.ch.Publish(exchangeName, eventType, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		logger.Warn("queue: publish event failed", "event", eventType, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
