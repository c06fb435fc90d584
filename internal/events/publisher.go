// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"watvision-service/internal/observability/metrics"
)

// Publisher publishes assist events to separate Kafka topics: one for the
// high-volume per-frame step events, one for speech announcements.
type Publisher struct {
	writerStep   *kafka.Writer
	writerSpeech *kafka.Writer
	principal    string
	topicStep    string
	topicSpeech  string
	enabled      bool
	metrics      *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers     []string
	TopicStep   string
	TopicSpeech string
	Principal   string
	Enabled     bool
}

// New creates a new Kafka event publisher. With Kafka disabled or no
// brokers configured the publisher runs in log-only mode.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:   cfg.Principal,
			topicStep:   cfg.TopicStep,
			topicSpeech: cfg.TopicSpeech,
			enabled:     false,
			metrics:     m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerStep := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicStep,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSpeech := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSpeech,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicStep", cfg.TopicStep).
		Str("topicSpeech", cfg.TopicSpeech).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerStep:   writerStep,
		writerSpeech: writerSpeech,
		principal:    cfg.Principal,
		topicStep:    cfg.TopicStep,
		topicSpeech:  cfg.TopicSpeech,
		enabled:      true,
		metrics:      m,
	}
}

// PublishStep publishes a per-frame step event, keyed by session.
func (p *Publisher) PublishStep(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerStep, p.topicStep, "step", key, event)
}

// PublishSpeech publishes a speech announcement event, keyed by session.
func (p *Publisher) PublishSpeech(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerSpeech, p.topicSpeech, "speech", key, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerStep != nil {
		if e := p.writerStep.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing step writer")
			err = e
		}
	}
	if p.writerSpeech != nil {
		if e := p.writerSpeech.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing speech writer")
			err = e
		}
	}
	return err
}
