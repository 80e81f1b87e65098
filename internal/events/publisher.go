// Package events publishes domain events when videos settle.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Event types
const (
	TypeVideoReady   = "video.ready"
	TypeVideoErrored = "video.errored"
)

// Event announces that a slot reached a terminal status
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"event_type"`
	ContentID  string         `json:"content_id"`
	Kind       content.Kind   `json:"kind"`
	SharerID   string         `json:"sharer_id"`
	PromptID   string         `json:"prompt_id,omitempty"`
	TopicID    string         `json:"topic_id,omitempty"`
	Status     content.Status `json:"status"`
	PlaybackID string         `json:"playback_id,omitempty"`
	ErrorText  string         `json:"error_text,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewSlotEvent builds an event describing a slot's current state
func NewSlotEvent(id, eventType string, slot *content.Slot) Event {
	return Event{
		ID:         id,
		Type:       eventType,
		ContentID:  slot.ID,
		Kind:       slot.Kind,
		SharerID:   slot.SharerID,
		PromptID:   slot.PromptID,
		TopicID:    slot.TopicID,
		Status:     slot.Status,
		PlaybackID: slot.PlaybackID,
		ErrorText:  slot.ErrorText,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers domain events to interested services
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// producer is the subset of *kgo.Client the publisher needs
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes events as JSON records keyed by content id
type KafkaPublisher struct {
	client  producer
	topic   string
	timeout time.Duration
	logger  logging.Logger
}

// NewKafkaPublisher connects a producer to the given brokers
func NewKafkaPublisher(brokers []string, topic string, logger logging.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("storyvideo"),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return newKafkaPublisher(client, topic, logger), nil
}

func newKafkaPublisher(client producer, topic string, logger logging.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Publish produces the event synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ContentID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce %s event: %w", event.Type, err)
	}

	p.logger.WithFields(logging.Fields{
		"event_type": event.Type,
		"content_id": event.ContentID,
	}).Debug("published domain event")
	return nil
}

// Close flushes and closes the producer
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
