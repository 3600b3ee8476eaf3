package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
	"tracklift/config"
	"tracklift/internal/logger"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type Channel string

func (c Channel) String() string {
	return string(c)
}

// Alert channels, one per rule named in the monitoring requirements:
// silent set-list failures, sustained per-source error rates, circuit
// breakers stuck open, and cool-down backlog.
const (
	SILENT_FAILURE_CHANNEL   Channel = "alerts.silent_failure"
	ERROR_RATE_CHANNEL       Channel = "alerts.error_rate"
	CIRCUIT_BREAKER_CHANNEL  Channel = "alerts.circuit_breaker"
	COOLDOWN_BACKLOG_CHANNEL Channel = "alerts.cooldown_backlog"
)

type MessageType string

const (
	ALERT_SILENT_FAILURE   MessageType = "silent_failure"
	ALERT_ERROR_RATE       MessageType = "error_rate"
	ALERT_CIRCUIT_BREAKER  MessageType = "circuit_breaker_open"
	ALERT_COOLDOWN_BACKLOG MessageType = "cooldown_backlog"
)

type Event struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Channel   Channel        `json:"channel"`
	UserID    *uuid.UUID     `json:"userId,omitempty"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

type EventHandler func(event Event) error

type EventBus struct {
	client   valkey.Client
	logger   logger.Logger
	config   config.Config
	handlers map[Channel][]EventHandler
	mutex    sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(client valkey.Client, config config.Config) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventBus{
		client:   client,
		logger:   logger.New("EventBus"),
		config:   config,
		handlers: make(map[Channel][]EventHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (eb *EventBus) Publish(channel Channel, event Event) error {
	log := eb.logger.Function("Publish")

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.Channel == "" {
		event.Channel = channel
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return log.Err("failed to marshal event", err, "eventID", event.ID)
	}

	ctx, cancel := context.WithTimeout(eb.ctx, 5*time.Second)
	defer cancel()

	err = eb.client.Do(ctx, eb.client.B().Publish().Channel(channel.String()).Message(string(eventData)).Build()).
		Error()
	if err != nil {
		return log.Err(
			"failed to publish event to valkey",
			err,
			"channel",
			channel,
			"eventID",
			event.ID,
		)
	}

	log.Info("Event published", "channel", channel, "eventID", event.ID, "eventType", event.Type)

	// Also notify local handlers
	eb.notifyLocalHandlers(channel, event)

	return nil
}

func (eb *EventBus) Subscribe(channel Channel, handler EventHandler) error {
	log := eb.logger.Function("Subscribe")

	eb.mutex.Lock()
	first := len(eb.handlers[channel]) == 0
	eb.handlers[channel] = append(eb.handlers[channel], handler)
	eb.mutex.Unlock()

	log.Info("Handler subscribed to channel", "channel", channel)

	// Start listening to this channel if it's the first handler
	if first {
		go eb.listenToChannel(channel)
	}

	return nil
}

func (eb *EventBus) notifyLocalHandlers(channel Channel, event Event) {
	log := eb.logger.Function("notifyLocalHandlers")

	eb.mutex.RLock()
	handlers, exists := eb.handlers[channel]
	eb.mutex.RUnlock()

	if !exists || len(handlers) == 0 {
		return
	}

	for i, handler := range handlers {
		go func(h EventHandler, handlerIndex int) {
			if err := h(event); err != nil {
				log.Er(
					"handler failed",
					err,
					"channel",
					channel,
					"eventID",
					event.ID,
					"handlerIndex",
					handlerIndex,
				)
			}
		}(handler, i)
	}
}

func (eb *EventBus) listenToChannel(channel Channel) {
	log := eb.logger.Function("listenToChannel")

	ctx, cancel := context.WithCancel(eb.ctx)
	defer cancel()

	log.Info("Starting to listen to channel", "channel", channel)

	err := eb.client.Receive(
		ctx,
		eb.client.B().Subscribe().Channel(channel.String()).Build(),
		func(msg valkey.PubSubMessage) {
			var event Event
			if err := json.Unmarshal([]byte(msg.Message), &event); err != nil {
				log.Er("failed to unmarshal event", err, "channel", channel, "message", msg.Message)
				return
			}

			log.Info(
				"Received event from valkey",
				"channel",
				channel,
				"eventID",
				event.ID,
				"eventType",
				event.Type,
			)
			eb.notifyLocalHandlers(channel, event)
		},
	)
	if err != nil {
		log.Er("failed to listen to channel", err, "channel", channel)
	}
}

func (eb *EventBus) Close() error {
	log := eb.logger.Function("Close")

	eb.cancel()

	log.Info("EventBus closed")
	return nil
}

// PublishSilentFailure fires alert rule (a): a set-list persisted with
// tracklist_count=0 and a non-null scrape_error.
func (eb *EventBus) PublishSilentFailure(setlistID uuid.UUID, source, scrapeError string) error {
	return eb.Publish(SILENT_FAILURE_CHANNEL, Event{
		Type: ALERT_SILENT_FAILURE,
		Data: map[string]any{
			"setlistId":   setlistID.String(),
			"source":      source,
			"scrapeError": scrapeError,
		},
	})
}

// PublishErrorRate fires alert rule (b): sustained per-source error rate
// above a configurable threshold.
func (eb *EventBus) PublishErrorRate(source string, rate float64, threshold float64) error {
	return eb.Publish(ERROR_RATE_CHANNEL, Event{
		Type: ALERT_ERROR_RATE,
		Data: map[string]any{
			"source":    source,
			"rate":      rate,
			"threshold": threshold,
		},
	})
}

// PublishCircuitBreakerOpen fires alert rule (c): a breaker open longer
// than a configurable window.
func (eb *EventBus) PublishCircuitBreakerOpen(name string, openSince time.Time) error {
	return eb.Publish(CIRCUIT_BREAKER_CHANNEL, Event{
		Type: ALERT_CIRCUIT_BREAKER,
		Data: map[string]any{
			"breaker":   name,
			"openSince": openSince,
		},
	})
}

// PublishCooldownBacklog fires alert rule (d): cool-down queue depth above
// a configurable threshold.
func (eb *EventBus) PublishCooldownBacklog(depth int, threshold int) error {
	return eb.Publish(COOLDOWN_BACKLOG_CHANNEL, Event{
		Type: ALERT_COOLDOWN_BACKLOG,
		Data: map[string]any{
			"depth":     depth,
			"threshold": threshold,
		},
	})
}
