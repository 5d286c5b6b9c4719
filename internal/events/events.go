package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ===============================
// EVENT INTERFACE
// ===============================

// Event represents a domain event.
type Event interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetUserID() *int64
	GetMetadata() map[string]any

	// IsSynthetic reports whether the event was produced as a side effect of
	// event processing itself. Synthetic events must never re-enter badge
	// evaluation; this flag is how the feedback loop is broken.
	IsSynthetic() bool
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    *int64         `json:"user_id,omitempty"`
	Synthetic bool           `json:"synthetic,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GetEventID returns the event ID
func (e *BaseEvent) GetEventID() string { return e.EventID }

// GetEventType returns the event type
func (e *BaseEvent) GetEventType() string { return e.EventType }

// GetTimestamp returns the event timestamp
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// GetUserID returns the user ID associated with the event
func (e *BaseEvent) GetUserID() *int64 { return e.UserID }

// GetMetadata returns the event metadata
func (e *BaseEvent) GetMetadata() map[string]any { return e.Metadata }

// IsSynthetic reports whether the event was produced by event processing.
func (e *BaseEvent) IsSynthetic() bool { return e.Synthetic }

// GenerateEventID returns a new unique event ID.
func GenerateEventID() string {
	id, err := uuid.NewV4()
	if err != nil {
		// NewV4 only fails when the entropy source does
		return fmt.Sprintf("evt-%d", time.Now().UnixNano())
	}
	return id.String()
}

// ===============================
// EVENT BUS
// ===============================

// EventHandler processes a single event.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	GetHandlerID() string
}

// EventHandlerFunc is a function type that implements EventHandler
type EventHandlerFunc struct {
	ID   string
	Func func(ctx context.Context, event Event) error
}

// Handle implements EventHandler
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Func(ctx, event)
}

// GetHandlerID implements EventHandler
func (f EventHandlerFunc) GetHandlerID() string {
	return f.ID
}

// EventBus defines the event publishing and subscription interface
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	PublishAsync(ctx context.Context, event Event) error
	Subscribe(eventType string, handler EventHandler) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() error
}

// EventBusConfig holds configuration for the event bus
type EventBusConfig struct {
	BufferSize     int           `json:"buffer_size"`
	WorkerCount    int           `json:"worker_count"`
	HandlerTimeout time.Duration `json:"handler_timeout"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		BufferSize:     1000,
		WorkerCount:    5,
		HandlerTimeout: 30 * time.Second,
	}
}

// ===============================
// IN-MEMORY EVENT BUS
// ===============================

type eventMessage struct {
	ctx   context.Context
	event Event
}

// inMemoryEventBus implements EventBus using in-memory channels
type inMemoryEventBus struct {
	mu         sync.RWMutex
	handlers   map[string][]EventHandler
	eventQueue chan eventMessage
	config     *EventBusConfig
	logger     *zap.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	if config == nil {
		config = DefaultEventBusConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryEventBus{
		handlers:   make(map[string][]EventHandler),
		eventQueue: make(chan eventMessage, config.BufferSize),
		config:     config,
		logger:     logger,
	}
}

// Publish publishes an event synchronously: all handlers run before it
// returns.
func (b *inMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	return b.processEvent(ctx, event)
}

// PublishAsync enqueues an event for the worker pool.
func (b *inMemoryEventBus) PublishAsync(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	select {
	case b.eventQueue <- eventMessage{ctx: ctx, event: event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("event queue is full")
	}
}

// Subscribe registers a handler for events of a specific type.
func (b *inMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("Handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// Start launches the async worker pool.
func (b *inMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("event bus already started")
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.worker(workerCtx)
	}
	b.started = true
	b.logger.Info("Event bus started", zap.Int("workers", b.config.WorkerCount))
	return nil
}

// Stop drains the workers and waits for in-flight handlers.
func (b *inMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = false
	cancel := b.cancel
	b.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for event workers: %w", ctx.Err())
	}
}

// Health reports whether the bus is running.
func (b *inMemoryEventBus) Health() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.started {
		return fmt.Errorf("event bus is not running")
	}
	return nil
}

func (b *inMemoryEventBus) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.eventQueue:
			if err := b.processEvent(msg.ctx, msg.event); err != nil {
				b.logger.Error("Async event processing failed",
					zap.String("event_id", msg.event.GetEventID()),
					zap.String("event_type", msg.event.GetEventType()),
					zap.Error(err),
				)
			}
		}
	}
}

func (b *inMemoryEventBus) processEvent(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers[event.GetEventType()]))
	copy(handlers, b.handlers[event.GetEventType()])
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		handlerCtx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
		err := handler.Handle(handlerCtx, event)
		cancel()
		if err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event_id", event.GetEventID()),
				zap.String("event_type", event.GetEventType()),
				zap.String("handler_id", handler.GetHandlerID()),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler %s: %w", handler.GetHandlerID(), err)
			}
		}
	}
	return firstErr
}
