package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"uniparking/pkg/kafka"
	"uniparking/pkg/logger"
	"uniparking/pkg/model"

	"github.com/google/uuid"
)

// Publisher hands events to the notification worker. Publish never blocks the
// caller and never fails the booking that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Sink is the transport the dispatcher drains into.
type Sink interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type Dispatcher struct {
	sink    Sink
	log     *logger.Logger
	source  string
	timeout time.Duration

	// mu guards closed. Publish holds the read lock across its send so Stop
	// cannot close events underneath it.
	mu     sync.RWMutex
	closed bool
	events chan model.Event
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(sink Sink, log *logger.Logger, source string, buffer int) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		log:     log,
		source:  source,
		timeout: 5 * time.Second,
		events:  make(chan model.Event, buffer),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) Publish(ctx context.Context, event model.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.For(ctx).Warn("Notification publisher stopped, dropping event",
			"event_id", event.ID,
			"event_type", event.Type,
			"reference_number", event.ReferenceNumber,
		)
		return
	}

	select {
	case d.events <- event:
	default:
		d.log.For(ctx).Warn("Notification buffer full, dropping event",
			"event_id", event.ID,
			"event_type", event.Type,
			"reference_number", event.ReferenceNumber,
		)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.events {
		d.send(event)
	}
}

func (d *Dispatcher) send(event model.Event) {
	msg, err := EncodeEvent(event, d.source)
	if err != nil {
		d.log.Error("Failed to encode event", "event_id", event.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Publish(ctx, msg); err != nil {
		d.log.Error("Failed to publish event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}
}

// Stop closes the buffer and waits until every queued event was sent.
// Events published afterwards are dropped.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// EncodeEvent keys the message by user so one user's events stay ordered.
func EncodeEvent(event model.Event, source string) (kafka.Message, error) {
	if event.UserID == 0 {
		return kafka.Message{}, fmt.Errorf("event %s has no user", event.ID)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	return kafka.NewMessage().
		WithKey(strconv.FormatInt(event.UserID, 10)).
		WithRawValue(value).
		WithEventID(event.ID).
		WithEventType(event.Type).
		WithSource(source).
		Build(), nil
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, model.Event) {}
