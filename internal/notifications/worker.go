package notifications

import (
	"context"
	"errors"
	"fmt"

	"uniparking/internal/notifications/service"
	"uniparking/pkg/kafka"
	"uniparking/pkg/model"
)

// Deliverer is implemented by the inbox service.
type Deliverer interface {
	Deliver(ctx context.Context, event model.Event) error
}

// Worker turns event messages into inbox entries. It is the kafka.MessageHandler
// of cmd/notifier.
type Worker struct {
	inbox Deliverer
}

func NewWorker(inbox Deliverer) *Worker {
	return &Worker{inbox: inbox}
}

// Handle classifies failures for the consumer: a payload that cannot be
// decoded or rendered is permanent, a store failure is retried.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) error {
	event, err := DecodeEvent(msg)
	if err != nil {
		return kafka.NewPermanentError("decode event", err)
	}

	if err := w.inbox.Deliver(ctx, event); err != nil {
		if errors.Is(err, service.ErrUnknownEvent) {
			return kafka.NewPermanentError("render event", err)
		}
		if ctx.Err() != nil {
			return err
		}
		return kafka.NewTransientError("deliver event", err)
	}
	return nil
}

// DecodeEvent reads an event written by EncodeEvent. The event-id header wins
// over a missing id in the body.
func DecodeEvent(msg kafka.Message) (model.Event, error) {
	var event model.Event
	if err := msg.DecodeValue(&event); err != nil {
		return model.Event{}, err
	}
	if event.ID == "" {
		event.ID = msg.GetEventID()
	}
	if event.ID == "" || event.UserID == 0 || event.Type == "" {
		return model.Event{}, fmt.Errorf("event missing id, user or type")
	}
	return event, nil
}
