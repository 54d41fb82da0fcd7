package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	notificationserrors "uniparking/internal/notifications/errors"
	"uniparking/internal/notifications/repository"
	"uniparking/internal/notifications/ws"
	"uniparking/pkg/config"
	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/model"
)

var ErrUnknownEvent = errors.New("unknown event type")

type InboxService interface {
	// Deliver stores the event in the owner's inbox and pushes it to their
	// open connections. A redelivered event is stored and pushed once.
	Deliver(ctx context.Context, event model.Event) error
	List(ctx context.Context, actor model.Actor, unreadOnly bool, limit int, offset int64) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, actor model.Actor, id string) (*model.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
}

// Pusher is implemented by *ws.Hub.
type Pusher interface {
	SendToUser(userID int64, msgType string, data any) error
}

type inboxService struct {
	repo   repository.InboxRepository
	pusher Pusher
	cfg    *config.Config
	now    func() time.Time
}

func NewInboxService(repo repository.InboxRepository, pusher Pusher, cfg *config.Config) InboxService {
	return &inboxService{
		repo:   repo,
		pusher: pusher,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *inboxService) Deliver(ctx context.Context, event model.Event) error {
	if event.ID == "" || event.UserID == 0 {
		return fmt.Errorf("event is missing id or user")
	}
	title, body, ok := Render(event)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event.Type)
	}

	createdAt := event.OccurredAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	n := &model.Notification{
		EventID:         event.ID,
		UserID:          event.UserID,
		Type:            event.Type,
		ReferenceNumber: event.ReferenceNumber,
		Title:           title,
		Body:            body,
		CreatedAt:       createdAt,
	}

	inserted, err := s.repo.Insert(ctx, n)
	if err != nil {
		return err
	}
	if !inserted {
		s.cfg.Log.For(ctx).Info("Duplicate event skipped", "event_id", event.ID, "event_type", event.Type)
		return nil
	}

	if err := s.pusher.SendToUser(n.UserID, ws.MsgTypeNotification, n); err != nil {
		s.cfg.Log.For(ctx).Warn("Failed to push notification", "event_id", event.ID, "user_id", n.UserID, "error", err)
	}
	return nil
}

func (s *inboxService) List(ctx context.Context, actor model.Actor, unreadOnly bool, limit int, offset int64) ([]*model.Notification, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var items []*model.Notification
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByUser(ctx, actor.UserID, unreadOnly)
		if err != nil {
			s.cfg.Log.Error("Failed to count notifications", "user_id", actor.UserID, "error", err)
			errCount = apperrors.Internal("Failed to count notifications", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		items, err = s.repo.FindByUser(ctx, actor.UserID, unreadOnly, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list notifications", "user_id", actor.UserID, "error", err)
			errFind = apperrors.Internal("Failed to retrieve notifications", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return items, count, nil
}

func (s *inboxService) MarkRead(ctx context.Context, actor model.Actor, id string) (*model.Notification, error) {
	n, err := s.repo.MarkRead(ctx, actor.UserID, id, s.now())
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, notificationserrors.ErrInvalidID):
		return nil, apperrors.InvalidInput("invalid notification id: " + id)
	case errors.Is(err, notificationserrors.ErrNotFound):
		return nil, apperrors.NotFoundWithID("Notification", id)
	default:
		s.cfg.Log.For(ctx).Error("Failed to mark notification read", "user_id", actor.UserID, "id", id, "error", err)
		return nil, apperrors.Internal("Failed to mark notification read", err)
	}
}

func (s *inboxService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountByUser(ctx, userID, true)
}
