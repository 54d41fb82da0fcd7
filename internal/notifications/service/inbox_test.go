package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	notificationserrors "uniparking/internal/notifications/errors"
	"uniparking/pkg/config"
	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/logger"
	"uniparking/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memInbox struct {
	mu        sync.Mutex
	items     []*model.Notification
	insertErr error
}

func (m *memInbox) Insert(_ context.Context, n *model.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	for _, existing := range m.items {
		if existing.EventID == n.EventID {
			return false, nil
		}
	}
	n.ID = primitive.NewObjectID()
	cp := *n
	m.items = append(m.items, &cp)
	return true, nil
}

func (m *memInbox) matching(userID int64, unreadOnly bool) []*model.Notification {
	var out []*model.Notification
	for _, n := range m.items {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memInbox) FindByUser(_ context.Context, userID int64, unreadOnly bool, limit int, offset int64) ([]*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(userID, unreadOnly)
	if offset >= int64(len(all)) {
		return []*model.Notification{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memInbox) CountByUser(_ context.Context, userID int64, unreadOnly bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(userID, unreadOnly))), nil
}

func (m *memInbox) MarkRead(_ context.Context, userID int64, id string, at time.Time) (*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notificationserrors.ErrInvalidID
	}
	for _, n := range m.items {
		if n.ID == oid && n.UserID == userID {
			n.Read = true
			if n.ReadAt == nil {
				n.ReadAt = &at
			}
			cp := *n
			return &cp, nil
		}
	}
	return nil, notificationserrors.ErrNotFound
}

type pushed struct {
	userID  int64
	msgType string
	data    any
}

type recordingPusher struct {
	mu   sync.Mutex
	sent []pushed
}

func (p *recordingPusher) SendToUser(userID int64, msgType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, pushed{userID, msgType, data})
	return nil
}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestInbox() (*inboxService, *memInbox, *recordingPusher) {
	repo := &memInbox{}
	pusher := &recordingPusher{}
	svc := NewInboxService(repo, pusher, &config.Config{Log: logger.Discard(), ReadTimeout: time.Second}).(*inboxService)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, pusher
}

func paidEvent(id string, userID int64) model.Event {
	return model.Event{
		ID:              id,
		Type:            model.EventReservationPaid,
		UserID:          userID,
		ReferenceNumber: "RES-20250310-ABC123",
		Amount:          "22.50",
		OccurredAt:      fixedNow,
	}
}

func TestDeliver_StoresAndPushes(t *testing.T) {
	svc, repo, pusher := newTestInbox()

	if err := svc.Deliver(context.Background(), paidEvent("evt-1", 7)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if len(repo.items) != 1 {
		t.Fatalf("stored %d notifications, want 1", len(repo.items))
	}
	n := repo.items[0]
	if n.UserID != 7 || n.Title != "Payment received" || n.Read {
		t.Errorf("stored notification = %+v", n)
	}
	if len(pusher.sent) != 1 || pusher.sent[0].userID != 7 || pusher.sent[0].msgType != "notification" {
		t.Errorf("pushed = %+v", pusher.sent)
	}
}

func TestDeliver_DuplicateEventIsSkipped(t *testing.T) {
	svc, repo, pusher := newTestInbox()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Deliver(ctx, paidEvent("evt-1", 7)); err != nil {
			t.Fatalf("Deliver() #%d error = %v", i, err)
		}
	}

	if len(repo.items) != 1 {
		t.Errorf("stored %d notifications, want 1", len(repo.items))
	}
	if len(pusher.sent) != 1 {
		t.Errorf("pushed %d times, want 1", len(pusher.sent))
	}
}

func TestDeliver_Errors(t *testing.T) {
	svc, repo, _ := newTestInbox()
	ctx := context.Background()

	unknown := paidEvent("evt-2", 7)
	unknown.Type = "space.painted"
	if err := svc.Deliver(ctx, unknown); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown type error = %v, want ErrUnknownEvent", err)
	}

	repo.insertErr = errors.New("server selection error")
	if err := svc.Deliver(ctx, paidEvent("evt-3", 7)); err == nil {
		t.Error("expected store error to propagate")
	}
}

func TestList_OnlyCallerInbox(t *testing.T) {
	svc, _, _ := newTestInbox()
	ctx := context.Background()

	for i, user := range []int64{7, 7, 8} {
		e := paidEvent(string(rune('a'+i)), user)
		e.OccurredAt = fixedNow.Add(time.Duration(i) * time.Minute)
		if err := svc.Deliver(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	items, total, err := svc.List(ctx, model.Actor{UserID: 7}, false, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("got %d items, total %d; want 2, 2", len(items), total)
	}
	if !items[0].CreatedAt.After(items[1].CreatedAt) {
		t.Error("expected newest first")
	}
}

func TestMarkRead(t *testing.T) {
	svc, repo, _ := newTestInbox()
	ctx := context.Background()
	if err := svc.Deliver(ctx, paidEvent("evt-1", 7)); err != nil {
		t.Fatal(err)
	}
	id := repo.items[0].ID.Hex()

	tests := []struct {
		name     string
		userID   int64
		id       string
		wantCode string
	}{
		{"owner", 7, id, ""},
		{"owner again", 7, id, ""},
		{"other user", 8, id, apperrors.CodeNotFound},
		{"malformed id", 7, "not-an-id", apperrors.CodeInvalidInput},
		{"unknown id", 7, primitive.NewObjectID().Hex(), apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := svc.MarkRead(ctx, model.Actor{UserID: tt.userID}, tt.id)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("MarkRead() error = %v", err)
				}
				if !n.Read || n.ReadAt == nil {
					t.Errorf("notification not marked read: %+v", n)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("MarkRead() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}

	unread, err := svc.UnreadCount(ctx, 7)
	if err != nil || unread != 0 {
		t.Errorf("UnreadCount() = %d, %v; want 0", unread, err)
	}
}
