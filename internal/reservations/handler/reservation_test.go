package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/logger"
	"uniparking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockReservationService struct {
	payFunc     func(ctx context.Context, actor model.Actor, id int64, req *model.PaymentRequest) (*model.Reservation, error)
	decideFunc  func(ctx context.Context, actor model.Actor, id int64, d *model.AdminDecision) (*model.Reservation, error)
	listAllFunc func(ctx context.Context, actor model.Actor, status string, limit int, offset int64) ([]*model.Reservation, int64, error)
}

func (m *mockReservationService) Quote(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.ReservationQuote, error) {
	return &model.ReservationQuote{}, nil
}

func (m *mockReservationService) Create(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}

func (m *mockReservationService) ConfirmPayment(ctx context.Context, actor model.Actor, id int64, req *model.PaymentRequest) (*model.Reservation, error) {
	if m.payFunc != nil {
		return m.payFunc(ctx, actor, id, req)
	}
	return &model.Reservation{}, nil
}

func (m *mockReservationService) AdminDecide(ctx context.Context, actor model.Actor, id int64, d *model.AdminDecision) (*model.Reservation, error) {
	if m.decideFunc != nil {
		return m.decideFunc(ctx, actor, id, d)
	}
	return &model.Reservation{}, nil
}

func (m *mockReservationService) Cancel(ctx context.Context, actor model.Actor, id int64, req *model.CancelRequest) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}

func (m *mockReservationService) GetByID(ctx context.Context, actor model.Actor, id int64) (*model.Reservation, error) {
	return &model.Reservation{ID: id}, nil
}

func (m *mockReservationService) ListForUser(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return []*model.Reservation{}, 0, nil
}

func (m *mockReservationService) ListAll(ctx context.Context, actor model.Actor, status string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc(ctx, actor, status, limit, offset)
	}
	return []*model.Reservation{}, 0, nil
}

func serve(svc *mockReservationService, req *http.Request) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewReservationHandler(svc, logger.Discard()).RegisterRoutes(router)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func as(r *http.Request, actor model.Actor) *http.Request {
	return r.WithContext(model.WithActor(r.Context(), actor))
}

func TestPay(t *testing.T) {
	driver := model.Actor{UserID: 7, Role: model.RoleUser}

	tests := []struct {
		name       string
		path       string
		serviceErr error
		wantStatus int
		wantID     int64
	}{
		{"paid", "/api/v1/reservations/id/12/payment", nil, http.StatusOK, 12},
		{"bad card", "/api/v1/reservations/id/12/payment", apperrors.InvalidPaymentDetails(map[string]any{"card_number": "invalid"}), http.StatusPaymentRequired, 12},
		{"non numeric id", "/api/v1/reservations/id/abc/payment", nil, http.StatusBadRequest, 0},
		{"zero id", "/api/v1/reservations/id/0/payment", nil, http.StatusBadRequest, 0},
		{"not found", "/api/v1/reservations/id/99/payment", apperrors.NotFound("Reservation"), http.StatusNotFound, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64
			svc := &mockReservationService{
				payFunc: func(ctx context.Context, actor model.Actor, id int64, req *model.PaymentRequest) (*model.Reservation, error) {
					gotID = id
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.Reservation{ID: id, PaymentStatus: model.PaymentPaid}, nil
				},
			}

			body := `{"card":{"card_number":"4111111111111111","expiry":"12/27","cvv":"123"}}`
			req := as(httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(body)), driver)
			w := serve(svc, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if gotID != tt.wantID {
				t.Errorf("service received id %d, want %d", gotID, tt.wantID)
			}
		})
	}
}

func TestDecide_PassesDecision(t *testing.T) {
	var got model.AdminDecision
	svc := &mockReservationService{
		decideFunc: func(ctx context.Context, actor model.Actor, id int64, d *model.AdminDecision) (*model.Reservation, error) {
			got = *d
			return &model.Reservation{ID: id, Status: model.ReservationRejected}, nil
		},
	}

	body := `{"decision":"reject","reason":"Event day"}`
	req := as(httptest.NewRequest(http.MethodPost, "/api/v1/admin/reservations/4/decision", strings.NewReader(body)),
		model.Actor{UserID: 1, Role: model.RoleAdmin})
	w := serve(svc, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got.Decision != model.DecisionReject || got.Reason != "Event day" {
		t.Errorf("unexpected decision %+v", got)
	}
}

func TestListAll_StatusFilter(t *testing.T) {
	var gotStatus string
	svc := &mockReservationService{
		listAllFunc: func(ctx context.Context, actor model.Actor, status string, limit int, offset int64) ([]*model.Reservation, int64, error) {
			gotStatus = status
			return []*model.Reservation{}, 0, nil
		},
	}

	req := as(httptest.NewRequest(http.MethodGet, "/api/v1/admin/reservations?status=pending", nil),
		model.Actor{UserID: 1, Role: model.RoleAdmin})
	w := serve(svc, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if gotStatus != "pending" {
		t.Errorf("status filter = %q, want pending", gotStatus)
	}
}

func TestRoutes_RequireActor(t *testing.T) {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/reservations/quote"},
		{http.MethodPost, "/api/v1/reservations"},
		{http.MethodGet, "/api/v1/reservations"},
		{http.MethodGet, "/api/v1/reservations/id/1"},
		{http.MethodPost, "/api/v1/reservations/id/1/cancel"},
		{http.MethodGet, "/api/v1/admin/reservations"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := serve(&mockReservationService{}, httptest.NewRequest(p.method, p.path, strings.NewReader(`{}`)))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})
	}
}
