package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"uniparking/internal/allocator"
	"uniparking/internal/directory"
	"uniparking/internal/payments"
	"uniparking/internal/pricing"
	sessionserrors "uniparking/internal/sessions/errors"
	"uniparking/internal/sessions/validator"
	"uniparking/pkg/config"
	"uniparking/pkg/db/postgres"
	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/logger"
	"uniparking/pkg/model"
	"uniparking/pkg/validation"

	"github.com/shopspring/decimal"
)

// ────────────────────────────────────────────────
// In-memory repository
// ────────────────────────────────────────────────

type memSessionRepository struct {
	mu                 sync.Mutex
	sessions           map[string]*model.Session
	nextID             int64
	currentReservation bool
	createCalls        int
}

func newMemRepo() *memSessionRepository {
	return &memSessionRepository{sessions: make(map[string]*model.Session)}
}

func (m *memSessionRepository) add(s *model.Session) {
	m.nextID++
	s.ID = m.nextID
	m.sessions[s.ReferenceNumber] = s
}

func (m *memSessionRepository) Create(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.add(s)
	return nil
}

func (m *memSessionRepository) FindOpenByReference(ctx context.Context, ref string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ref]
	if !ok || !s.Open() {
		return nil, sessionserrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepository) FindOpenByUser(ctx context.Context, userID int64) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.Open() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sessionserrors.ErrNotFound
}

func (m *memSessionRepository) HasOpenSession(ctx context.Context, userID int64, vehicleIDs []int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if !s.Open() {
			continue
		}
		if s.UserID == userID {
			return true, nil
		}
		for _, v := range vehicleIDs {
			if s.VehicleID == v {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memSessionRepository) HasCurrentReservation(ctx context.Context, userID int64, vehicleIDs []int64, now time.Time) (bool, error) {
	return m.currentReservation, nil
}

func (m *memSessionRepository) Extend(ctx context.Context, ref string, hours int, cost decimal.Decimal) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ref]
	if !ok || !s.Open() {
		return nil, sessionserrors.ErrNotFound
	}
	s.DurationHours += hours
	s.AmountPaid = s.AmountPaid.Add(cost)
	cp := *s
	return &cp, nil
}

func (m *memSessionRepository) End(ctx context.Context, ref string, userID int64, at time.Time) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ref]
	if !ok || !s.Open() || (userID != 0 && s.UserID != userID) {
		return nil, sessionserrors.ErrNotFound
	}
	s.TimeOut = &at
	cp := *s
	return &cp, nil
}

func (m *memSessionRepository) CloseElapsed(ctx context.Context, now time.Time) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var closed []*model.Session
	for _, s := range m.sessions {
		if s.Open() && !s.EffectiveEnd().After(now) {
			end := s.EffectiveEnd()
			s.TimeOut = &end
			cp := *s
			closed = append(closed, &cp)
		}
	}
	return closed, nil
}

func (m *memSessionRepository) History(ctx context.Context, userID int64, limit int, offset int64) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Session{}
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessionRepository) CountHistory(ctx context.Context, userID int64) (int64, error) {
	list, _ := m.History(ctx, userID, 0, 0)
	return int64(len(list)), nil
}

func (m *memSessionRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return fn(ctx)
}

// ────────────────────────────────────────────────
// Collaborator mocks
// ────────────────────────────────────────────────

type mockAllocator struct {
	allocateNowFunc func(ctx context.Context, locationID int64, hours int, needsDisabled bool) (*allocator.Assignment, error)
	spaceFreeFunc   func(ctx context.Context, req allocator.Request, spaceID int64) (bool, error)
	allocateCalls   int
}

func (m *mockAllocator) AllocateNow(ctx context.Context, locationID int64, hours int, needsDisabled bool) (*allocator.Assignment, error) {
	m.allocateCalls++
	if m.allocateNowFunc != nil {
		return m.allocateNowFunc(ctx, locationID, hours, needsDisabled)
	}
	return &allocator.Assignment{
		SpaceID:     100,
		SpaceNumber: 1,
		Location:    &model.Location{ID: locationID, Name: "North Lot", HourlyRate: decimal.RequireFromString("2.50"), Status: model.LocationOpen},
	}, nil
}

func (m *mockAllocator) SpaceFree(ctx context.Context, req allocator.Request, spaceID int64) (bool, error) {
	if m.spaceFreeFunc != nil {
		return m.spaceFreeFunc(ctx, req, spaceID)
	}
	return true, nil
}

type mockDirectory struct {
	owners map[int64]int64
}

func (m *mockDirectory) VehicleOwner(ctx context.Context, vehicleID int64) (int64, error) {
	owner, ok := m.owners[vehicleID]
	if !ok {
		return 0, directory.ErrVehicleNotFound
	}
	return owner, nil
}

func (m *mockDirectory) VehicleIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for v, u := range m.owners {
		if u == userID {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

var (
	now       = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	driver    = model.Actor{UserID: 1, Role: model.RoleUser}
	other     = model.Actor{UserID: 2, Role: model.RoleUser}
	validCard = model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: "123"}
	badCard   = model.Card{Number: "4111111111111112", Expiry: "12/27", CVV: "123"}
)

type fixture struct {
	svc       *sessionService
	repo      *memSessionRepository
	alloc     *mockAllocator
	publisher *recordingPublisher
}

func newFixture() *fixture {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		Log:               log,
		ReadTimeout:       5 * time.Second,
		MaxSessionHours:   24,
		MaxExtensionHours: 24,
	}
	v := validation.New(log)

	f := &fixture{
		repo:      newMemRepo(),
		alloc:     &mockAllocator{},
		publisher: &recordingPublisher{},
	}
	svc := NewSessionService(
		f.repo,
		validator.NewSessionValidator(v, cfg.MaxSessionHours, cfg.MaxExtensionHours),
		f.alloc,
		pricing.NewCalculator(),
		payments.NewGate(v, log),
		&mockDirectory{owners: map[int64]int64{10: 1, 11: 1, 20: 2}},
		f.publisher,
		cfg,
	).(*sessionService)
	svc.now = func() time.Time { return now }
	f.svc = svc
	return f
}

func (f *fixture) openSession(ref string, userID int64, rate string, hours int) *model.Session {
	s := &model.Session{
		UserID:          userID,
		VehicleID:       10,
		LocationID:      3,
		SpaceID:         100,
		SpaceNumber:     1,
		TimeIn:          now.Add(-30 * time.Minute),
		DurationHours:   hours,
		HourlyRate:      decimal.RequireFromString(rate),
		AmountPaid:      decimal.RequireFromString(rate).Mul(decimal.NewFromInt(int64(hours))),
		ReferenceNumber: ref,
		PaymentStatus:   model.PaymentPaid,
	}
	f.repo.add(s)
	return s
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

// ────────────────────────────────────────────────
// Start
// ────────────────────────────────────────────────

func TestStart_OpensSession(t *testing.T) {
	f := newFixture()

	s, err := f.svc.Start(context.Background(), driver, &model.SessionStart{
		VehicleID:     10,
		LocationID:    3,
		DurationHours: 2,
		AmountPaid:    decimal.RequireFromString("5.00"),
		Card:          validCard,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.TimeOut != nil {
		t.Errorf("new session must be open")
	}
	if !s.TimeIn.Equal(now) {
		t.Errorf("time_in = %v, want %v", s.TimeIn, now)
	}
	if s.SpaceNumber != 1 || s.PaymentStatus != model.PaymentPaid {
		t.Errorf("unexpected session %+v", s)
	}
	if len(s.ReferenceNumber) != len("PARK-")+8 {
		t.Errorf("unexpected reference %q", s.ReferenceNumber)
	}
	if got := f.publisher.types(); len(got) != 1 || got[0] != model.EventSessionStarted {
		t.Errorf("expected one session.started event, got %v", got)
	}
}

func TestStart_SingleActiveSession(t *testing.T) {
	f := newFixture()
	f.openSession("PARK-00000001", 1, "2.50", 2)

	_, err := f.svc.Start(context.Background(), driver, &model.SessionStart{
		VehicleID:     11,
		LocationID:    3,
		DurationHours: 1,
		AmountPaid:    decimal.RequireFromString("2.50"),
		Card:          validCard,
	})
	expectCode(t, err, apperrors.CodeActiveSessionExists)

	if f.alloc.allocateCalls != 0 {
		t.Errorf("allocator should not run when the gate fails")
	}
	if f.repo.createCalls != 0 {
		t.Errorf("no session should be created")
	}
}

func TestStart_BlockedByCurrentReservation(t *testing.T) {
	f := newFixture()
	f.repo.currentReservation = true

	_, err := f.svc.Start(context.Background(), driver, &model.SessionStart{
		VehicleID: 10, LocationID: 3, DurationHours: 1,
		AmountPaid: decimal.RequireFromString("2.50"), Card: validCard,
	})
	expectCode(t, err, apperrors.CodeActiveSessionExists)
}

func TestStart_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		actor    model.Actor
		req      model.SessionStart
		wantCode string
	}{
		{
			name:     "amount does not match price",
			actor:    driver,
			req:      model.SessionStart{VehicleID: 10, LocationID: 3, DurationHours: 2, AmountPaid: decimal.RequireFromString("4.00"), Card: validCard},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "invalid card",
			actor:    driver,
			req:      model.SessionStart{VehicleID: 10, LocationID: 3, DurationHours: 2, AmountPaid: decimal.RequireFromString("5.00"), Card: badCard},
			wantCode: apperrors.CodeInvalidPaymentDetails,
		},
		{
			name:     "vehicle of another user",
			actor:    other,
			req:      model.SessionStart{VehicleID: 10, LocationID: 3, DurationHours: 2, AmountPaid: decimal.RequireFromString("5.00"), Card: validCard},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:     "duration above cap",
			actor:    driver,
			req:      model.SessionStart{VehicleID: 10, LocationID: 3, DurationHours: 25, Card: validCard},
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Start(context.Background(), tt.actor, &tt.req)
			expectCode(t, err, tt.wantCode)
			if f.repo.createCalls != 0 {
				t.Errorf("no session should be created")
			}
		})
	}
}

func TestStart_PropagatesAllocatorErrors(t *testing.T) {
	f := newFixture()
	f.alloc.allocateNowFunc = func(ctx context.Context, locationID int64, hours int, needsDisabled bool) (*allocator.Assignment, error) {
		return nil, apperrors.NoSpaceAvailable(locationID, needsDisabled)
	}

	_, err := f.svc.Start(context.Background(), driver, &model.SessionStart{
		VehicleID: 10, LocationID: 3, DurationHours: 1,
		AmountPaid: decimal.RequireFromString("2.50"), Card: validCard,
	})
	expectCode(t, err, apperrors.CodeNoSpaceAvailable)
}

// ────────────────────────────────────────────────
// Extend
// ────────────────────────────────────────────────

func TestExtend_AddsHoursAndCostInPlace(t *testing.T) {
	f := newFixture()
	before := f.openSession("PARK-0000000A", 1, "3.00", 2)
	timeIn := before.TimeIn
	paid := before.AmountPaid

	got, err := f.svc.Extend(context.Background(), driver, "park-0000000a", &model.SessionExtend{
		AdditionalHours: 2,
		Card:            validCard,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.AmountPaid.Sub(paid).Equal(decimal.RequireFromString("6.00")) {
		t.Errorf("amount increased by %s, want 6.00", got.AmountPaid.Sub(paid))
	}
	if got.DurationHours != 4 {
		t.Errorf("duration = %d, want 4", got.DurationHours)
	}
	if !got.TimeIn.Equal(timeIn) {
		t.Errorf("time_in changed from %v to %v", timeIn, got.TimeIn)
	}
	if got.TimeOut != nil {
		t.Errorf("time_out must stay null")
	}
	if !got.EffectiveEnd().Equal(timeIn.Add(4 * time.Hour)) {
		t.Errorf("effective end = %v, want %v", got.EffectiveEnd(), timeIn.Add(4*time.Hour))
	}
}

func TestExtend_InvalidCardLeavesSessionUntouched(t *testing.T) {
	f := newFixture()
	before := f.openSession("PARK-0000000B", 1, "3.00", 2)

	_, err := f.svc.Extend(context.Background(), driver, before.ReferenceNumber, &model.SessionExtend{
		AdditionalHours: 2,
		Card:            badCard,
	})
	expectCode(t, err, apperrors.CodeInvalidPaymentDetails)

	after, _ := f.repo.FindOpenByReference(context.Background(), before.ReferenceNumber)
	if after.DurationHours != 2 || !after.AmountPaid.Equal(decimal.RequireFromString("6.00")) {
		t.Errorf("session changed after rejected card: %+v", after)
	}
}

func TestExtend_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		actor     model.Actor
		ref       string
		spaceFree bool
		wantCode  string
	}{
		{"unknown reference", driver, "PARK-FFFFFFFF", true, apperrors.CodeNotFound},
		{"someone else's session", other, "PARK-0000000C", true, apperrors.CodeForbidden},
		{"space booked right after", driver, "PARK-0000000C", false, apperrors.CodeNoSpaceAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.openSession("PARK-0000000C", 1, "3.00", 2)
			f.alloc.spaceFreeFunc = func(ctx context.Context, req allocator.Request, spaceID int64) (bool, error) {
				if req.ExcludeSessionID == 0 {
					t.Errorf("extension must exclude the session itself")
				}
				return tt.spaceFree, nil
			}

			_, err := f.svc.Extend(context.Background(), tt.actor, tt.ref, &model.SessionExtend{AdditionalHours: 1, Card: validCard})
			expectCode(t, err, tt.wantCode)
		})
	}
}

// ────────────────────────────────────────────────
// End
// ────────────────────────────────────────────────

func TestEnd_IsIdempotent(t *testing.T) {
	f := newFixture()
	f.openSession("PARK-0000000D", 1, "2.50", 2)

	first, err := f.svc.End(context.Background(), driver, "PARK-0000000D")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TimeOut == nil || !first.TimeOut.Equal(now) {
		t.Fatalf("time_out = %v, want %v", first.TimeOut, now)
	}

	f.svc.now = func() time.Time { return now.Add(time.Hour) }
	_, err = f.svc.End(context.Background(), driver, "PARK-0000000D")
	expectCode(t, err, apperrors.CodeNotFound)

	stored := f.repo.sessions["PARK-0000000D"]
	if !stored.TimeOut.Equal(now) {
		t.Errorf("second end changed time_out to %v", stored.TimeOut)
	}
	if got := f.publisher.types(); len(got) != 1 {
		t.Errorf("expected exactly one session.ended event, got %v", got)
	}
}

func TestEnd_OnlyOwnerOrAdmin(t *testing.T) {
	f := newFixture()
	f.openSession("PARK-0000000E", 1, "2.50", 2)

	_, err := f.svc.End(context.Background(), other, "PARK-0000000E")
	expectCode(t, err, apperrors.CodeNotFound)

	admin := model.Actor{UserID: 99, Role: model.RoleAdmin}
	if _, err := f.svc.End(context.Background(), admin, "PARK-0000000E"); err != nil {
		t.Fatalf("admin should be able to end any session: %v", err)
	}
}

// ────────────────────────────────────────────────
// Reads and sweeping
// ────────────────────────────────────────────────

func TestActive_ReportsRemainingTime(t *testing.T) {
	f := newFixture()
	f.openSession("PARK-0000000F", 1, "2.50", 2)

	view, err := f.svc.Active(context.Background(), driver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.RemainingSeconds != int64((90 * time.Minute).Seconds()) {
		t.Errorf("remaining = %d, want 5400", view.RemainingSeconds)
	}

	_, err = f.svc.Active(context.Background(), other)
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestHistory_ConcurrentAccess(t *testing.T) {
	f := newFixture()
	f.openSession("PARK-00000010", 1, "2.50", 2)
	f.openSession("PARK-00000011", 2, "2.50", 2)

	for i := 0; i < 10; i++ {
		sessions, count, err := f.svc.History(context.Background(), driver, 10, 0)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if count != 1 || len(sessions) != 1 {
			t.Errorf("iteration %d: expected 1 session, got %d (count %d)", i, len(sessions), count)
		}
	}
}

func TestCloseElapsed(t *testing.T) {
	f := newFixture()
	overdue := f.openSession("PARK-00000012", 1, "2.50", 1)
	overdue.TimeIn = now.Add(-2 * time.Hour)
	f.openSession("PARK-00000013", 2, "2.50", 3)

	closed, err := f.svc.CloseElapsed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed = %d, want 1", closed)
	}
	if got := f.repo.sessions["PARK-00000012"].TimeOut; got == nil || !got.Equal(now.Add(-time.Hour)) {
		t.Errorf("time_out should be the paid-for end, got %v", got)
	}
	if f.repo.sessions["PARK-00000013"].TimeOut != nil {
		t.Errorf("running session should stay open")
	}
}
