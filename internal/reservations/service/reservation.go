package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"uniparking/internal/allocator"
	"uniparking/internal/directory"
	"uniparking/internal/notifications"
	"uniparking/internal/pricing"
	reservationserrors "uniparking/internal/reservations/errors"
	"uniparking/internal/reservations/repository"
	"uniparking/internal/reservations/validator"
	"uniparking/pkg/config"
	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/model"
	"uniparking/pkg/reference"
	"uniparking/pkg/validation"
)

type ReservationService interface {
	Quote(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.ReservationQuote, error)
	Create(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.Reservation, error)
	ConfirmPayment(ctx context.Context, actor model.Actor, id int64, req *model.PaymentRequest) (*model.Reservation, error)
	AdminDecide(ctx context.Context, actor model.Actor, id int64, decision *model.AdminDecision) (*model.Reservation, error)
	Cancel(ctx context.Context, actor model.Actor, id int64, req *model.CancelRequest) (*model.Reservation, error)
	GetByID(ctx context.Context, actor model.Actor, id int64) (*model.Reservation, error)
	ListForUser(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Reservation, int64, error)
	ListAll(ctx context.Context, actor model.Actor, status string, limit int, offset int64) ([]*model.Reservation, int64, error)
}

type SpaceAllocator interface {
	Allocate(ctx context.Context, req allocator.Request) (*allocator.Assignment, error)
}

type CardChecker interface {
	Check(card *model.Card) error
}

// ActiveSessionChecker is satisfied by the session service.
type ActiveSessionChecker interface {
	HasActiveSession(ctx context.Context, userID int64) (bool, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	validator *validator.ReservationValidator
	allocator SpaceAllocator
	pricing   *pricing.Calculator
	cards     CardChecker
	directory directory.Directory
	sessions  ActiveSessionChecker
	publisher notifications.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	validator *validator.ReservationValidator,
	allocator SpaceAllocator,
	calculator *pricing.Calculator,
	cards CardChecker,
	dir directory.Directory,
	sessions ActiveSessionChecker,
	publisher notifications.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		validator: validator,
		allocator: allocator,
		pricing:   calculator,
		cards:     cards,
		directory: dir,
		sessions:  sessions,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *reservationService) Quote(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.ReservationQuote, error) {
	if err := s.validator.ValidateRequest(req, s.now()); err != nil {
		return nil, validation.ToAppError("Reservation validation failed", err)
	}

	assignment, err := s.allocator.Allocate(ctx, allocator.Request{
		LocationID:    req.LocationID,
		Window:        req.Window(),
		NeedsDisabled: req.NeedsDisabled,
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to check availability", err, "user_id", actor.UserID, "location_id", req.LocationID)
	}

	q, err := s.pricing.Quote(assignment.Location.HourlyRate, req.DurationHours)
	if err != nil {
		return nil, apperrors.Validation("Cannot price reservation", map[string]any{"error": err.Error()})
	}

	window := req.Window()
	return &model.ReservationQuote{
		LocationID:    assignment.Location.ID,
		SpaceNumber:   assignment.SpaceNumber,
		StartTime:     window.Start,
		EndTime:       window.End,
		DurationHours: req.DurationHours,
		HourlyRate:    q.HourlyRate,
		BaseAmount:    q.Base,
		DiscountRate:  q.DiscountRate,
		Discount:      q.Discount,
		Total:         q.Total,
	}, nil
}

// Create books a space for a future window. The reservation starts pending
// and unpaid and holds its space until the hold expires.
func (s *reservationService) Create(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.Reservation, error) {
	log := s.cfg.Log.For(ctx)
	now := s.now()

	if err := s.validator.ValidateRequest(req, now); err != nil {
		log.Warn("Reservation validation failed", "user_id", actor.UserID, "error", err)
		return nil, validation.ToAppError("Reservation validation failed", err)
	}
	if err := s.requireVehicle(ctx, actor, req.VehicleID); err != nil {
		return nil, err
	}

	var reservation *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		active, err := s.sessions.HasActiveSession(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if active {
			return apperrors.ActiveSessionExists(actor.UserID)
		}

		window := req.Window()
		assignment, err := s.allocator.Allocate(ctx, allocator.Request{
			LocationID:    req.LocationID,
			Window:        window,
			NeedsDisabled: req.NeedsDisabled,
		})
		if err != nil {
			return err
		}

		price, err := s.pricing.Price(assignment.Location.HourlyRate, req.DurationHours)
		if err != nil {
			return apperrors.Validation("Cannot price reservation", map[string]any{"error": err.Error()})
		}

		reservation = &model.Reservation{
			UserID:          actor.UserID,
			VehicleID:       req.VehicleID,
			LocationID:      assignment.Location.ID,
			StartTime:       window.Start,
			EndTime:         window.End,
			DurationHours:   req.DurationHours,
			AmountPaid:      price,
			ReferenceNumber: reference.New(reference.PrefixReservation),
			PaymentStatus:   model.PaymentUnpaid,
			Status:          model.ReservationPending,
			NeedsDisabled:   req.NeedsDisabled,
			CreatedAt:       now,
		}
		reservation.AssignSpace(assignment.SpaceID, assignment.SpaceNumber)
		if s.cfg.ReservationHoldTTL > 0 {
			hold := now.Add(s.cfg.ReservationHoldTTL)
			reservation.HoldExpiresAt = &hold
		}
		return s.repo.Create(ctx, reservation)
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to create reservation", err, "user_id", actor.UserID, "location_id", req.LocationID)
	}

	log.Info("Reservation created",
		"reservation_id", reservation.ID,
		"reference_number", reservation.ReferenceNumber,
		"user_id", reservation.UserID,
		"location_id", reservation.LocationID,
		"space_number", *reservation.SpaceNumber,
		"amount", reservation.AmountPaid.StringFixed(2),
	)
	s.publish(ctx, model.EventReservationCreated, reservation)

	return reservation, nil
}

// ConfirmPayment marks an unpaid reservation paid. The space is re-checked
// under the payment transaction; when another paid booking took it the
// reservation moves to the lowest free space for the same window.
func (s *reservationService) ConfirmPayment(ctx context.Context, actor model.Actor, id int64, req *model.PaymentRequest) (*model.Reservation, error) {
	if err := s.cards.Check(&req.Card); err != nil {
		return nil, err
	}

	var reservation *model.Reservation
	var previousSpace int64
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.UserID != actor.UserID {
			return apperrors.Forbidden("Reservation belongs to another user")
		}
		if r.IsPaid() {
			return apperrors.InvalidTransition("reservation", string(model.PaymentPaid), EventPay)
		}
		if _, err := transition(ctx, r.Status, EventPay); err != nil {
			return err
		}

		now := s.now()
		if !r.EndTime.After(now) {
			return apperrors.InvalidTransition("reservation", "expired", EventPay)
		}

		if r.SpaceID != nil {
			previousSpace = *r.SpaceID
		}
		assignment, err := s.allocator.Allocate(ctx, allocator.Request{
			LocationID:           r.LocationID,
			Window:               r.Window(),
			NeedsDisabled:        r.NeedsDisabled,
			PreferSpaceID:        previousSpace,
			ExcludeReservationID: r.ID,
		})
		if err != nil {
			return err
		}

		r.AssignSpace(assignment.SpaceID, assignment.SpaceNumber)
		r.PaymentStatus = model.PaymentPaid
		r.HoldExpiresAt = nil
		r.UpdatedAt = now
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to confirm payment", err, "reservation_id", id, "user_id", actor.UserID)
	}

	log := s.cfg.Log.For(ctx)
	if previousSpace != 0 && previousSpace != *reservation.SpaceID {
		log.Warn("Reservation moved to another space at payment",
			"reservation_id", reservation.ID,
			"previous_space_id", previousSpace,
			"space_number", *reservation.SpaceNumber,
		)
	}
	log.Info("Reservation paid",
		"reservation_id", reservation.ID,
		"reference_number", reservation.ReferenceNumber,
		"amount", reservation.AmountPaid.StringFixed(2),
		"card_last4", req.Card.Last4(),
	)
	s.publish(ctx, model.EventReservationPaid, reservation)

	return reservation, nil
}

func (s *reservationService) AdminDecide(ctx context.Context, actor model.Actor, id int64, decision *model.AdminDecision) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only administrators can decide reservations")
	}
	if err := s.validator.ValidateDecision(decision); err != nil {
		return nil, validation.ToAppError("Decision validation failed", err)
	}

	event := EventConfirm
	if decision.Decision == model.DecisionReject {
		event = EventReject
	}

	var reservation *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := transition(ctx, r.Status, event)
		if err != nil {
			return err
		}

		r.Status = next
		if next == model.ReservationRejected {
			r.RejectionReason = decision.Reason
		}
		adminID := actor.UserID
		r.ProcessedBy = &adminID
		r.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to decide reservation", err, "reservation_id", id, "admin_id", actor.UserID)
	}

	s.cfg.Log.For(ctx).Info("Reservation decided",
		"reservation_id", reservation.ID,
		"decision", decision.Decision,
		"admin_id", actor.UserID,
	)
	eventType := model.EventReservationConfirmed
	if reservation.Status == model.ReservationRejected {
		eventType = model.EventReservationRejected
	}
	s.publish(ctx, eventType, reservation)

	return reservation, nil
}

// Cancel is allowed for the owner until the reservation starts.
func (s *reservationService) Cancel(ctx context.Context, actor model.Actor, id int64, req *model.CancelRequest) (*model.Reservation, error) {
	if err := s.validator.ValidateCancel(req); err != nil {
		return nil, validation.ToAppError("Cancellation validation failed", err)
	}

	var reservation *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.UserID != actor.UserID {
			return apperrors.Forbidden("Reservation belongs to another user")
		}

		now := s.now()
		if !r.StartTime.After(now) {
			return apperrors.InvalidTransition("reservation", "started", EventCancel)
		}
		next, err := transition(ctx, r.Status, EventCancel)
		if err != nil {
			return err
		}

		r.Status = next
		r.CancellationReason = req.Reason
		r.HoldExpiresAt = nil
		r.UpdatedAt = now
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to cancel reservation", err, "reservation_id", id, "user_id", actor.UserID)
	}

	s.cfg.Log.For(ctx).Info("Reservation cancelled",
		"reservation_id", reservation.ID,
		"reference_number", reservation.ReferenceNumber,
	)
	s.publish(ctx, model.EventReservationCancelled, reservation)

	return reservation, nil
}

func (s *reservationService) GetByID(ctx context.Context, actor model.Actor, id int64) (*model.Reservation, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "Failed to get reservation", err, "reservation_id", id)
	}
	if !actor.IsAdmin() && r.UserID != actor.UserID {
		return nil, apperrors.Forbidden("Reservation belongs to another user")
	}
	return r, nil
}

func (s *reservationService) ListForUser(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return s.list(ctx, limit, offset,
		func(ctx context.Context) (int64, error) { return s.repo.CountByUser(ctx, actor.UserID) },
		func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
			return s.repo.FindByUser(ctx, actor.UserID, limit, offset)
		},
	)
}

func (s *reservationService) ListAll(ctx context.Context, actor model.Actor, status string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only administrators can list all reservations")
	}
	if err := s.validator.ValidateStatusFilter(status); err != nil {
		return nil, 0, validation.ToAppError("Invalid status filter", err)
	}

	filter := model.ReservationStatus(status)
	return s.list(ctx, limit, offset,
		func(ctx context.Context) (int64, error) { return s.repo.Count(ctx, filter) },
		func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
			return s.repo.FindAll(ctx, filter, limit, offset)
		},
	)
}

func (s *reservationService) list(
	ctx context.Context,
	limit int,
	offset int64,
	countFn func(ctx context.Context) (int64, error),
	findFn func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error),
) ([]*model.Reservation, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		count, err = countFn(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", err)
			errCount = apperrors.Internal("Failed to count reservations", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		reservations, err = findFn(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get reservations",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve reservations", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, count, nil
}

func (s *reservationService) requireVehicle(ctx context.Context, actor model.Actor, vehicleID int64) error {
	err := directory.RequireOwner(ctx, s.directory, actor.UserID, vehicleID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, directory.ErrVehicleNotFound):
		return apperrors.NotFoundWithID("Vehicle", fmt.Sprint(vehicleID))
	case errors.Is(err, directory.ErrNotOwner):
		return apperrors.Forbidden("Vehicle belongs to another user")
	default:
		return apperrors.Internal("Failed to verify vehicle ownership", err)
	}
}

func (s *reservationService) fail(ctx context.Context, msg string, err error, args ...any) error {
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return apperrors.NotFound("Reservation")
	}
	if apperrors.IsAppError(err) {
		s.cfg.Log.For(ctx).Warn(msg, append(args, "error", err)...)
		return err
	}
	s.cfg.Log.For(ctx).Error(msg, append(args, "error", err)...)
	return apperrors.Internal(msg, err)
}

func (s *reservationService) publish(ctx context.Context, eventType string, r *model.Reservation) {
	event := model.Event{
		Type:            eventType,
		UserID:          r.UserID,
		ReferenceNumber: r.ReferenceNumber,
		LocationID:      r.LocationID,
		Status:          string(r.Status),
		Amount:          r.AmountPaid.StringFixed(2),
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
	}
	if r.SpaceNumber != nil {
		event.SpaceNumber = *r.SpaceNumber
	}
	switch eventType {
	case model.EventReservationRejected:
		event.Reason = r.RejectionReason
	case model.EventReservationCancelled:
		event.Reason = r.CancellationReason
	}
	s.publisher.Publish(ctx, event)
}
