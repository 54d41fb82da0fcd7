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
	sessionserrors "uniparking/internal/sessions/errors"
	"uniparking/internal/sessions/repository"
	"uniparking/internal/sessions/validator"
	"uniparking/pkg/config"
	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/model"
	"uniparking/pkg/reference"
	"uniparking/pkg/sanitizer"
	"uniparking/pkg/validation"
)

type SessionService interface {
	HasActiveSession(ctx context.Context, userID int64) (bool, error)
	Start(ctx context.Context, actor model.Actor, req *model.SessionStart) (*model.Session, error)
	Extend(ctx context.Context, actor model.Actor, ref string, req *model.SessionExtend) (*model.Session, error)
	End(ctx context.Context, actor model.Actor, ref string) (*model.Session, error)
	Active(ctx context.Context, actor model.Actor) (*model.ActiveSession, error)
	History(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Session, int64, error)
	CloseElapsed(ctx context.Context) (int, error)
}

type SpaceAllocator interface {
	AllocateNow(ctx context.Context, locationID int64, hours int, needsDisabled bool) (*allocator.Assignment, error)
	SpaceFree(ctx context.Context, req allocator.Request, spaceID int64) (bool, error)
}

type CardChecker interface {
	Check(card *model.Card) error
}

type sessionService struct {
	repo      repository.SessionRepository
	validator *validator.SessionValidator
	allocator SpaceAllocator
	pricing   *pricing.Calculator
	cards     CardChecker
	directory directory.Directory
	publisher notifications.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewSessionService(
	repo repository.SessionRepository,
	validator *validator.SessionValidator,
	allocator SpaceAllocator,
	calculator *pricing.Calculator,
	cards CardChecker,
	dir directory.Directory,
	publisher notifications.Publisher,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		repo:      repo,
		validator: validator,
		allocator: allocator,
		pricing:   calculator,
		cards:     cards,
		directory: dir,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HasActiveSession is true while the user has an open occupancy row on any of
// their vehicles, or a paid reservation whose window contains now. It gates
// every new booking of either kind.
func (s *sessionService) HasActiveSession(ctx context.Context, userID int64) (bool, error) {
	vehicleIDs, err := s.directory.VehicleIDs(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list vehicles: %w", err)
	}

	open, err := s.repo.HasOpenSession(ctx, userID, vehicleIDs)
	if err != nil {
		return false, err
	}
	if open {
		return true, nil
	}

	return s.repo.HasCurrentReservation(ctx, userID, vehicleIDs, s.now())
}

func (s *sessionService) Start(ctx context.Context, actor model.Actor, req *model.SessionStart) (*model.Session, error) {
	log := s.cfg.Log.For(ctx)

	if err := s.validator.ValidateStart(req); err != nil {
		log.Warn("Session validation failed", "user_id", actor.UserID, "error", err)
		return nil, validation.ToAppError("Session validation failed", err)
	}
	if err := s.cards.Check(&req.Card); err != nil {
		return nil, err
	}
	if err := s.requireVehicle(ctx, actor, req.VehicleID); err != nil {
		return nil, err
	}

	var session *model.Session
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		active, err := s.HasActiveSession(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if active {
			return apperrors.ActiveSessionExists(actor.UserID)
		}

		assignment, err := s.allocator.AllocateNow(ctx, req.LocationID, req.DurationHours, req.NeedsDisabled)
		if err != nil {
			return err
		}

		price, err := s.pricing.Price(assignment.Location.HourlyRate, req.DurationHours)
		if err != nil {
			return apperrors.Validation("Cannot price session", map[string]any{"error": err.Error()})
		}
		if !req.AmountPaid.Equal(price) {
			return apperrors.Validation("Amount paid does not match the session price", map[string]any{
				"amount_paid": req.AmountPaid.StringFixed(2),
				"expected":    price.StringFixed(2),
			})
		}

		session = &model.Session{
			UserID:          actor.UserID,
			VehicleID:       req.VehicleID,
			LocationID:      assignment.Location.ID,
			LocationName:    assignment.Location.Name,
			SpaceID:         assignment.SpaceID,
			SpaceNumber:     assignment.SpaceNumber,
			TimeIn:          s.now(),
			DurationHours:   req.DurationHours,
			AmountPaid:      price,
			HourlyRate:      assignment.Location.HourlyRate,
			ReferenceNumber: reference.New(reference.PrefixSession),
			PaymentStatus:   model.PaymentPaid,
		}
		return s.repo.Create(ctx, session)
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to start session", err, "user_id", actor.UserID, "location_id", req.LocationID)
	}

	log.Info("Parking session started",
		"reference_number", session.ReferenceNumber,
		"user_id", session.UserID,
		"location_id", session.LocationID,
		"space_number", session.SpaceNumber,
		"duration_hours", session.DurationHours,
		"card_last4", req.Card.Last4(),
	)
	s.publish(ctx, model.EventSessionStarted, session)

	return session, nil
}

// Extend adds hours and their cost to an open session. time_in and time_out
// are never touched.
func (s *sessionService) Extend(ctx context.Context, actor model.Actor, ref string, req *model.SessionExtend) (*model.Session, error) {
	ref = sanitizer.SanitizeReference(ref)
	if ref == "" {
		return nil, apperrors.InvalidInput("Session reference cannot be empty")
	}
	if err := s.cards.Check(&req.Card); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateExtend(req); err != nil {
		return nil, validation.ToAppError("Session extension validation failed", err)
	}

	var updated *model.Session
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindOpenByReference(ctx, ref)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && current.UserID != actor.UserID {
			return apperrors.Forbidden("Session belongs to another user")
		}

		free, err := s.allocator.SpaceFree(ctx, allocator.Request{
			LocationID:       current.LocationID,
			Window:           model.NewInterval(current.TimeIn, current.DurationHours+req.AdditionalHours),
			ExcludeSessionID: current.ID,
		}, current.SpaceID)
		if err != nil {
			return err
		}
		if !free {
			return apperrors.NoSpaceAvailable(current.LocationID, false).WithDetails(map[string]any{
				"location_id":  current.LocationID,
				"space_number": current.SpaceNumber,
				"reason":       "space is booked after the current session",
			})
		}

		cost, err := s.pricing.Price(current.HourlyRate, req.AdditionalHours)
		if err != nil {
			return apperrors.Validation("Cannot price extension", map[string]any{"error": err.Error()})
		}

		updated, err = s.repo.Extend(ctx, ref, req.AdditionalHours, cost)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to extend session", err, "reference_number", ref)
	}

	s.cfg.Log.For(ctx).Info("Parking session extended",
		"reference_number", ref,
		"additional_hours", req.AdditionalHours,
		"duration_hours", updated.DurationHours,
		"amount_paid", updated.AmountPaid.StringFixed(2),
	)
	s.publish(ctx, model.EventSessionExtended, updated)

	return updated, nil
}

// End is a single conditional update. A second call for the same reference
// finds no open row and reports not found.
func (s *sessionService) End(ctx context.Context, actor model.Actor, ref string) (*model.Session, error) {
	ref = sanitizer.SanitizeReference(ref)
	if ref == "" {
		return nil, apperrors.InvalidInput("Session reference cannot be empty")
	}

	owner := actor.UserID
	if actor.IsAdmin() {
		owner = 0
	}

	ended, err := s.repo.End(ctx, ref, owner, s.now())
	if err != nil {
		return nil, s.fail(ctx, "Failed to end session", err, "reference_number", ref)
	}

	s.cfg.Log.For(ctx).Info("Parking session ended",
		"reference_number", ref,
		"user_id", ended.UserID,
		"space_number", ended.SpaceNumber,
	)
	s.publish(ctx, model.EventSessionEnded, ended)

	return ended, nil
}

func (s *sessionService) Active(ctx context.Context, actor model.Actor) (*model.ActiveSession, error) {
	current, err := s.repo.FindOpenByUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sessionserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Active session")
		}
		s.cfg.Log.For(ctx).Error("Failed to get active session", "user_id", actor.UserID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve active session", err)
	}
	return model.NewActiveSession(current, s.now()), nil
}

func (s *sessionService) History(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Session, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var sessions []*model.Session
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		count, err = s.repo.CountHistory(ctx, actor.UserID)
		if err != nil {
			s.cfg.Log.Error("Failed to count sessions", "user_id", actor.UserID, "error", err)
			errCount = apperrors.Internal("Failed to count sessions", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		sessions, err = s.repo.History(ctx, actor.UserID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get session history",
				"user_id", actor.UserID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve sessions", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return sessions, count, nil
}

// CloseElapsed ends every session whose paid time has run out.
func (s *sessionService) CloseElapsed(ctx context.Context) (int, error) {
	closed, err := s.repo.CloseElapsed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, session := range closed {
		s.publish(ctx, model.EventSessionEnded, session)
	}
	return len(closed), nil
}

func (s *sessionService) requireVehicle(ctx context.Context, actor model.Actor, vehicleID int64) error {
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

func (s *sessionService) fail(ctx context.Context, msg string, err error, args ...any) error {
	if errors.Is(err, sessionserrors.ErrNotFound) {
		return apperrors.NotFound("Session")
	}
	if apperrors.IsAppError(err) {
		s.cfg.Log.For(ctx).Warn(msg, append(args, "error", err)...)
		return err
	}
	s.cfg.Log.For(ctx).Error(msg, append(args, "error", err)...)
	return apperrors.Internal(msg, err)
}

func (s *sessionService) publish(ctx context.Context, eventType string, session *model.Session) {
	s.publisher.Publish(ctx, model.Event{
		Type:            eventType,
		UserID:          session.UserID,
		ReferenceNumber: session.ReferenceNumber,
		LocationID:      session.LocationID,
		SpaceNumber:     session.SpaceNumber,
		Amount:          session.AmountPaid.StringFixed(2),
		StartTime:       session.TimeIn,
		EndTime:         session.EffectiveEnd(),
	})
}
