package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	locationserrors "uniparking/internal/locations/errors"
	"uniparking/internal/locations/repository"
	"uniparking/internal/locations/validator"
	"uniparking/pkg/config"
	"uniparking/pkg/db/postgres"
	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/model"
	"uniparking/pkg/sanitizer"
	"uniparking/pkg/validation"
)

type LocationService interface {
	List(ctx context.Context) ([]*model.LocationSummary, error)
	Get(ctx context.Context, id int64) (*model.LocationSummary, error)
	Create(ctx context.Context, actor model.Actor, req *model.LocationCreate) (*model.Location, error)
	Resize(ctx context.Context, actor model.Actor, id int64, req *model.SpaceResize) (*model.Location, error)
	SetStatus(ctx context.Context, actor model.Actor, id int64, req *model.LocationStatusUpdate) (*model.Location, error)
	SetSpace(ctx context.Context, actor model.Actor, id int64, number int, req *model.SpaceUpdate) (*model.Space, error)
	Delete(ctx context.Context, actor model.Actor, id int64) error
}

type locationService struct {
	repo      repository.LocationRepository
	validator *validator.LocationValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewLocationService(
	repo repository.LocationRepository,
	validator *validator.LocationValidator,
	cfg *config.Config,
) LocationService {
	return &locationService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *locationService) List(ctx context.Context) ([]*model.LocationSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	summaries, err := s.repo.FindSummaries(ctx, s.now())
	if err != nil {
		s.cfg.Log.For(ctx).Error("Failed to list locations", "error", err)
		return nil, apperrors.Internal("Failed to retrieve locations", err)
	}
	for _, summary := range summaries {
		describe(summary)
	}
	return summaries, nil
}

func (s *locationService) Get(ctx context.Context, id int64) (*model.LocationSummary, error) {
	summary, err := s.repo.FindSummary(ctx, id, s.now())
	if err != nil {
		return nil, s.fail(ctx, "Failed to get location", err, "location_id", id)
	}
	describe(summary)
	return summary, nil
}

func (s *locationService) Create(ctx context.Context, actor model.Actor, req *model.LocationCreate) (*model.Location, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	req.Name = sanitizer.SanitizeText(req.Name)
	req.Code = sanitizer.SanitizeCode(req.Code)
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.For(ctx).Warn("Location validation failed", "code", req.Code, "error", err)
		return nil, validation.ToAppError("Location validation failed", err)
	}

	loc := &model.Location{
		Name:        req.Name,
		Code:        req.Code,
		TotalSpaces: req.TotalSpaces,
		HourlyRate:  req.HourlyRate.Round(2),
		Status:      model.LocationOpen,
		CreatedAt:   s.now(),
	}
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, loc, req.AccessibleSpaces)
	})
	if err != nil {
		if postgres.IsUniqueViolation(err, repository.CodeUniqueConstraint) {
			return nil, apperrors.Conflict(fmt.Sprintf("Location code %s is already in use", loc.Code))
		}
		return nil, s.fail(ctx, "Failed to create location", err, "code", loc.Code)
	}

	s.cfg.Log.For(ctx).Info("Location created",
		"location_id", loc.ID,
		"code", loc.Code,
		"total_spaces", loc.TotalSpaces,
		"accessible_spaces", req.AccessibleSpaces,
		"admin_id", actor.UserID,
	)
	return loc, nil
}

// Resize removes first, then adds. Removal only takes spaces that nothing
// holds, so asking for more than that fails and leaves the location as is.
func (s *locationService) Resize(ctx context.Context, actor model.Actor, id int64, req *model.SpaceResize) (*model.Location, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.SpecialType == "" {
		req.SpecialType = model.SpaceStandard
	}

	var loc *model.Location
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.validator.ValidateResize(req, current.TotalSpaces); err != nil {
			return validation.ToAppError("Resize validation failed", err)
		}

		if req.Remove > 0 {
			removed, err := s.repo.RemoveSpaces(ctx, id, req.Remove, s.now())
			if err != nil {
				return err
			}
			if removed < req.Remove {
				return apperrors.Conflict("Not enough free spaces to remove").WithDetails(map[string]any{
					"requested": req.Remove,
					"removable": removed,
				})
			}
		}
		if req.Add > 0 {
			if err := s.repo.AddSpaces(ctx, id, req.Add, req.SpecialType); err != nil {
				return err
			}
		}

		loc, err = s.repo.SyncTotal(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "Failed to resize location", err, "location_id", id)
	}

	s.cfg.Log.For(ctx).Info("Location resized",
		"location_id", id,
		"added", req.Add,
		"removed", req.Remove,
		"total_spaces", loc.TotalSpaces,
		"admin_id", actor.UserID,
	)
	return loc, nil
}

func (s *locationService) SetStatus(ctx context.Context, actor model.Actor, id int64, req *model.LocationStatusUpdate) (*model.Location, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Note = sanitizer.SanitizeText(req.Note)
	if err := s.validator.ValidateStatus(req); err != nil {
		return nil, validation.ToAppError("Status validation failed", err)
	}

	loc, err := s.repo.SetStatus(ctx, id, req.Status, req.Note)
	if err != nil {
		return nil, s.fail(ctx, "Failed to set location status", err, "location_id", id)
	}

	s.cfg.Log.For(ctx).Info("Location status changed",
		"location_id", id,
		"status", loc.Status,
		"admin_id", actor.UserID,
	)
	return loc, nil
}

func (s *locationService) SetSpace(ctx context.Context, actor model.Actor, id int64, number int, req *model.SpaceUpdate) (*model.Space, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateSpaceUpdate(req); err != nil {
		return nil, validation.ToAppError("Space validation failed", err)
	}

	space, err := s.repo.UpdateSpace(ctx, id, number, req)
	if err != nil {
		if errors.Is(err, locationserrors.ErrSpaceNotFound) {
			return nil, apperrors.NotFoundWithID("Space", fmt.Sprint(number))
		}
		return nil, s.fail(ctx, "Failed to update space", err, "location_id", id, "space_number", number)
	}

	s.cfg.Log.For(ctx).Info("Space updated",
		"location_id", id,
		"space_number", number,
		"is_disabled", space.IsDisabled,
		"special_type", space.SpecialType,
	)
	return space, nil
}

func (s *locationService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByIDForUpdate(ctx, id); err != nil {
			return err
		}
		future, err := s.repo.HasFutureReservations(ctx, id, s.now())
		if err != nil {
			return err
		}
		if future {
			return apperrors.InvalidTransition("location", "has_future_reservations", "delete")
		}
		// Closed sessions cascade with the location; open ones must end first.
		open, err := s.repo.HasOpenSessions(ctx, id)
		if err != nil {
			return err
		}
		if open {
			return apperrors.InvalidTransition("location", "has_open_sessions", "delete")
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "Failed to delete location", err, "location_id", id)
	}

	s.cfg.Log.For(ctx).Info("Location deleted", "location_id", id, "admin_id", actor.UserID)
	return nil
}

func describe(summary *model.LocationSummary) {
	summary.IsDisabled = summary.Disabled()
	if summary.IsDisabled {
		summary.DisabledReason = summary.StatusNote
		if summary.DisabledReason == "" {
			summary.DisabledReason = string(summary.Status)
		}
		summary.AvailableSpaces = 0
	}
}

func requireAdmin(actor model.Actor) error {
	if !actor.IsAdmin() {
		return apperrors.Forbidden("Administrator role required")
	}
	return nil
}

func (s *locationService) fail(ctx context.Context, msg string, err error, args ...any) error {
	if errors.Is(err, locationserrors.ErrNotFound) {
		return apperrors.NotFound("Location")
	}
	if apperrors.IsAppError(err) {
		s.cfg.Log.For(ctx).Warn(msg, append(args, "error", err)...)
		return err
	}
	s.cfg.Log.For(ctx).Error(msg, append(args, "error", err)...)
	return apperrors.Internal(msg, err)
}
