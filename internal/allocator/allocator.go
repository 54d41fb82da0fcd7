// Package allocator decides which physical space a booking gets.
//
// A space is free for a window when it is enabled, its type matches the
// accessibility requirement exactly, and no blocking interval on it overlaps
// the window. Blocking intervals are paid reservations, unpaid reservations
// with a live hold, and open sessions over [time_in, time_in+duration).
// Overlap is half-open, so back-to-back bookings never collide.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/logger"
	"uniparking/pkg/model"
)

var ErrLocationNotFound = errors.New("location not found")

// Blocker is one interval during which a space is taken.
type Blocker struct {
	SpaceID       int64
	Window        model.Interval
	ReservationID int64
	SessionID     int64
}

// Store is read through the caller's context so allocation sees the same
// snapshot as the write that follows it.
type Store interface {
	Location(ctx context.Context, id int64) (*model.Location, error)
	CandidateSpaces(ctx context.Context, locationID int64, spaceType model.SpaceType) ([]model.Space, error)
	BlockingIntervals(ctx context.Context, locationID int64, window model.Interval, now time.Time) ([]Blocker, error)
	OccupiedSpaces(ctx context.Context, locationID int64) (map[int64]struct{}, error)
}

type Request struct {
	LocationID    int64
	Window        model.Interval
	NeedsDisabled bool

	// PreferSpaceID is kept when still free. Used when a reservation is
	// re-checked at payment time.
	PreferSpaceID int64

	// The caller's own record never blocks itself.
	ExcludeReservationID int64
	ExcludeSessionID     int64
}

type Assignment struct {
	SpaceID     int64
	SpaceNumber int
	Location    *model.Location
}

type Allocator struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

func New(store Store, log *logger.Logger) *Allocator {
	return &Allocator{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Allocate picks a space for an advance booking.
func (a *Allocator) Allocate(ctx context.Context, req Request) (*Assignment, error) {
	return a.allocate(ctx, req, false)
}

// AllocateNow picks a space for parking that starts immediately. On top of
// the interval check, any space with an open session is skipped even if that
// session is overdue.
func (a *Allocator) AllocateNow(ctx context.Context, locationID int64, hours int, needsDisabled bool) (*Assignment, error) {
	req := Request{
		LocationID:    locationID,
		Window:        model.NewInterval(a.now(), hours),
		NeedsDisabled: needsDisabled,
	}
	return a.allocate(ctx, req, true)
}

func (a *Allocator) allocate(ctx context.Context, req Request, immediate bool) (*Assignment, error) {
	if !req.Window.Valid() {
		return nil, apperrors.Validation("Booking window is empty", map[string]any{
			"start_time": req.Window.Start,
			"end_time":   req.Window.End,
		})
	}

	loc, err := a.location(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}

	spaces, err := a.store.CandidateSpaces(ctx, loc.ID, model.SpaceTypeFor(req.NeedsDisabled))
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate spaces: %w", err)
	}
	if len(spaces) == 0 {
		return nil, apperrors.NoSpaceAvailable(loc.ID, req.NeedsDisabled)
	}

	busy, err := a.busySpaces(ctx, req)
	if err != nil {
		return nil, err
	}

	if immediate {
		occupied, err := a.store.OccupiedSpaces(ctx, loc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load occupied spaces: %w", err)
		}
		for id := range occupied {
			busy[id] = struct{}{}
		}
	}

	chosen := pick(spaces, busy, req.PreferSpaceID)
	if chosen == nil {
		a.log.For(ctx).Info("No free space for request",
			"location_id", loc.ID,
			"needs_disabled", req.NeedsDisabled,
			"start", req.Window.Start,
			"end", req.Window.End,
			"candidates", len(spaces),
		)
		return nil, apperrors.NoSpaceAvailable(loc.ID, req.NeedsDisabled)
	}

	return &Assignment{
		SpaceID:     chosen.ID,
		SpaceNumber: chosen.Number,
		Location:    loc,
	}, nil
}

// SpaceFree reports whether one specific space has no blocker over window,
// ignoring the caller's own records. Used when extending a session in place.
func (a *Allocator) SpaceFree(ctx context.Context, req Request, spaceID int64) (bool, error) {
	busy, err := a.busySpaces(ctx, req)
	if err != nil {
		return false, err
	}
	_, taken := busy[spaceID]
	return !taken, nil
}

func (a *Allocator) location(ctx context.Context, id int64) (*model.Location, error) {
	loc, err := a.store.Location(ctx, id)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return nil, apperrors.NotFoundWithID("Location", fmt.Sprint(id))
		}
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	if !loc.Status.AcceptsBookings() {
		return nil, apperrors.LocationUnavailable(loc.ID, string(loc.Status), loc.StatusNote)
	}
	return loc, nil
}

func (a *Allocator) busySpaces(ctx context.Context, req Request) (map[int64]struct{}, error) {
	blockers, err := a.store.BlockingIntervals(ctx, req.LocationID, req.Window, a.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load blocking intervals: %w", err)
	}

	busy := make(map[int64]struct{}, len(blockers))
	for _, b := range blockers {
		if req.ExcludeReservationID != 0 && b.ReservationID == req.ExcludeReservationID {
			continue
		}
		if req.ExcludeSessionID != 0 && b.SessionID == req.ExcludeSessionID {
			continue
		}
		if b.Window.Overlaps(req.Window) {
			busy[b.SpaceID] = struct{}{}
		}
	}
	return busy, nil
}

// pick returns the preferred space when it is free, otherwise the free space
// with the lowest number. spaces must be ordered by number.
func pick(spaces []model.Space, busy map[int64]struct{}, prefer int64) *model.Space {
	var first *model.Space
	for i := range spaces {
		s := &spaces[i]
		if s.IsDisabled {
			continue
		}
		if _, taken := busy[s.ID]; taken {
			continue
		}
		if s.ID == prefer {
			return s
		}
		if first == nil {
			first = s
		}
	}
	return first
}
