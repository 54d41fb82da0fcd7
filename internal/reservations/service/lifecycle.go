package service

import (
	"context"
	"errors"

	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/model"

	"github.com/looplab/fsm"
)

const (
	EventPay     = "pay"
	EventConfirm = "confirm"
	EventReject  = "reject"
	EventCancel  = "cancel"
)

var (
	statusPending   = string(model.ReservationPending)
	statusConfirmed = string(model.ReservationConfirmed)
	statusRejected  = string(model.ReservationRejected)
	statusCancelled = string(model.ReservationCancelled)
)

// newLifecycle builds the reservation state machine positioned at status.
// Paying keeps the status; rejected and cancelled accept no events.
func newLifecycle(status model.ReservationStatus) *fsm.FSM {
	return fsm.NewFSM(
		string(status),
		fsm.Events{
			{Name: EventPay, Src: []string{statusPending}, Dst: statusPending},
			{Name: EventPay, Src: []string{statusConfirmed}, Dst: statusConfirmed},
			{Name: EventConfirm, Src: []string{statusPending}, Dst: statusConfirmed},
			{Name: EventReject, Src: []string{statusPending}, Dst: statusRejected},
			{Name: EventCancel, Src: []string{statusPending, statusConfirmed}, Dst: statusCancelled},
		},
		fsm.Callbacks{},
	)
}

// transition applies event to status and returns the resulting status.
func transition(ctx context.Context, status model.ReservationStatus, event string) (model.ReservationStatus, error) {
	machine := newLifecycle(status)
	if !machine.Can(event) {
		return status, apperrors.InvalidTransition("reservation", string(status), event)
	}

	if err := machine.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return status, nil
		}
		return status, err
	}
	return model.ReservationStatus(machine.Current()), nil
}
