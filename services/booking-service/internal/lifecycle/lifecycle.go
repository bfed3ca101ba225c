// Package lifecycle holds the allowed booking status transitions.
package lifecycle

import (
	"fmt"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusPending:         {model.StatusRequiresPayment, model.StatusPaid, model.StatusCancelled},
	model.StatusRequiresPayment: {model.StatusPaid, model.StatusCancelled},
	model.StatusPaid:            {model.StatusOffered, model.StatusAccepted, model.StatusCancelled},
	// A declined offer goes back to the paid pool.
	model.StatusOffered:    {model.StatusAccepted, model.StatusPaid, model.StatusCancelled},
	model.StatusAccepted:   {model.StatusInProgress, model.StatusCancelled, model.StatusNoShow},
	model.StatusInProgress: {model.StatusCompleted, model.StatusCancelled},
	model.StatusCompleted:  nil,
	model.StatusCancelled:  nil,
	model.StatusNoShow:     nil,
}

func CanTransition(from, to model.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s in one step.
func Next(s model.BookingStatus) []model.BookingStatus {
	out := make([]model.BookingStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

func Validate(from, to model.BookingStatus) error {
	if !to.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown booking status %q", to))
	}
	if !from.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown booking status %q", from))
	}
	if from.Terminal() {
		return apperr.Validation(fmt.Sprintf("booking is already %s", from))
	}
	if !CanTransition(from, to) {
		return apperr.Validation(fmt.Sprintf("cannot move booking from %s to %s", from, to))
	}
	return nil
}
