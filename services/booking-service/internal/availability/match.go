// Package availability matches bookings against a detailer's weekly availability windows.
package availability

import (
	"fmt"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

// MatchBookings returns the bookings whose scheduled time falls inside the active window for
// their weekday. Bounds are inclusive and compared at minute granularity. Bookings without a
// date or start time never match. Input order is preserved.
func MatchBookings(windows []model.AvailabilityWindow, bookings []model.Booking) []model.Booking {
	byDay := activeByDay(windows)
	if len(byDay) == 0 {
		return []model.Booking{}
	}

	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if Fits(byDay, b) {
			out = append(out, b)
		}
	}
	return out
}

// Fits reports whether a single booking lies inside the window for its weekday.
func Fits(byDay map[int]model.AvailabilityWindow, b model.Booking) bool {
	if b.ScheduledDate == nil || b.ScheduledTimeStart == nil {
		return false
	}
	w, ok := byDay[int(b.ScheduledDate.Weekday())]
	if !ok {
		return false
	}
	start := b.ScheduledTimeStart.Minutes()
	end := start
	if b.ScheduledTimeEnd != nil {
		end = b.ScheduledTimeEnd.Minutes()
	}
	return w.Start.Minutes() <= start && end <= w.End.Minutes()
}

// activeByDay keeps the first active window seen for each weekday.
func activeByDay(windows []model.AvailabilityWindow) map[int]model.AvailabilityWindow {
	byDay := make(map[int]model.AvailabilityWindow, 7)
	for _, w := range windows {
		if !w.IsActive {
			continue
		}
		if _, seen := byDay[w.DayOfWeek]; seen {
			continue
		}
		byDay[w.DayOfWeek] = w
	}
	return byDay
}

// ValidateWindows rejects windows that cannot be stored: an out-of-range weekday, a start that
// is not before its end, or more than one active window for the same weekday.
func ValidateWindows(windows []model.AvailabilityWindow) error {
	active := make(map[int]bool, 7)
	for _, w := range windows {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return apperr.Validation(fmt.Sprintf("day_of_week must be between 0 and 6, got %d", w.DayOfWeek))
		}
		if w.Start.Minutes() >= w.End.Minutes() {
			return apperr.Validation(fmt.Sprintf("window on day %d must start before it ends", w.DayOfWeek))
		}
		if !w.IsActive {
			continue
		}
		if active[w.DayOfWeek] {
			return apperr.Validation(fmt.Sprintf("more than one active window on day %d", w.DayOfWeek))
		}
		active[w.DayOfWeek] = true
	}
	return nil
}
