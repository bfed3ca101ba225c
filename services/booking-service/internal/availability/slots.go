package availability

import (
	"time"

	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// SlotsForDay lists bookable start times on day for a detailer, given their windows and the
// bookings already holding time that day. Cancelled and no-show bookings do not block.
func SlotsForDay(day time.Time, windows []model.AvailabilityWindow, booked []model.Booking, duration, step time.Duration, now time.Time) []time.Time {
	w, ok := activeByDay(windows)[int(day.Weekday())]
	if !ok {
		return nil
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	windowStart := midnight.Add(time.Duration(w.Start.Minutes()) * time.Minute)
	windowEnd := midnight.Add(time.Duration(w.End.Minutes()) * time.Minute)
	return AvailableSlots(windowStart, windowEnd, duration, step, busyIntervals(midnight, booked), now)
}

func busyIntervals(midnight time.Time, booked []model.Booking) []Interval {
	var busy []Interval
	for _, b := range booked {
		if b.ScheduledTimeStart == nil || b.Status == model.StatusCancelled || b.Status == model.StatusNoShow {
			continue
		}
		if b.ScheduledDate != nil {
			y, m, d := b.ScheduledDate.Date()
			if y != midnight.Year() || m != midnight.Month() || d != midnight.Day() {
				continue
			}
		}
		start := midnight.Add(time.Duration(b.ScheduledTimeStart.Minutes()) * time.Minute)
		end := start
		if b.ScheduledTimeEnd != nil {
			end = midnight.Add(time.Duration(b.ScheduledTimeEnd.Minutes()) * time.Minute)
		}
		if !end.After(start) {
			// Point bookings still occupy their start minute.
			end = start.Add(time.Minute)
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	return busy
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a job of
// length duration would not overlap any busy interval. Times share one location.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 || !windowEnd.After(windowStart) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
