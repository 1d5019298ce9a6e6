// Package calendar holds the appointment book and the free-slot computation
// over the office hours.
package calendar

import (
	"time"
)

// SlotDuration is the length of one appointment.
const SlotDuration = 30 * time.Minute

// Slot is a bookable interval on a given day.
type Slot struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
	At    string `json:"datetime"`
}

// Interval is a busy period already on the calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// officeHours returns the working window for a date; ok is false on closed
// days. Monday to Friday 08:00-18:00, Saturday 09:00-14:00, closed Sunday.
func officeHours(date time.Time) (open, close time.Time, ok bool) {
	day := date.Weekday()
	switch {
	case day == time.Sunday:
		return time.Time{}, time.Time{}, false
	case day == time.Saturday:
		open = time.Date(date.Year(), date.Month(), date.Day(), 9, 0, 0, 0, date.Location())
		close = time.Date(date.Year(), date.Month(), date.Day(), 14, 0, 0, 0, date.Location())
	default:
		open = time.Date(date.Year(), date.Month(), date.Day(), 8, 0, 0, 0, date.Location())
		close = time.Date(date.Year(), date.Month(), date.Day(), 18, 0, 0, 0, date.Location())
	}
	return open, close, true
}

// AvailableSlots walks the office hours of a date in SlotDuration steps and
// keeps the slots that do not overlap any busy interval.
func AvailableSlots(date time.Time, busy []Interval) []Slot {
	open, close, ok := officeHours(date)
	if !ok {
		return nil
	}

	var slots []Slot
	for current := open; current.Add(SlotDuration).Before(close) || current.Add(SlotDuration).Equal(close); current = current.Add(SlotDuration) {
		end := current.Add(SlotDuration)
		conflict := false
		for _, b := range busy {
			if current.Before(b.End) && end.After(b.Start) {
				conflict = true
				break
			}
		}
		if !conflict {
			slots = append(slots, Slot{
				Start: current.Format("15:04"),
				End:   end.Format("15:04"),
				At:    current.Format(time.RFC3339),
			})
		}
	}
	return slots
}
