package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consultorio-rincon/voice-frontdesk/types"
)

// ErrSlotTaken is returned when the requested date and time collides with an
// existing appointment.
var ErrSlotTaken = errors.New("requested slot already booked")

// ErrIncompleteCommand is returned for a schedule command missing required
// fields. The policy should never emit one, so hitting this means a caller
// of the book bypassed the policy.
var ErrIncompleteCommand = errors.New("schedule command missing required fields")

// ErrNotFound is returned when cancelling an unknown appointment.
var ErrNotFound = errors.New("appointment not found")

// Appointment is a confirmed booking.
type Appointment struct {
	ID          string    `json:"id"`
	PatientName string    `json:"patient_name"`
	Phone       string    `json:"phone"`
	Reason      string    `json:"reason"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Payment     string    `json:"payment,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Book is the in-process appointment calendar. It satisfies the consumed
// scheduling interface so the pipeline and the function-invocation path can
// exercise appointment side effects end to end.
type Book struct {
	mu    sync.RWMutex
	appts map[string]*Appointment
	log   zerolog.Logger
}

// NewBook creates an empty appointment book.
func NewBook(log zerolog.Logger) *Book {
	return &Book{
		appts: make(map[string]*Appointment),
		log:   log,
	}
}

// Schedule books the appointment described by a fully-resolved command.
func (b *Book) Schedule(ctx context.Context, cmd types.AppointmentCommand) (*Appointment, error) {
	if cmd.PatientName == "" || cmd.Phone == "" || cmd.Date == "" || cmd.Time == "" {
		return nil, ErrIncompleteCommand
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.appts {
		if existing.Date == cmd.Date && existing.Time == cmd.Time && existing.Status == "confirmed" {
			return nil, fmt.Errorf("%w: %s %s", ErrSlotTaken, cmd.Date, cmd.Time)
		}
	}

	appt := &Appointment{
		ID:          "apt_" + uuid.NewString(),
		PatientName: cmd.PatientName,
		Phone:       cmd.Phone,
		Reason:      cmd.Reason,
		Date:        cmd.Date,
		Time:        cmd.Time,
		Payment:     cmd.Payment,
		Status:      "confirmed",
		CreatedAt:   time.Now(),
	}
	b.appts[appt.ID] = appt

	b.log.Info().
		Str("appointment_id", appt.ID).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("appointment booked")

	return appt, nil
}

// Cancel marks an appointment cancelled.
func (b *Book) Cancel(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	appt, ok := b.appts[id]
	if !ok {
		return ErrNotFound
	}
	appt.Status = "cancelled"
	return nil
}

// Availability lists the free slots on a date given as 2006-01-02.
func (b *Book) Availability(ctx context.Context, date string) ([]Slot, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}

	b.mu.RLock()
	var busy []Interval
	for _, appt := range b.appts {
		if appt.Status != "confirmed" || appt.Date != date {
			continue
		}
		start, err := time.ParseInLocation("2006-01-02 15:04", appt.Date+" "+appt.Time, time.Local)
		if err != nil {
			continue
		}
		busy = append(busy, Interval{Start: start, End: start.Add(SlotDuration)})
	}
	b.mu.RUnlock()

	return AvailableSlots(day, busy), nil
}

// Appointments snapshots every booking, most useful for the ops endpoint.
func (b *Book) Appointments() []*Appointment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Appointment, 0, len(b.appts))
	for _, appt := range b.appts {
		copied := *appt
		out = append(out, &copied)
	}
	return out
}
