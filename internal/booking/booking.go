// Package booking validates and persists interview bookings.
package booking

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/docassist/docassist/models"
)

// Args are the fields the assistant collects before booking.
type Args struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// Store is the persistence surface the coordinator needs.
type Store interface {
	HasBookingOverlap(ctx context.Context, start, end time.Time) (bool, error)
	SaveBooking(ctx context.Context, b models.Booking) error
}

// Coordinator books one-hour interview slots.
type Coordinator struct {
	store Store
	loc   *time.Location
}

func New(store Store, loc *time.Location) *Coordinator {
	if loc == nil {
		loc = time.Local
	}
	return &Coordinator{store: store, loc: loc}
}

// Create validates args, parses the requested slot, checks for an
// overlapping booking and persists a new one-hour booking. All times
// are stored in UTC.
func (c *Coordinator) Create(ctx context.Context, args Args, conversationID string) (models.Booking, error) {
	name := strings.TrimSpace(args.Name)
	email := strings.TrimSpace(args.Email)
	date := strings.TrimSpace(args.Date)
	clock := strings.TrimSpace(args.Time)

	if name == "" || email == "" || date == "" || clock == "" {
		return models.Booking{}, fmt.Errorf("%w: name, email, date and time are all required", models.ErrBookingValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.Booking{}, fmt.Errorf("%w: invalid email address %q", models.ErrBookingValidation, email)
	}

	start, err := dateparse.ParseIn(date+" "+clock, c.loc)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%w: could not understand date/time %q %q", models.ErrBookingValidation, date, clock)
	}
	start = start.UTC()
	end := start.Add(time.Hour)

	conflict, err := c.store.HasBookingOverlap(ctx, start, end)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%w: %v", models.ErrBookingPersistence, err)
	}
	if conflict {
		return models.Booking{}, fmt.Errorf("%w: the slot starting %s is already taken", models.ErrBookingConflict, start.Format(time.RFC3339))
	}

	b := models.Booking{
		ID:                   uuid.NewString(),
		Name:                 name,
		Email:                email,
		StartTimeUTC:         start,
		EndTimeUTC:           end,
		SourceConversationID: conversationID,
	}
	if err := c.store.SaveBooking(ctx, b); err != nil {
		return models.Booking{}, fmt.Errorf("%w: %v", models.ErrBookingPersistence, err)
	}
	return b, nil
}
