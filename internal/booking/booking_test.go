package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docassist/docassist/models"
)

type fakeStore struct {
	conflict   bool
	overlapErr error
	saveErr    error
	saved      []models.Booking
	checked    [][2]time.Time
}

func (f *fakeStore) HasBookingOverlap(_ context.Context, start, end time.Time) (bool, error) {
	f.checked = append(f.checked, [2]time.Time{start, end})
	return f.conflict, f.overlapErr
}

func (f *fakeStore) SaveBooking(_ context.Context, b models.Booking) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, b)
	return nil
}

func validArgs() Args {
	return Args{Name: "Ada Lovelace", Email: "ada@example.com", Date: "2025-06-02", Time: "14:30"}
}

func TestCreateBooksOneHourSlot(t *testing.T) {
	store := &fakeStore{}
	coord := New(store, time.UTC)

	b, err := coord.Create(context.Background(), validArgs(), "conv-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	if !b.StartTimeUTC.Equal(want) {
		t.Fatalf("start = %v, want %v", b.StartTimeUTC, want)
	}
	if !b.EndTimeUTC.Equal(want.Add(time.Hour)) {
		t.Fatalf("end = %v, want start+1h", b.EndTimeUTC)
	}
	if b.ID == "" {
		t.Fatal("expected generated id")
	}
	if b.SourceConversationID != "conv-1" {
		t.Fatalf("conversation id = %q", b.SourceConversationID)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d bookings", len(store.saved))
	}
}

func TestCreateConvertsLocalTimeToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	store := &fakeStore{}
	coord := New(store, loc)

	b, err := coord.Create(context.Background(), validArgs(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := time.Date(2025, 6, 2, 12, 30, 0, 0, time.UTC)
	if !b.StartTimeUTC.Equal(want) {
		t.Fatalf("start = %v, want %v", b.StartTimeUTC, want)
	}
	if b.StartTimeUTC.Location() != time.UTC {
		t.Fatalf("start stored in %v, want UTC", b.StartTimeUTC.Location())
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	coord := New(&fakeStore{}, time.UTC)

	for _, args := range []Args{
		{Email: "a@b.com", Date: "2025-06-02", Time: "14:00"},
		{Name: "Ada", Date: "2025-06-02", Time: "14:00"},
		{Name: "Ada", Email: "a@b.com", Time: "14:00"},
		{Name: "Ada", Email: "a@b.com", Date: "2025-06-02"},
		{Name: "  ", Email: "a@b.com", Date: "2025-06-02", Time: "14:00"},
	} {
		if _, err := coord.Create(context.Background(), args, ""); !errors.Is(err, models.ErrBookingValidation) {
			t.Fatalf("args %+v: error %v is not ErrBookingValidation", args, err)
		}
	}
}

func TestCreateRejectsBadEmail(t *testing.T) {
	coord := New(&fakeStore{}, time.UTC)
	args := validArgs()
	args.Email = "not-an-email"

	if _, err := coord.Create(context.Background(), args, ""); !errors.Is(err, models.ErrBookingValidation) {
		t.Fatalf("error %v is not ErrBookingValidation", err)
	}
}

func TestCreateRejectsUnparseableDate(t *testing.T) {
	coord := New(&fakeStore{}, time.UTC)
	args := validArgs()
	args.Date = "the day after whenever"

	if _, err := coord.Create(context.Background(), args, ""); !errors.Is(err, models.ErrBookingValidation) {
		t.Fatalf("error %v is not ErrBookingValidation", err)
	}
}

// memStore applies the half-open overlap rule the database enforces:
// [start, end) intervals conflict only when they truly intersect.
type memStore struct {
	saved []models.Booking
}

func (m *memStore) HasBookingOverlap(_ context.Context, start, end time.Time) (bool, error) {
	for _, b := range m.saved {
		if start.Before(b.EndTimeUTC) && end.After(b.StartTimeUTC) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SaveBooking(_ context.Context, b models.Booking) error {
	m.saved = append(m.saved, b)
	return nil
}

func TestCreateBackToBackSlotsDoNotConflict(t *testing.T) {
	store := &memStore{}
	coord := New(store, time.UTC)

	first := validArgs()
	if _, err := coord.Create(context.Background(), first, ""); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	// The next slot starts exactly when the first ends.
	second := validArgs()
	second.Time = "15:30"
	if _, err := coord.Create(context.Background(), second, ""); err != nil {
		t.Fatalf("back-to-back Create: %v", err)
	}

	// A slot starting inside the first hour conflicts.
	third := validArgs()
	third.Time = "15:00"
	if _, err := coord.Create(context.Background(), third, ""); !errors.Is(err, models.ErrBookingConflict) {
		t.Fatalf("error %v is not ErrBookingConflict", err)
	}
	if len(store.saved) != 2 {
		t.Fatalf("saved %d bookings", len(store.saved))
	}
}

func TestCreateReportsConflict(t *testing.T) {
	store := &fakeStore{conflict: true}
	coord := New(store, time.UTC)

	_, err := coord.Create(context.Background(), validArgs(), "")
	if !errors.Is(err, models.ErrBookingConflict) {
		t.Fatalf("error %v is not ErrBookingConflict", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("conflicting booking was saved")
	}
}

func TestCreateWrapsPersistenceErrors(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("connection reset")}
	coord := New(store, time.UTC)

	_, err := coord.Create(context.Background(), validArgs(), "")
	if !errors.Is(err, models.ErrBookingPersistence) {
		t.Fatalf("error %v is not ErrBookingPersistence", err)
	}

	store = &fakeStore{overlapErr: errors.New("timeout")}
	coord = New(store, time.UTC)
	_, err = coord.Create(context.Background(), validArgs(), "")
	if !errors.Is(err, models.ErrBookingPersistence) {
		t.Fatalf("overlap error %v is not ErrBookingPersistence", err)
	}
}
