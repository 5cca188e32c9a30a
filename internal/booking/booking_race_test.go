package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/docassist/docassist/models"
)

// gappedStore holds both callers between the overlap check and the
// insert, reproducing the window in which two requests for the same
// slot can each pass the check.
type gappedStore struct {
	mu      sync.Mutex
	gate    chan struct{}
	checked int
	saved   []models.Booking
}

func (g *gappedStore) HasBookingOverlap(_ context.Context, start, end time.Time) (bool, error) {
	g.mu.Lock()
	conflict := false
	for _, b := range g.saved {
		if start.Before(b.EndTimeUTC) && end.After(b.StartTimeUTC) {
			conflict = true
		}
	}
	g.checked++
	ready := g.checked == 2
	g.mu.Unlock()
	if ready {
		close(g.gate)
	}
	<-g.gate
	return conflict, nil
}

func (g *gappedStore) SaveBooking(_ context.Context, b models.Booking) error {
	g.mu.Lock()
	g.saved = append(g.saved, b)
	g.mu.Unlock()
	return nil
}

// Two concurrent requests for the same slot both pass the overlap
// check and both persist. The check and insert do not run atomically,
// so double bookings are possible under concurrency. A partial unique
// index or serializable transaction would close the window.
func TestConcurrentCreateAdmitsOverlap(t *testing.T) {
	store := &gappedStore{gate: make(chan struct{})}
	coord := New(store, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Create(context.Background(), validArgs(), "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if len(store.saved) != 2 {
		t.Fatalf("saved %d bookings, expected the race to admit 2", len(store.saved))
	}
}
