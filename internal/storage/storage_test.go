package storage

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"touchident/internal/touch"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func obsForUser(user, n int) []touch.Observation {
	obs := make([]touch.Observation, n)
	for i := range obs {
		p := touch.Point{X: float64(i) * 0.1, Y: 0.5}
		obs[i] = touch.Observation{
			User:   user,
			Touch:  p,
			Target: touch.Point{X: p.X + 0.02, Y: p.Y - 0.01},
		}
	}
	return obs
}

func TestObservationRoundTrip(t *testing.T) {
	store := newTestStore(t)

	want := obsForUser(3, 5)
	if err := store.StoreObservations(3, want); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := store.GetObservations(3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d observations, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("observation %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestObservationsIsolatedPerUser(t *testing.T) {
	store := newTestStore(t)

	if err := store.StoreObservations(1, obsForUser(1, 4)); err != nil {
		t.Fatalf("store user 1: %v", err)
	}
	if err := store.StoreObservations(2, obsForUser(2, 7)); err != nil {
		t.Fatalf("store user 2: %v", err)
	}

	got1, err := store.GetObservations(1)
	if err != nil {
		t.Fatalf("get user 1: %v", err)
	}
	got2, err := store.GetObservations(2)
	if err != nil {
		t.Fatalf("get user 2: %v", err)
	}
	if len(got1) != 4 || len(got2) != 7 {
		t.Errorf("user isolation broken: got %d and %d observations", len(got1), len(got2))
	}
	for _, o := range got1 {
		if o.User != 1 {
			t.Errorf("user 1 scan returned observation for user %d", o.User)
		}
	}
}

func TestObservationsAppendKeepsOrder(t *testing.T) {
	store := newTestStore(t)

	first := obsForUser(5, 3)
	second := obsForUser(5, 2)
	second[0].Touch.X = 0.77
	second[1].Touch.X = 0.88

	if err := store.StoreObservations(5, first); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := store.StoreObservations(5, second); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	got, err := store.GetObservations(5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d observations, want 5", len(got))
	}
	if got[3].Touch.X != 0.77 || got[4].Touch.X != 0.88 {
		t.Errorf("append did not preserve insertion order: %+v", got[3:])
	}
}

func TestGetObservations_UnknownUser(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetObservations(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no observations for unknown user, got %d", len(got))
	}
}

func TestStoreObservations_RejectsNonFinite(t *testing.T) {
	store := newTestStore(t)

	bad := []touch.Observation{{User: 1, Touch: touch.Point{X: math.NaN()}}}
	if err := store.StoreObservations(1, bad); !errors.Is(err, touch.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := SessionRecord{
			ID:        fmt.Sprintf("sess-%d", i),
			TrueUser:  1,
			Users:     []int{1, 2},
			Steps:     10 * (i + 1),
			Final:     []float64{0.9, 0.1},
			TopUser:   1,
			TopProb:   0.9,
			Correct:   true,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.StoreSession(rec); err != nil {
			t.Fatalf("store session %d: %v", i, err)
		}
	}

	// Middle session only.
	got, err := store.GetSessions(base.Add(30*time.Minute), base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "sess-1" {
		t.Fatalf("time-range query returned %+v, want only sess-1", got)
	}
	if got[0].Steps != 20 || !got[0].Correct {
		t.Errorf("session record corrupted: %+v", got[0])
	}

	all, err := store.GetSessions(base.Add(-time.Hour), base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("get all sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d sessions, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartedAt.Before(all[i-1].StartedAt) {
			t.Errorf("sessions not in chronological order: %v before %v", all[i-1].StartedAt, all[i].StartedAt)
		}
	}
}

func TestGetSessions_EmptyRange(t *testing.T) {
	store := newTestStore(t)

	rec := SessionRecord{ID: "s", StartedAt: time.Now()}
	if err := store.StoreSession(rec); err != nil {
		t.Fatalf("store session: %v", err)
	}

	got, err := store.GetSessions(time.Unix(0, 0), time.Unix(1, 0))
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty range, got %d sessions", len(got))
	}
}
