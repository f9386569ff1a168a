package timetrack

import (
	"testing"
	"time"

	"fieldsync/internal/job"
)

// stubClock mirrors the engine test clock without importing it.
type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time          { return c.now }
func (c *stubClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *stubClock {
	return &stubClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func TestTracker_Elapsed(t *testing.T) {
	t.Parallel()

	t.Run("confirmed plus open session", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		tr := New(clock)
		tr.SetConfirmedMinutes(90)
		tr.StartSession(clock.Now())

		clock.Advance(15 * time.Minute)
		if got, want := tr.Elapsed(), 105*time.Minute; got != want {
			t.Errorf("Elapsed() = %v, want %v", got, want)
		}
	})

	t.Run("no session means confirmed only", func(t *testing.T) {
		t.Parallel()
		tr := New(newClock())
		tr.SetConfirmedMinutes(30)
		if got, want := tr.Elapsed(), 30*time.Minute; got != want {
			t.Errorf("Elapsed() = %v, want %v", got, want)
		}
		if tr.Active() {
			t.Error("Active() = true, want false")
		}
	})

	t.Run("pause folds and clears the session", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		tr := New(clock)
		tr.StartSession(clock.Now())
		clock.Advance(20 * time.Minute)

		if got, want := tr.Pause(), 20*time.Minute; got != want {
			t.Errorf("Pause() = %v, want %v", got, want)
		}
		if tr.Active() {
			t.Error("session still open after pause")
		}
		clock.Advance(time.Hour)
		if got, want := tr.Elapsed(), 20*time.Minute; got != want {
			t.Errorf("Elapsed() after pause = %v, want %v", got, want)
		}
	})
}

func TestTracker_ClockSkew(t *testing.T) {
	t.Parallel()

	t.Run("slightly future start clamps to zero", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		tr := New(clock)
		tr.StartSession(clock.Now().Add(time.Second))

		if got := tr.SessionElapsed(); got != 0 {
			t.Errorf("SessionElapsed() = %v, want 0", got)
		}
		// Never negative, and it catches up as time passes.
		clock.Advance(5 * time.Second)
		if got := tr.SessionElapsed(); got < 0 || got > 5*time.Second {
			t.Errorf("SessionElapsed() = %v, want within [0,5s]", got)
		}
	})

	t.Run("far-future start is corrected to now", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		tr := New(clock)
		tr.StartSession(clock.Now().Add(time.Hour))

		clock.Advance(10 * time.Minute)
		if got, want := tr.SessionElapsed(), 10*time.Minute; got != want {
			t.Errorf("SessionElapsed() = %v, want %v", got, want)
		}
	})
}

func TestTracker_StartSessionFromServer(t *testing.T) {
	t.Parallel()

	t.Run("parseable timestamp is used", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		tr := New(clock)

		if _, ok := tr.SessionStart(); ok {
			t.Error("SessionStart() ok = true before any session opened")
		}

		want := clock.Now().Add(-30 * time.Minute)
		if !tr.StartSessionFromServer(want.Format(time.RFC3339), clock.Now()) {
			t.Error("StartSessionFromServer() = false, want true")
		}
		if got, ok := tr.SessionStart(); !ok || !got.Equal(want) {
			t.Errorf("SessionStart() = %v, %v, want %v, true", got, ok, want)
		}
		if got, want := tr.SessionElapsed(), 30*time.Minute; got != want {
			t.Errorf("SessionElapsed() = %v, want %v", got, want)
		}
	})

	t.Run("unparseable timestamp falls back to the action time", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		tr := New(clock)

		if tr.StartSessionFromServer("garbage", clock.Now()) {
			t.Error("StartSessionFromServer() = true, want fallback")
		}
		if !tr.Active() {
			t.Fatal("tracker halted instead of falling back to a local timer")
		}
		clock.Advance(5 * time.Minute)
		if got, want := tr.SessionElapsed(), 5*time.Minute; got != want {
			t.Errorf("SessionElapsed() = %v, want %v", got, want)
		}
	})
}

func TestFromJob(t *testing.T) {
	t.Parallel()

	clock := newClock()
	open := clock.Now().Add(-12 * time.Minute)
	j := &job.Job{
		ID:               "j1",
		ConfirmedMinutes: 48,
		Sessions:         []job.TimeSession{{Start: open}},
	}

	tr := FromJob(j, clock)
	if !tr.Active() {
		t.Fatal("expected the open session to seed the tracker")
	}
	if got, want := tr.Elapsed(), 60*time.Minute; got != want {
		t.Errorf("Elapsed() = %v, want %v", got, want)
	}
}

func TestSessionMinutes(t *testing.T) {
	t.Parallel()

	at := func(d time.Duration) *time.Time {
		t := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC).Add(d)
		return &t
	}
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		s    job.TimeSession
		want int
	}{
		{"exact minutes", job.TimeSession{Start: start, End: at(25 * time.Minute)}, 25},
		{"rounds down", job.TimeSession{Start: start, End: at(25*time.Minute + 20*time.Second)}, 25},
		{"rounds up", job.TimeSession{Start: start, End: at(25*time.Minute + 40*time.Second)}, 26},
		{"open session", job.TimeSession{Start: start}, 0},
		{"inverted session", job.TimeSession{Start: start, End: at(-time.Minute)}, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SessionMinutes(tt.s); got != tt.want {
				t.Errorf("SessionMinutes() = %d, want %d", got, tt.want)
			}
		})
	}
}
