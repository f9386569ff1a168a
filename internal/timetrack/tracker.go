package timetrack

import (
	"context"
	"math"
	"sync"
	"time"

	"fieldsync/internal/job"
)

// futureTolerance is how far ahead of local now a session start may sit
// before it is corrected. Small skew is absorbed by clamping instead.
const futureTolerance = 2 * time.Second

// Clock abstracts time retrieval so the tracker is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Tracker produces a continuously updated elapsed-time figure for one job:
// server-confirmed minutes plus the in-progress local session.
type Tracker struct {
	mu           sync.Mutex
	clock        Clock
	confirmed    time.Duration
	sessionStart *time.Time
}

// New creates a Tracker with no confirmed time and no open session.
func New(clock Clock) *Tracker {
	return &Tracker{clock: clock}
}

// FromJob seeds a tracker from a job aggregate: confirmed minutes from the
// time-tracking summary and the open session, if any.
func FromJob(j *job.Job, clock Clock) *Tracker {
	t := New(clock)
	t.SetConfirmedMinutes(j.ConfirmedMinutes)
	if s := j.OpenSession(); s != nil {
		t.StartSession(s.Start)
	}
	return t
}

// SetConfirmedMinutes replaces the server-confirmed total.
func (t *Tracker) SetConfirmedMinutes(minutes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.confirmed = time.Duration(minutes) * time.Minute
}

// StartSession opens a session at the given instant. A start beyond the
// future tolerance is corrected to now so the display cannot run backwards.
func (t *Tracker) StartSession(start time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	if start.After(now.Add(futureTolerance)) {
		start = now
	}
	t.sessionStart = &start
}

// StartSessionFromServer opens a session from a raw server timestamp.
// An unparseable timestamp falls back to the moment the action occurred,
// so the tracker keeps ticking rather than halting silently.
// Returns false when the fallback was used.
func (t *Tracker) StartSessionFromServer(raw string, actionTime time.Time) bool {
	start, err := ParseServerTime(raw, time.Local)
	if err != nil {
		t.StartSession(actionTime)
		return false
	}
	t.StartSession(start)
	return true
}

// SessionStart returns the open session's start instant, after any
// future-start correction. ok is false when no session is open.
func (t *Tracker) SessionStart() (start time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionStart == nil {
		return time.Time{}, false
	}
	return *t.sessionStart, true
}

// Pause folds the open session into the confirmed total and clears it.
// Returns the folded duration (zero when no session was open).
func (t *Tracker) Pause() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.sessionElapsedLocked()
	t.confirmed += d
	t.sessionStart = nil
	return d
}

// SessionElapsed is the age of the open session, clamped to zero to absorb
// clock skew. Zero when no session is open.
func (t *Tracker) SessionElapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionElapsedLocked()
}

func (t *Tracker) sessionElapsedLocked() time.Duration {
	if t.sessionStart == nil {
		return 0
	}
	d := t.clock.Now().Sub(*t.sessionStart)
	if d < 0 {
		return 0
	}
	return d
}

// Elapsed is the total displayed time: confirmed plus the open session.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.confirmed + t.sessionElapsedLocked()
}

// Active reports whether a session is open.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionStart != nil
}

// Run invokes fn with the current total once per interval until ctx is
// done. The first invocation happens immediately. The tick never blocks on
// network state; it only reads the last known session start.
func (t *Tracker) Run(ctx context.Context, interval time.Duration, fn func(total time.Duration)) {
	fn(t.Elapsed())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(t.Elapsed())
		}
	}
}

// SessionMinutes converts a closed session to whole minutes, rounding to
// nearest. Open or inverted sessions yield zero.
func SessionMinutes(s job.TimeSession) int {
	if s.End == nil {
		return 0
	}
	d := s.End.Sub(s.Start)
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}
