package domain

import "time"

type LivenessState string

const (
	LivenessLoggedIn  LivenessState = "logged_in"
	LivenessLoggedOut LivenessState = "logged_out"
)

type SnapshotEntry struct {
	State LivenessState
	// Since is when the current logged-in streak was first observed.
	Since     time.Time
	Duration  time.Duration
	CheckedAt time.Time
}

// MonitorSnapshot is the last-known liveness of every tracked platform.
type MonitorSnapshot struct {
	TakenAt time.Time
	Entries map[PlatformID]SnapshotEntry
}

func NewMonitorSnapshot(takenAt time.Time) MonitorSnapshot {
	return MonitorSnapshot{TakenAt: takenAt, Entries: map[PlatformID]SnapshotEntry{}}
}

// Observe derives the next entry from the previous one. A logged-in streak
// keeps its original start so the held duration keeps growing across sweeps.
func (e SnapshotEntry) Observe(state LivenessState, now time.Time) SnapshotEntry {
	next := SnapshotEntry{State: state, CheckedAt: now}
	if state != LivenessLoggedIn {
		return next
	}

	next.Since = now
	if e.State == LivenessLoggedIn && !e.Since.IsZero() {
		next.Since = e.Since
	}
	next.Duration = now.Sub(next.Since)

	return next
}

// HeldFor returns how long the streak in e had lasted as of now.
func (e SnapshotEntry) HeldFor(now time.Time) time.Duration {
	if e.State != LivenessLoggedIn {
		return 0
	}
	if e.Since.IsZero() || now.Before(e.Since) {
		return e.Duration
	}

	return now.Sub(e.Since)
}

// SessionLostAlert is emitted on a logged_in -> logged_out transition.
type SessionLostAlert struct {
	PlatformID PlatformID
	Name       string
	HeldFor    time.Duration
	LostAt     time.Time
	Reason     string
}
