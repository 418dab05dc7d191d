package application

import (
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

type StatusReport struct {
	Platform           domain.PlatformID
	Status             domain.SessionStatus
	Message            string
	CookiesSaved       bool
	CookiesCount       int
	ChallengeIssuedAt  time.Time
	LoggedInAt         time.Time
	LastCheckedAt      time.Time
	ContinuousDuration time.Duration
}

type ChallengeResult struct {
	ChallengeID string
	Platform    domain.PlatformID
	Image       []byte
	// Strategy names the extraction strategy that produced Image.
	Strategy string
	IssuedAt time.Time
	// Outcome is only final when the command waited for completion.
	Outcome WatchOutcome
}

type ValidationResult struct {
	Platform domain.PlatformID
	Valid    bool
	Status   domain.SessionStatus
	Message  string
	// Probed is false when the verdict came from the fast path.
	Probed bool
}

type SweepFailure struct {
	Platform domain.PlatformID
	Err      error
}

type MonitorReport struct {
	Snapshot    domain.MonitorSnapshot
	Transitions []domain.SessionLostAlert
	Skipped     []domain.PlatformID
	Failures    []SweepFailure
}

type RefreshResult struct {
	Platform domain.PlatformID
	PageID   string
	PageURL  string
	Err      error
}

type RefreshReport struct {
	Refreshed []RefreshResult
	Skipped   []domain.PlatformID
	Failures  []SweepFailure
}

type PageState string

const (
	PageOnline  PageState = "online"
	PageOffline PageState = "offline"
	PageUnknown PageState = "unknown"
)

type ProbeResult struct {
	Platform domain.PlatformID
	Name     string
	State    PageState
	PageURL  string
	Title    string
	Message  string
}
