package domain

import "time"

type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusPending    SessionStatus = "pending"
	StatusLoggedIn   SessionStatus = "logged_in"
	StatusExpired    SessionStatus = "expired"
	StatusError      SessionStatus = "error"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusPending, StatusLoggedIn, StatusExpired, StatusError:
		return true
	default:
		return false
	}
}

// Token is one browser cookie. The JSON shape matches what browser
// automation engines export so credential files stay interchangeable.
type Token struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

type SessionRecord struct {
	PlatformID PlatformID
	Status     SessionStatus
	// TokenRef points to the credential-store entry holding the token set.
	TokenRef          string
	Tokens            []Token
	ChallengeIssuedAt time.Time
	LoggedInAt        time.Time
	LastCheckedAt     time.Time
}

// NewSessionRecord returns the implicit record of a platform that never
// issued a challenge.
func NewSessionRecord(id PlatformID) SessionRecord {
	return SessionRecord{PlatformID: id, Status: StatusNotStarted}
}

// ContinuousDuration is derived from LoggedInAt and is only meaningful while
// the record is logged in.
func (r SessionRecord) ContinuousDuration(now time.Time) time.Duration {
	if r.Status != StatusLoggedIn || r.LoggedInAt.IsZero() {
		return 0
	}

	if now.Before(r.LoggedInAt) {
		return 0
	}

	return now.Sub(r.LoggedInAt)
}

func (r SessionRecord) HasTokens() bool {
	return len(r.Tokens) > 0
}
