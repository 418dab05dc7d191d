package httpapi

import (
	"time"

	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
)

const (
	MessageUnknownEndpoint = "Unknown endpoint"
	MessageScanChallenge   = "Scan the QR code with the mobile app to log in"
	MessageNoCookies       = "No cookies found. Please login first."
	MessageChallengeClosed = "Challenge cancelled"
)

type errorBody struct {
	Error string `json:"error"`
}

type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func failure(err error) failureBody {
	return failureBody{Success: false, Error: err.Error()}
}

type healthBody struct {
	Status string `json:"status"`
}

type challengeBody struct {
	Success     bool      `json:"success"`
	QRCodeImage string    `json:"qrcode_image"`
	ChallengeID string    `json:"challenge_id"`
	Platform    string    `json:"platform"`
	Strategy    string    `json:"strategy,omitempty"`
	IssuedAt    time.Time `json:"issued_at,omitzero"`
	Message     string    `json:"message"`
}

type statusBody struct {
	Success           bool      `json:"success"`
	Platform          string    `json:"platform"`
	Status            string    `json:"status"`
	Message           string    `json:"message"`
	CookiesSaved      bool      `json:"cookies_saved,omitempty"`
	CookiesCount      int       `json:"cookies_count,omitempty"`
	ChallengeIssuedAt time.Time `json:"challenge_issued_at,omitzero"`
	LoggedInAt        time.Time `json:"logged_in_at,omitzero"`
	LastCheckedAt     time.Time `json:"last_checked_at,omitzero"`
	ContinuousSeconds int64     `json:"continuous_seconds,omitempty"`
	ChallengeActive   bool      `json:"challenge_active,omitempty"`
}

func newStatusBody(report application.StatusReport, active bool) statusBody {
	return statusBody{
		Success:           true,
		Platform:          string(report.Platform),
		Status:            string(report.Status),
		Message:           report.Message,
		CookiesSaved:      report.CookiesSaved,
		CookiesCount:      report.CookiesCount,
		ChallengeIssuedAt: report.ChallengeIssuedAt,
		LoggedInAt:        report.LoggedInAt,
		LastCheckedAt:     report.LastCheckedAt,
		ContinuousSeconds: int64(report.ContinuousDuration.Seconds()),
		ChallengeActive:   active,
	}
}

type validationBody struct {
	Success  bool   `json:"success"`
	Platform string `json:"platform"`
	Valid    bool   `json:"valid"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

type cookiesBody struct {
	Success bool           `json:"success"`
	Cookies []domain.Token `json:"cookies"`
	Count   int            `json:"count"`
}

type cancelBody struct {
	Success  bool   `json:"success"`
	Platform string `json:"platform"`
	Message  string `json:"message"`
}

type probeBody struct {
	Success  bool   `json:"success"`
	Platform string `json:"platform"`
	Name     string `json:"name,omitempty"`
	State    string `json:"state"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
}

func newProbeBody(result application.ProbeResult) probeBody {
	return probeBody{
		Success:  true,
		Platform: string(result.Platform),
		Name:     result.Name,
		State:    string(result.State),
		URL:      result.PageURL,
		Title:    result.Title,
		Message:  result.Message,
	}
}

type probeListBody struct {
	Success   bool        `json:"success"`
	Sessions  []probeBody `json:"sessions"`
	CheckedAt time.Time   `json:"checked_at,omitzero"`
}
