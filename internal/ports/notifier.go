package ports

import (
	"context"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

type Notifier interface {
	SessionLost(ctx context.Context, alert domain.SessionLostAlert) error
}

type Metrics interface {
	ChallengeIssued(platform domain.PlatformID, outcome string)
	Validated(platform domain.PlatformID, status domain.SessionStatus)
	SessionLost(platform domain.PlatformID)
	Refreshed(platform domain.PlatformID, outcome string)
	LivenessObserved(platform domain.PlatformID, state domain.LivenessState)
}

type NopMetrics struct{}

func (NopMetrics) ChallengeIssued(domain.PlatformID, string) {}
func (NopMetrics) Validated(domain.PlatformID, domain.SessionStatus) {}
func (NopMetrics) SessionLost(domain.PlatformID) {}
func (NopMetrics) Refreshed(domain.PlatformID, string) {}
func (NopMetrics) LivenessObserved(domain.PlatformID, domain.LivenessState) {}
