// Package notify delivers session-lost alerts.
package notify

import (
	"context"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/rs/zerolog"
)

// LogNotifier writes alerts as structured error-level log events so log
// shippers can route them.
type LogNotifier struct {
	logger zerolog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SessionLost(ctx context.Context, alert domain.SessionLostAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.Error().
		Str("event", "session_lost").
		Str("platform", string(alert.PlatformID)).
		Str("name", alert.Name).
		Dur("held_for", alert.HeldFor).
		Float64("held_hours", alert.HeldFor.Hours()).
		Time("lost_at", alert.LostAt).
		Str("reason", alert.Reason).
		Msg("session lost")

	return nil
}
