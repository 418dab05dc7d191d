package application

import (
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

type IssueChallengeCommand struct {
	Platform domain.PlatformID
	// WaitForCompletion blocks IssueChallenge until the watcher resolves.
	// Without it the watcher keeps running in the background after the image
	// is returned.
	WaitForCompletion bool
	// Timeout bounds the whole watch. Zero falls back to the configured
	// challenge timeout.
	Timeout time.Duration
	// Progress, when set, receives one event per poll tick. Sends never
	// block; a slow reader misses ticks.
	Progress chan<- WatchProgress
	// Issued, when set, receives the challenge before the watch starts so a
	// blocking caller can show the code while it is still scannable. An
	// error cancels the challenge.
	Issued func(ChallengeResult) error
}
