package application

import (
	"errors"
	"fmt"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

var (
	// ErrWatcherTimeout marks a challenge that was never approved before its
	// deadline. The record stays pending and the caller may issue a new one.
	ErrWatcherTimeout      = errors.New("challenge was not completed before the deadline")
	ErrChallengeSuperseded = errors.New("challenge superseded by a newer one")
	ErrNoChallengeImage    = errors.New("no challenge image found")
	ErrChallengeNotActive  = errors.New("no active challenge")
	ErrNoOpenPage          = errors.New("no open page")
	ErrNoDebugEndpoint     = errors.New("no remote-debugging endpoint configured")
	ErrNoContainer         = errors.New("no container configured")
)

// AcquisitionError wraps a failure while issuing a challenge. Stage names the
// step that failed (open, navigate, extract, persist).
type AcquisitionError struct {
	Platform domain.PlatformID
	Stage    string
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire challenge for %s: %s: %v", e.Platform, e.Stage, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// ValidationError is an infrastructure failure during a live probe. It is
// never an indication that the session itself expired.
type ValidationError struct {
	Platform domain.PlatformID
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate session for %s: %v", e.Platform, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
