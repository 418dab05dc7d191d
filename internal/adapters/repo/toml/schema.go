package toml

import "fmt"

const (
	currentSessionsSchemaVersion = 1
	currentSnapshotSchemaVersion = 1
)

type sessionsFileSchema struct {
	Version  int             `toml:"version"`
	Sessions []sessionSchema `toml:"sessions"`
}

func (s *sessionsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSessionsSchemaVersion
	}
}

func (s sessionsFileSchema) validateVersion() error {
	if s.Version > currentSessionsSchemaVersion {
		return fmt.Errorf("unsupported sessions schema version %d (current %d)", s.Version, currentSessionsSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	PlatformID        string `toml:"platform_id"`
	Status            string `toml:"status"`
	TokenRef          string `toml:"token_ref,omitempty"`
	ChallengeIssuedAt string `toml:"challenge_issued_at,omitempty"`
	LoggedInAt        string `toml:"logged_in_at,omitempty"`
	LastCheckedAt     string `toml:"last_checked_at,omitempty"`
}

type snapshotFileSchema struct {
	Version int                   `toml:"version"`
	TakenAt string                `toml:"taken_at"`
	Entries []snapshotEntrySchema `toml:"entries"`
}

func (s *snapshotFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSnapshotSchemaVersion
	}
}

func (s snapshotFileSchema) validateVersion() error {
	if s.Version > currentSnapshotSchemaVersion {
		return fmt.Errorf("unsupported snapshot schema version %d (current %d)", s.Version, currentSnapshotSchemaVersion)
	}

	return nil
}

type snapshotEntrySchema struct {
	PlatformID      string  `toml:"platform_id"`
	State           string  `toml:"state"`
	Since           string  `toml:"since,omitempty"`
	DurationSeconds float64 `toml:"duration_seconds"`
	CheckedAt       string  `toml:"checked_at,omitempty"`
}
