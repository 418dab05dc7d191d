package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session record not found")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrCorruptState     = errors.New("corrupt session state")
	ErrNoTokens         = errors.New("no session tokens stored")
	ErrSnapshotNotFound = errors.New("monitor snapshot not found")
	ErrArtifactNotFound = errors.New("credential artifact not found")
)
