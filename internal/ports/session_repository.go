package ports

import (
	"context"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

// SessionRepository persists lifecycle state. Tokens are never stored here;
// records only carry a TokenRef into the SecretStore.
type SessionRepository interface {
	GetByID(ctx context.Context, id domain.PlatformID) (domain.SessionRecord, error)
	List(ctx context.Context) ([]domain.SessionRecord, error)
	Save(ctx context.Context, record domain.SessionRecord) error
	// Update runs a read-modify-write of one record atomically. A missing
	// record is passed to fn as domain.NewSessionRecord(id).
	Update(ctx context.Context, id domain.PlatformID, fn func(*domain.SessionRecord) error) (domain.SessionRecord, error)
}

type SnapshotRepository interface {
	Load(ctx context.Context) (domain.MonitorSnapshot, error)
	Save(ctx context.Context, snapshot domain.MonitorSnapshot) error
}
