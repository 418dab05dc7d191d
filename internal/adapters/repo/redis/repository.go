// Package redis stores session lifecycle state and monitor snapshots in
// Redis so several processes can share them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "qk:"
	maxUpdateRetries = 10
)

type Config struct {
	Client *redis.Client
	// KeyPrefix is prepended to every key. Default: "qk:".
	KeyPrefix string
}

type Repository struct {
	client    *redis.Client
	keyPrefix string
}

var _ ports.SessionRepository = (*Repository)(nil)

func New(config Config) (*Repository, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}

	return &Repository{client: config.Client, keyPrefix: config.KeyPrefix}, nil
}

type recordJSON struct {
	PlatformID        string    `json:"platform_id"`
	Status            string    `json:"status"`
	TokenRef          string    `json:"token_ref,omitempty"`
	ChallengeIssuedAt time.Time `json:"challenge_issued_at,omitzero"`
	LoggedInAt        time.Time `json:"logged_in_at,omitzero"`
	LastCheckedAt     time.Time `json:"last_checked_at,omitzero"`
}

type entryJSON struct {
	State           string    `json:"state"`
	Since           time.Time `json:"since,omitzero"`
	DurationSeconds float64   `json:"duration_seconds"`
	CheckedAt       time.Time `json:"checked_at,omitzero"`
}

type snapshotJSON struct {
	TakenAt time.Time            `json:"taken_at,omitzero"`
	Entries map[string]entryJSON `json:"entries"`
}

func (r *Repository) GetByID(ctx context.Context, id domain.PlatformID) (domain.SessionRecord, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SessionRecord{}, domain.ErrSessionNotFound
		}
		return domain.SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}

	return decodeRecord(data)
}

func (r *Repository) List(ctx context.Context) ([]domain.SessionRecord, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	sort.Strings(ids)

	records := make([]domain.SessionRecord, 0, len(ids))
	for _, id := range ids {
		record, err := r.GetByID(ctx, domain.PlatformID(id))
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func (r *Repository) Save(ctx context.Context, record domain.SessionRecord) error {
	_, err := r.Update(ctx, record.PlatformID, func(current *domain.SessionRecord) error {
		*current = record
		return nil
	})

	return err
}

// Update is an optimistic read-modify-write: the key is watched and the
// transaction retried when another writer got there first.
func (r *Repository) Update(ctx context.Context, id domain.PlatformID, fn func(*domain.SessionRecord) error) (domain.SessionRecord, error) {
	key := r.sessionKey(id)
	var updated domain.SessionRecord

	txf := func(tx *redis.Tx) error {
		record := domain.NewSessionRecord(id)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			decoded, decodeErr := decodeRecord(data)
			if decodeErr == nil {
				record = decoded
			}
		case errors.Is(err, redis.Nil):
		default:
			return fmt.Errorf("get session %s: %w", id, err)
		}

		if err := fn(&record); err != nil {
			return err
		}
		record.PlatformID = id
		record.Tokens = nil

		encoded, err := json.Marshal(toRecordJSON(record))
		if err != nil {
			return fmt.Errorf("encode session %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			pipe.SAdd(ctx, r.indexKey(), string(id))
			return nil
		})
		if err != nil {
			return err
		}

		updated = record
		return nil
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.SessionRecord{}, err
		}
		return updated, nil
	}

	return domain.SessionRecord{}, fmt.Errorf("update session %s: too much contention", id)
}

// SnapshotRepository keeps the monitor snapshot as one JSON value.
type SnapshotRepository struct {
	client    *redis.Client
	keyPrefix string
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

func NewSnapshotRepository(config Config) (*SnapshotRepository, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}

	return &SnapshotRepository{client: config.Client, keyPrefix: config.KeyPrefix}, nil
}

func (r *SnapshotRepository) Load(ctx context.Context) (domain.MonitorSnapshot, error) {
	data, err := r.client.Get(ctx, r.snapshotKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MonitorSnapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.MonitorSnapshot{}, fmt.Errorf("get monitor snapshot: %w", err)
	}

	var stored snapshotJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.MonitorSnapshot{}, fmt.Errorf("decode monitor snapshot: %w: %w", domain.ErrCorruptState, err)
	}

	snapshot := domain.NewMonitorSnapshot(stored.TakenAt)
	for id, entry := range stored.Entries {
		snapshot.Entries[domain.PlatformID(id)] = domain.SnapshotEntry{
			State:     domain.LivenessState(entry.State),
			Since:     entry.Since,
			Duration:  time.Duration(entry.DurationSeconds * float64(time.Second)),
			CheckedAt: entry.CheckedAt,
		}
	}

	return snapshot, nil
}

// Save replaces the snapshot with a single SET.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot domain.MonitorSnapshot) error {
	stored := snapshotJSON{TakenAt: snapshot.TakenAt.UTC(), Entries: make(map[string]entryJSON, len(snapshot.Entries))}
	for id, entry := range snapshot.Entries {
		stored.Entries[string(id)] = entryJSON{
			State:           string(entry.State),
			Since:           entry.Since.UTC(),
			DurationSeconds: entry.Duration.Seconds(),
			CheckedAt:       entry.CheckedAt.UTC(),
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode monitor snapshot: %w", err)
	}

	if err := r.client.Set(ctx, r.snapshotKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("set monitor snapshot: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) sessionKey(id domain.PlatformID) string {
	return r.keyPrefix + "session:" + string(id)
}

func (r *Repository) indexKey() string {
	return r.keyPrefix + "sessions"
}

func (r *SnapshotRepository) snapshotKey() string {
	return r.keyPrefix + "monitor:snapshot"
}

func toRecordJSON(record domain.SessionRecord) recordJSON {
	return recordJSON{
		PlatformID:        string(record.PlatformID),
		Status:            string(record.Status),
		TokenRef:          record.TokenRef,
		ChallengeIssuedAt: record.ChallengeIssuedAt.UTC(),
		LoggedInAt:        record.LoggedInAt.UTC(),
		LastCheckedAt:     record.LastCheckedAt.UTC(),
	}
}

func decodeRecord(data []byte) (domain.SessionRecord, error) {
	var stored recordJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("decode session record: %w: %w", domain.ErrCorruptState, err)
	}

	status := domain.SessionStatus(stored.Status)
	if !status.Valid() {
		status = domain.StatusNotStarted
	}

	return domain.SessionRecord{
		PlatformID:        domain.PlatformID(stored.PlatformID),
		Status:            status,
		TokenRef:          stored.TokenRef,
		ChallengeIssuedAt: stored.ChallengeIssuedAt,
		LoggedInAt:        stored.LoggedInAt,
		LastCheckedAt:     stored.LastCheckedAt,
	}, nil
}
