package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	statePathKey     = "state.path"
	sessionsFileName = "sessions.toml"
)

// Repository keeps every platform's lifecycle state in one TOML file.
type Repository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.SessionRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path, err := resolvePath(cfg.GetString(statePathKey), sessionsFileName)
	if err != nil {
		return nil, err
	}

	return &Repository{path: path, mu: lockForPath(path)}, nil
}

func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) GetByID(ctx context.Context, id domain.PlatformID) (domain.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.SessionRecord{}, err
	}

	for _, entry := range file.Sessions {
		if entry.PlatformID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.SessionRecord{}, domain.ErrSessionNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	records := make([]domain.SessionRecord, 0, len(file.Sessions))
	for _, entry := range file.Sessions {
		records = append(records, fromSchema(entry))
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

func (r *Repository) Update(ctx context.Context, id domain.PlatformID, fn func(*domain.SessionRecord) error) (domain.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := lockFile(ctx, r.path)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	defer unlock()

	file, err := r.readSchema()
	if err != nil {
		if !errors.Is(err, domain.ErrCorruptState) {
			return domain.SessionRecord{}, err
		}
		// A corrupt file is replaced wholesale; its content is unrecoverable.
		file = sessionsFileSchema{}
	}

	index := -1
	record := domain.NewSessionRecord(id)
	for i, entry := range file.Sessions {
		if entry.PlatformID == string(id) {
			index = i
			record = fromSchema(entry)
			break
		}
	}

	if err := fn(&record); err != nil {
		return domain.SessionRecord{}, err
	}
	record.PlatformID = id

	if err := ctx.Err(); err != nil {
		return domain.SessionRecord{}, err
	}

	encoded := toSchema(record)
	if index >= 0 {
		file.Sessions[index] = encoded
	} else {
		file.Sessions = append(file.Sessions, encoded)
	}
	sort.SliceStable(file.Sessions, func(i, j int) bool {
		return file.Sessions[i].PlatformID < file.Sessions[j].PlatformID
	})
	file.applyDefaults()

	if err := writeTOMLFile(r.path, file); err != nil {
		return domain.SessionRecord{}, err
	}

	return record, nil
}

func (r *Repository) readSchema() (sessionsFileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sessionsFileSchema{}, nil
		}
		return sessionsFileSchema{}, fmt.Errorf("read sessions file: %w", err)
	}

	var file sessionsFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return sessionsFileSchema{}, fmt.Errorf("decode sessions file: %w: %w", domain.ErrCorruptState, err)
	}
	if err := file.validateVersion(); err != nil {
		return sessionsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func toSchema(record domain.SessionRecord) sessionSchema {
	return sessionSchema{
		PlatformID:        string(record.PlatformID),
		Status:            string(record.Status),
		TokenRef:          record.TokenRef,
		ChallengeIssuedAt: formatTime(record.ChallengeIssuedAt),
		LoggedInAt:        formatTime(record.LoggedInAt),
		LastCheckedAt:     formatTime(record.LastCheckedAt),
	}
}

func fromSchema(entry sessionSchema) domain.SessionRecord {
	status := domain.SessionStatus(entry.Status)
	if !status.Valid() {
		status = domain.StatusNotStarted
	}

	return domain.SessionRecord{
		PlatformID:        domain.PlatformID(entry.PlatformID),
		Status:            status,
		TokenRef:          entry.TokenRef,
		ChallengeIssuedAt: parseTime(entry.ChallengeIssuedAt),
		LoggedInAt:        parseTime(entry.LoggedInAt),
		LastCheckedAt:     parseTime(entry.LastCheckedAt),
	}
}
