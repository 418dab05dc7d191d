package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	snapshotPathKey  = "snapshot.path"
	snapshotFileName = "monitor_snapshot.toml"
)

type SnapshotRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

func NewSnapshotRepository(cfg *viper.Viper) (*SnapshotRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path, err := resolvePath(cfg.GetString(snapshotPathKey), snapshotFileName)
	if err != nil {
		return nil, err
	}

	return &SnapshotRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *SnapshotRepository) Load(ctx context.Context) (domain.MonitorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MonitorSnapshot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.MonitorSnapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.MonitorSnapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}

	var file snapshotFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.MonitorSnapshot{}, fmt.Errorf("decode snapshot file: %w: %w", domain.ErrCorruptState, err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.MonitorSnapshot{}, err
	}

	return fromSnapshotSchema(file), nil
}

// Save replaces the whole snapshot in one rename.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot domain.MonitorSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := lockFile(ctx, r.path)
	if err != nil {
		return err
	}
	defer unlock()

	file := toSnapshotSchema(snapshot)
	file.applyDefaults()

	return writeTOMLFile(r.path, file)
}

func toSnapshotSchema(snapshot domain.MonitorSnapshot) snapshotFileSchema {
	entries := make([]snapshotEntrySchema, 0, len(snapshot.Entries))
	for id, entry := range snapshot.Entries {
		entries = append(entries, snapshotEntrySchema{
			PlatformID:      string(id),
			State:           string(entry.State),
			Since:           formatTime(entry.Since),
			DurationSeconds: entry.Duration.Seconds(),
			CheckedAt:       formatTime(entry.CheckedAt),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PlatformID < entries[j].PlatformID })

	return snapshotFileSchema{
		TakenAt: formatTime(snapshot.TakenAt),
		Entries: entries,
	}
}

func fromSnapshotSchema(file snapshotFileSchema) domain.MonitorSnapshot {
	snapshot := domain.NewMonitorSnapshot(parseTime(file.TakenAt))
	for _, entry := range file.Entries {
		snapshot.Entries[domain.PlatformID(entry.PlatformID)] = domain.SnapshotEntry{
			State:     domain.LivenessState(entry.State),
			Since:     parseTime(entry.Since),
			Duration:  time.Duration(entry.DurationSeconds * float64(time.Second)),
			CheckedAt: parseTime(entry.CheckedAt),
		}
	}

	return snapshot
}
