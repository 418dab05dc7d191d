package ports

import (
	"context"
	"time"
)

type FileInfo struct {
	Size    int64
	ModTime time.Time
}

// Runtime introspects the isolated environment a platform's browser runs in.
type Runtime interface {
	IsRunning(ctx context.Context, container string) (bool, error)
	StatFile(ctx context.Context, container string, path string) (FileInfo, error)
}
