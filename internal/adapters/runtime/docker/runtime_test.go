package docker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeIsRunningUsesDockerInspect(t *testing.T) {
	t.Parallel()

	called := false
	runtime := &Runtime{
		run: func(ctx context.Context, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"inspect", "-f", "{{.State.Running}}", "douyin-chrome"}, args)
			return "true\n", "", nil
		},
	}

	running, err := runtime.IsRunning(context.Background(), "douyin-chrome")
	require.NoError(t, err)
	assert.True(t, running)
	assert.True(t, called)
}

func TestRuntimeIsRunningTreatsMissingContainerAsStopped(t *testing.T) {
	t.Parallel()

	runtime := &Runtime{
		run: func(ctx context.Context, args ...string) (string, string, error) {
			return "", "Error: No such object: douyin-chrome", errors.New("exit status 1")
		},
	}

	running, err := runtime.IsRunning(context.Background(), "douyin-chrome")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestRuntimeIsRunningReturnsClearError(t *testing.T) {
	t.Parallel()

	runtime := &Runtime{
		run: func(ctx context.Context, args ...string) (string, string, error) {
			return "", "Cannot connect to the Docker daemon", errors.New("exit status 1")
		},
	}

	_, err := runtime.IsRunning(context.Background(), "douyin-chrome")
	require.Error(t, err)
	assert.ErrorContains(t, err, "docker inspect")
	assert.ErrorContains(t, err, "douyin-chrome")
	assert.ErrorContains(t, err, "Cannot connect to the Docker daemon")
}

func TestRuntimeStatFileParsesSizeAndMtime(t *testing.T) {
	t.Parallel()

	runtime := &Runtime{
		run: func(ctx context.Context, args ...string) (string, string, error) {
			assert.Equal(t, []string{"exec", "douyin-chrome", "stat", "-c", "%s %Y", "/data/Cookies"}, args)
			return "40960 1771066800\n", "", nil
		},
	}

	info, err := runtime.StatFile(context.Background(), "douyin-chrome", "/data/Cookies")
	require.NoError(t, err)
	assert.Equal(t, int64(40960), info.Size)
	assert.Equal(t, time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC), info.ModTime)
}

func TestRuntimeStatFileMissingArtifact(t *testing.T) {
	t.Parallel()

	runtime := &Runtime{
		run: func(ctx context.Context, args ...string) (string, string, error) {
			return "", "stat: cannot stat '/data/Cookies': No such file or directory", errors.New("exit status 1")
		},
	}

	_, err := runtime.StatFile(context.Background(), "douyin-chrome", "/data/Cookies")
	require.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestRuntimeStatFileRejectsGarbage(t *testing.T) {
	t.Parallel()

	runtime := &Runtime{
		run: func(ctx context.Context, args ...string) (string, string, error) {
			return "regular file\n", "", nil
		},
	}

	_, err := runtime.StatFile(context.Background(), "douyin-chrome", "/data/Cookies")
	require.ErrorContains(t, err, "unexpected stat output")
}

func TestRuntimeHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	runtime := &Runtime{
		run: func(ctx context.Context, args ...string) (string, string, error) {
			t.Fatal("docker must not run after cancellation")
			return "", "", nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runtime.IsRunning(ctx, "douyin-chrome")
	require.ErrorIs(t, err, context.Canceled)
}
