// Package docker introspects browser containers through the docker CLI.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
)

var ErrUnavailable = errors.New("docker command unavailable")

type runFunc func(ctx context.Context, args ...string) (stdout string, stderr string, err error)

type Runtime struct {
	run runFunc
}

var _ ports.Runtime = (*Runtime)(nil)

func NewRuntime() *Runtime {
	return &Runtime{run: runDockerCommand}
}

// IsRunning reports the container's running state. A container that does
// not exist is not running.
func (r *Runtime) IsRunning(ctx context.Context, container string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	stdout, stderr, err := r.run(ctx, "inspect", "-f", "{{.State.Running}}", container)
	if err != nil {
		if isNoSuchObject(stderr) {
			return false, nil
		}
		return false, formatError("inspect", container, err, stderr)
	}

	running, err := strconv.ParseBool(strings.TrimSpace(stdout))
	if err != nil {
		return false, fmt.Errorf("parse running state of %q: %w", container, err)
	}

	return running, nil
}

// StatFile reads size and modification time of path inside the container.
func (r *Runtime) StatFile(ctx context.Context, container string, path string) (ports.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return ports.FileInfo{}, err
	}

	stdout, stderr, err := r.run(ctx, "exec", container, "stat", "-c", "%s %Y", path)
	if err != nil {
		if strings.Contains(stderr, "No such file") {
			return ports.FileInfo{}, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, path)
		}
		return ports.FileInfo{}, formatError("exec stat", container, err, stderr)
	}

	return parseStat(stdout)
}

func parseStat(stdout string) (ports.FileInfo, error) {
	fields := strings.Fields(stdout)
	if len(fields) != 2 {
		return ports.FileInfo{}, fmt.Errorf("unexpected stat output %q", strings.TrimSpace(stdout))
	}

	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return ports.FileInfo{}, fmt.Errorf("parse file size: %w", err)
	}
	epoch, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return ports.FileInfo{}, fmt.Errorf("parse modification time: %w", err)
	}

	return ports.FileInfo{Size: size, ModTime: time.Unix(epoch, 0).UTC()}, nil
}

func isNoSuchObject(stderr string) bool {
	return strings.Contains(stderr, "No such object") || strings.Contains(stderr, "No such container")
}

func runDockerCommand(ctx context.Context, args ...string) (string, string, error) {
	path, err := exec.LookPath("docker")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate docker command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func formatError(op string, container string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("docker %s %q: %w", op, container, err)
	}

	return fmt.Errorf("docker %s %q: %w: %s", op, container, err, stderr)
}
