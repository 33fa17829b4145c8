package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/kballard/go-shellquote"
)

// Hook is an optional command run in the new release directory after the
// symlink swap, typically a service reload.
type Hook struct {
	Command string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewHook builds a Hook from a configured command line. Returns nil for an
// empty command. The command is split with shell quoting rules but executed
// directly, without a shell.
func NewHook(command string, timeout time.Duration, logger *slog.Logger) (*Hook, error) {
	if command == "" {
		return nil, nil
	}
	// Fail at startup on unparseable commands, not on the first deploy.
	if _, err := shellquote.Split(command); err != nil {
		return nil, fmt.Errorf("invalid post-deploy command %q: %w", command, err)
	}
	return &Hook{Command: command, Timeout: timeout, Logger: logger}, nil
}

// Run executes the hook command in dir.
func (h *Hook) Run(ctx context.Context, dir string) error {
	argv, err := shellquote.Split(h.Command)
	if err != nil {
		return fmt.Errorf("failed to parse post-deploy command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	h.Logger.Info("running post-deploy hook", "command", h.Command, "dir", dir)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("post-deploy command failed: %w (output: %s)", err, output)
	}

	if len(output) > 0 {
		h.Logger.Info("post-deploy hook output", "output", string(output))
	}
	return nil
}
