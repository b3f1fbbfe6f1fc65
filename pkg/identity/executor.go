package identity

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Executor runs a host CLI query script and returns its output lines,
// allowing for dependency injection and testing. Implementations may fail;
// the context swallows every failure and degrades to default values.
type Executor interface {
	Execute(ctx context.Context, script string) ([]string, error)
}

// shellExecutor implements Executor using actual shell command execution.
type shellExecutor struct {
	shell   string
	timeout time.Duration
}

// NewShellExecutor returns an Executor that runs scripts via shell ("sh" when
// empty) with a per-query timeout (5s when zero).
func NewShellExecutor(shell string, timeout time.Duration) Executor {
	if shell == "" {
		shell = "sh"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &shellExecutor{shell: shell, timeout: timeout}
}

// Execute runs a query script with a timeout and returns non-empty output lines.
// It uses context.WithTimeout to prevent host CLI queries from hanging indefinitely.
func (e *shellExecutor) Execute(ctx context.Context, script string) ([]string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, e.shell, "-c", script)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", script, err)
	}

	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines, nil
}
