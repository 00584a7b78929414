package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rancher/distros-deploy-framework/shared"
)

const (
	// Ansible's "partial task failure" exit code.
	ansiblePartialFailure = 2

	// Sentinel exit codes recorded when the process never produced one.
	timeoutExitCode      = 124
	startFailureExitCode = 127
)

// Executor runs one stage's external command and reports its exit code.
// Errors are reserved for problems running anything at all, like an
// unwritable log file; command failures come back as exit codes.
type Executor interface {
	RunStage(ctx context.Context, stage PlanStage, logPath string) (int, error)
}

// AnsibleExecutor invokes ansible-playbook for each stage, capturing combined
// stdout/stderr to the stage log file.
type AnsibleExecutor struct {
	// Binary defaults to "ansible-playbook".
	Binary    string
	Inventory string
	WorkDir   string
	Timeout   time.Duration

	// BaseExtraVars are passed to every stage, e.g. kubernetes_version.
	// Stage-level extra vars override them.
	BaseExtraVars map[string]string
}

func (e *AnsibleExecutor) RunStage(ctx context.Context, stage PlanStage, logPath string) (int, error) {
	binary := e.Binary
	if binary == "" {
		binary = "ansible-playbook"
	}

	timeout := e.Timeout
	if stage.TimeoutMinutes > 0 {
		timeout = time.Duration(stage.TimeoutMinutes) * time.Minute
	}
	if timeout <= 0 {
		timeout = 25 * time.Minute
	}

	command := buildCommand(stage, binary, e.Inventory, e.WorkDir, e.BaseExtraVars)

	logFile, err := os.Create(logPath)
	if err != nil {
		return startFailureExitCode, fmt.Errorf("failed to create stage log %s: %w", logPath, err)
	}
	defer logFile.Close()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, command.Binary, command.Args...)
	cmd.Dir = command.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()

	shared.LogLevel("info", "Running stage %q with %v timeout: %s", stage.Name, timeout, command.Redacted())
	runErr := cmd.Run()

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		shared.LogLevel("warn", "Stage %q timed out after %v", stage.Name, timeout)
		return timeoutExitCode, nil
	}

	if runErr == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	// The command never started, e.g. binary not found.
	shared.LogLevel("warn", "Stage %q could not start: %v", stage.Name, runErr)

	return startFailureExitCode, nil
}
