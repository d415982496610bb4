package executor

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
)

// ScriptRotator rotates the agent credential by running an external
// command, typically a wrapper around the provider's token refresh.
type ScriptRotator struct {
	command string
	args    []string
	timeout time.Duration
	logger  *logging.Logger
}

// NewScriptRotator creates a rotator that runs the given command.
func NewScriptRotator(command string, args []string, timeout time.Duration, logger *logging.Logger) *ScriptRotator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ScriptRotator{command: command, args: args, timeout: timeout, logger: logger}
}

// Rotate runs the rotation command with a bounded timeout.
func (r *ScriptRotator) Rotate(ctx context.Context) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.NewExecutorError("credential rotation failed", err).
			WithOutput(strings.TrimSpace(string(out)))
	}
	r.logger.Info("rotated agent credential", "command", r.command)
	return nil
}

// NopRotator satisfies CredentialRotator when no rotation command is
// configured. Rotate reports an error so the retry layer aborts instead
// of retrying with the same dead credential.
type NopRotator struct{}

// Rotate always fails.
func (NopRotator) Rotate(ctx context.Context) error {
	return errors.NewExecutorError("no credential rotation command configured", nil)
}
