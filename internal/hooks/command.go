package hooks

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// Environment variables exported to shell hooks.
const (
	EnvSource      = "SITEBUILDER_SOURCE"
	EnvDestination = "SITEBUILDER_DESTINATION"
	EnvCheckpoint  = "SITEBUILDER_CHECKPOINT"
)

// Command returns a hook that runs cmdline through `sh -c` in the pipeline's
// base directory. Output goes to the process stdout/stderr.
func Command(c Checkpoint, cmdline string) Func {
	return func(ctx context.Context, p engine.Pipeline) error {
		return RunShell(ctx, p.Directory(), cmdline,
			EnvSource+"="+p.Source(),
			EnvDestination+"="+p.Destination(),
			EnvCheckpoint+"="+c.String(),
		)
	}
}

// RunShell runs cmdline through `sh -c` in dir with env appended to the
// process environment.
func RunShell(ctx context.Context, dir, cmdline string, env ...string) error {
	// #nosec G204 -- command lines come from the project's own configuration
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), env...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %q failed: %w", cmdline, err)
	}
	return nil
}
