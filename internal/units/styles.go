package units

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// Styles filters every stylesheet it sees through the post-processor commands
// in order, each reading CSS on stdin and writing the result to stdout. With
// no commands it passes files through untouched.
func Styles(commands []string) (engine.Unit, error) {
	for i, c := range commands {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("style post-processor %d: empty command", i)
		}
	}
	return engine.Func("styles", func(ctx context.Context, files engine.Files, p engine.Pipeline) error {
		if len(commands) == 0 {
			return nil
		}
		for name, f := range files {
			for _, c := range commands {
				out, err := filter(ctx, p.Directory(), c, f.Contents)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				f.Contents = out
			}
		}
		return nil
	}), nil
}

func filter(ctx context.Context, dir, cmdline string, in []byte) ([]byte, error) {
	// #nosec G204 -- commands come from the project's style-post-processor module
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(in)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("post-processor %q: %w: %s", cmdline, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
