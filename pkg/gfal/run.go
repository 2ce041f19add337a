// Package gfal wraps the grid file access tools (gfal-copy, gfal-ls)
// behind the transfer.Copier and listing capabilities. The actual process
// invocation is injectable so the orchestration logic is testable without
// a grid environment.
package gfal

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// RunFunc invokes an external command and returns its exit code with the
// captured stdout and stderr. A non-nil error means the command could not
// be started at all; a non-zero exit is not an error at this level.
type RunFunc func(ctx context.Context, env []string, name string, args ...string) (exit int, stdout, stderr string, err error)

// Run is the real RunFunc. A nil env inherits the process environment;
// a non-nil env replaces it entirely.
func Run(ctx context.Context, env []string, name string, args ...string) (int, string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if env != nil {
		cmd.Env = env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return 0, stdout.String(), stderr.String(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), stdout.String(), stderr.String(), nil
	}
	return -1, stdout.String(), stderr.String(), err
}

// JoinURL joins URL parts, collapsing the slashes in between to one and
// dropping "." parts after the first.
func JoinURL(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 && strings.Trim(p, "/") == "." {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return ""
	}
	if len(kept) == 1 {
		return kept[0]
	}
	out := strings.TrimRight(kept[0], "/")
	for i, p := range kept[1:] {
		if i == len(kept)-2 {
			out += "/" + strings.TrimLeft(p, "/")
		} else {
			out += "/" + strings.Trim(p, "/")
		}
	}
	return strings.ReplaceAll(out, "/./", "/")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
