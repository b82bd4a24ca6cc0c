// Package sandbox runs the external PKI toolchain under a fixed allow-list,
// a minimal environment and a hard timeout.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sort"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the child is killed.
const waitDelay = 2 * time.Second

// RunResult is the raw outcome of a process run.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
	// Err is set when the process could not be started or did not exit cleanly.
	Err error
}

// Runner starts child processes with a fixed working directory and environment.
// Nothing from the parent environment is inherited.
type Runner struct {
	workdir string
	env     []string
}

// NewRunner builds a runner. path becomes PATH; extra entries are appended in key order.
func NewRunner(workdir, path string, extra map[string]string) *Runner {
	env := []string{"PATH=" + path, "LC_ALL=C"}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return &Runner{workdir: workdir, env: env}
}

// Env returns a copy of the environment handed to children.
func (r *Runner) Env() []string {
	return append([]string(nil), r.env...)
}

// Run executes bin with args and waits at most timeout. On timeout the child is
// killed and its stdout discarded.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, bin string, args ...string) RunResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = r.workdir
	cmd.Env = r.env
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		Err:      err,
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.Stdout = ""
		res.ExitCode = -1
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
	}
	return res
}
