// Package execx provides the tool-invocation helper used by every detector.
// It spawns an external analysis tool with a hard wall-clock budget, captures
// stdout and stderr separately, and classifies failures.
//
// A non-zero exit code is NOT a failure of the helper: analysis tools report
// findings through their exit status, so "ran and complained" is valid output
// to be parsed. Only spawn-level failures (binary missing, permission denied)
// and budget expiry are invocation failures.
package execx

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/vigil-dev/vigil/internal/errors"
)

// MaxOutputBytes is the maximum bytes captured per stream. Tool output past
// this ceiling is dropped and the corresponding Truncated flag is set.
const MaxOutputBytes = 1 << 20 // 1MB

// Spec defines a single tool invocation.
type Spec struct {
	// Command is the binary to run. Resolved via PATH unless absolute.
	Command string

	// Args are the command arguments.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout is the wall-clock budget. Zero means no budget.
	Timeout time.Duration

	// Env holds extra environment variables in KEY=VALUE form, appended
	// to the inherited environment.
	Env []string
}

// Result captures the outcome of a completed invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	// TruncatedStdout/TruncatedStderr indicate the stream exceeded
	// MaxOutputBytes and was cut off.
	TruncatedStdout bool
	TruncatedStderr bool
}

// Runner executes tool invocations. The interface exists so detectors can
// be tested against a fake without spawning processes.
type Runner interface {
	// Run executes the spec and returns the captured result.
	//
	// Errors are classified through the internal/errors sentinels:
	//   - errors.ErrToolNotFound: the binary could not be launched
	//   - errors.ErrToolTimeout: the budget expired and the process was killed
	//   - errors.ErrToolCanceled: the context was canceled
	//
	// A non-zero exit code returns (Result, nil).
	Run(ctx context.Context, spec Spec) (Result, error)

	// LookPath reports whether the named binary is resolvable.
	LookPath(file string) (string, error)
}

// OSRunner is the production Runner backed by os/exec.
type OSRunner struct{}

// Run implements Runner.
func (OSRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Command == "" {
		return Result{ExitCode: -1}, errors.ErrToolNotFound
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}

	// Give the process a short grace window after the context fires before
	// Wait returns, so pipes are not left dangling.
	cmd.WaitDelay = 2 * time.Second

	stdout := newCappedBuffer(MaxOutputBytes)
	stderr := newCappedBuffer(MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		Duration:        elapsed,
		TruncatedStdout: stdout.Truncated(),
		TruncatedStderr: stderr.Truncated(),
	}

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}

	// Budget expiry and cancellation take precedence over whatever exit
	// status the killed process reported.
	switch runCtx.Err() {
	case context.DeadlineExceeded:
		result.ExitCode = -1
		return result, errors.ErrToolTimeout
	case context.Canceled:
		result.ExitCode = -1
		return result, errors.ErrToolCanceled
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The tool ran to completion and reported findings via its
		// exit status. That is success for the helper.
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	// Everything else is a spawn-level failure: missing binary, permission
	// denied, unresolvable working directory.
	result.ExitCode = -1
	return result, errors.Join(errors.ErrToolNotFound, err)
}

// LookPath implements Runner.
func (OSRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// cappedBuffer is a bytes.Buffer that stops accepting input past a limit.
// Writes always report success so the child process never sees a broken pipe.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
