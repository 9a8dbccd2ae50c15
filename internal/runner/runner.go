// Package runner executes external package-manager CLIs with deadlines and
// structured capture of their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Default deadlines per operation class. Overridable per call via Spec.Timeout.
const (
	ListTimeout      = 60 * time.Second
	InstallTimeout   = 300 * time.Second
	UninstallTimeout = 180 * time.Second
)

// Result carries a completed subprocess's captured state.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// Spec describes one subprocess invocation.
type Spec struct {
	Name string
	Args []string

	// Timeout bounds the run; zero means ListTimeout.
	Timeout time.Duration

	// UseShell routes the invocation through the platform shell. Required on
	// Windows for .cmd/.bat wrappers such as npm.cmd, which CreateProcess
	// cannot spawn directly.
	UseShell bool

	// OnLine, when set, receives each stdout line as it is produced.
	OnLine func(line string)
}

// ErrNotFound indicates the target binary is missing from PATH.
var ErrNotFound = errors.New("executable not found in PATH")

// TimeoutError is returned when the deadline elapses. Partial output captured
// before termination is retained.
type TimeoutError struct {
	Spec    Spec
	Elapsed time.Duration
	Partial Result
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Spec.Name, e.Elapsed.Round(time.Second))
}

// Runner executes subprocesses. The zero value is not usable; call New.
type Runner struct {
	log *zap.Logger

	// lookPath and command are swappable for tests.
	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New creates a Runner. A nil logger is replaced with a no-op logger.
func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:      log,
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
}

// Run executes the spec and returns the captured result. The returned error
// discriminates three cases: ErrNotFound (binary missing, with advice about
// the absent ecosystem), TimeoutError (deadline hit, child terminated,
// partial output attached) and plain spawn errors. A non-zero exit code is
// NOT an error here; callers inspect Result.Code.
func (r *Runner) Run(ctx context.Context, spec Spec) (Result, error) {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = ListTimeout
	}

	name, args := spec.Name, spec.Args
	if spec.UseShell && runtime.GOOS == "windows" {
		args = append([]string{"/C", name}, args...)
		name = "cmd"
	}

	if _, err := r.lookPath(name); err != nil {
		return Result{}, fmt.Errorf("%q is not installed or not on PATH (is its package ecosystem set up?): %w", spec.Name, ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := r.command(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	if spec.OnLine != nil {
		cmd.Stdout = &lineWriter{buf: &stdout, onLine: spec.OnLine}
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	start := time.Now()
	r.log.Debug("spawning subprocess",
		zap.String("name", spec.Name),
		zap.Strings("args", spec.Args),
		zap.Duration("timeout", timeout))

	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		r.log.Warn("subprocess timed out",
			zap.String("name", spec.Name),
			zap.Duration("elapsed", elapsed))
		return res, &TimeoutError{Spec: spec, Elapsed: elapsed, Partial: res}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Code = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to spawn %s: %w", spec.Name, err)
	}

	res.Code = 0
	return res, nil
}

// lineWriter tees writes into buf while invoking onLine per complete line.
type lineWriter struct {
	buf     *bytes.Buffer
	pending []byte
	onLine  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.pending = append(w.pending, p[:n]...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(w.pending[:idx], "\r"))
		w.pending = w.pending[idx+1:]
		w.onLine(line)
	}
	return n, err
}
