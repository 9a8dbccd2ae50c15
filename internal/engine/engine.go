// Package engine translates install/uninstall requests into the right
// manager CLI invocation and turns the subprocess outcome into a structured
// result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/history"
	"github.com/blackwell-systems/winpacman/internal/runner"
)

// Request describes one install or uninstall. Version targets a specific
// release and is honored only by winget installs.
type Request struct {
	Op        core.OpType
	PackageID string
	Manager   core.Manager
	Version   string
}

// commandRunner is the subset of runner.Runner the engine needs; tests
// substitute a fake.
type commandRunner interface {
	Run(ctx context.Context, spec runner.Spec) (runner.Result, error)
}

// Rescanner refreshes the installed inventory after a successful operation.
type Rescanner interface {
	RefreshInstalled(ctx context.Context) error
}

// Engine runs package operations. Operations on the same (manager, package)
// pair are serialized; distinct packages proceed in parallel.
type Engine struct {
	runner  commandRunner
	history *history.Log
	rescan  Rescanner
	log     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds an Engine. history and rescan may be nil; the corresponding
// steps are then skipped.
func New(r commandRunner, hist *history.Log, rescan Rescanner, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		runner:  r,
		history: hist,
		rescan:  rescan,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Run executes the request end to end: template selection, subprocess run,
// result classification, history append, and (on success) an installed
// rescan. onProgress, when non-nil, receives phase transitions and streamed
// child output lines.
func (e *Engine) Run(ctx context.Context, req Request, onProgress func(core.ProgressEvent)) (core.OperationResult, error) {
	emit := func(ev core.ProgressEvent) {
		if onProgress != nil {
			ev.Provider = req.Manager
			onProgress(ev)
		}
	}

	spec, err := e.commandFor(req)
	if err != nil {
		return core.OperationResult{Success: false, Message: err.Error()}, err
	}
	spec.OnLine = func(line string) {
		emit(core.ProgressEvent{Phase: core.PhaseRunning, Message: line})
	}

	unlock := e.lock(req.Manager, req.PackageID)
	defer unlock()

	emit(core.ProgressEvent{Phase: core.PhaseStarting})
	e.log.Info("running package operation",
		zap.String("op", string(req.Op)),
		zap.String("package", req.PackageID),
		zap.String("manager", string(req.Manager)))

	started := time.Now()
	raw, runErr := e.runner.Run(ctx, spec)
	result, err := e.classify(req, raw, runErr)

	e.record(req, result)

	if err != nil {
		emit(core.ProgressEvent{Phase: core.PhaseFailed, Message: result.Message})
		e.log.Warn("package operation failed",
			zap.String("op", string(req.Op)),
			zap.String("package", req.PackageID),
			zap.Int("exit_code", result.ExitCode),
			zap.Error(err))
		return result, err
	}

	emit(core.ProgressEvent{Phase: core.PhaseDone, Message: result.Message})
	e.log.Info("package operation finished",
		zap.String("op", string(req.Op)),
		zap.String("package", req.PackageID),
		zap.Duration("took", time.Since(started)))

	if e.rescan != nil {
		// The installed view should reflect the change; a rescan failure
		// does not retract a completed operation.
		if rerr := e.rescan.RefreshInstalled(ctx); rerr != nil {
			e.log.Warn("post-operation inventory rescan failed", zap.Error(rerr))
		}
	}
	return result, nil
}

// commandFor selects the manager's command template. Uninstalls without a
// real manager attribution are refused before anything spawns.
func (e *Engine) commandFor(req Request) (runner.Spec, error) {
	if req.PackageID == "" {
		return runner.Spec{}, core.NewError(core.KindOperationFailed, "empty package id")
	}
	if req.Op == core.OpUninstall && (req.Manager == core.ManagerUnknown || req.Manager == "") {
		return runner.Spec{}, core.NewError(core.KindUnattributed,
			"cannot uninstall %q: no manager owns it; attribute it first", req.PackageID)
	}

	timeout := runner.InstallTimeout
	if req.Op == core.OpUninstall {
		timeout = runner.UninstallTimeout
	}

	bin, err := req.Manager.Binary()
	if err != nil {
		return runner.Spec{}, core.NewError(core.KindOperationFailed,
			"manager %q cannot perform %s operations", req.Manager, req.Op)
	}

	switch req.Manager {
	case core.ManagerWinGet:
		if req.Op == core.OpInstall {
			args := []string{"install", "--id", req.PackageID}
			if req.Version != "" {
				args = append(args, "--version", req.Version)
			}
			args = append(args, "--accept-source-agreements", "--accept-package-agreements")
			return runner.Spec{Name: bin, Args: args, Timeout: timeout}, nil
		}
		return runner.Spec{Name: bin, Args: []string{"uninstall", "--id", req.PackageID}, Timeout: timeout}, nil

	case core.ManagerChocolatey:
		return runner.Spec{Name: bin, Args: []string{string(req.Op), req.PackageID, "-y"}, Timeout: timeout}, nil

	case core.ManagerNPM:
		// npm is npm.cmd on Windows; CreateProcess cannot spawn it directly.
		return runner.Spec{
			Name:     bin,
			Args:     []string{string(req.Op), "-g", req.PackageID},
			Timeout:  timeout,
			UseShell: runtime.GOOS == "windows",
		}, nil

	default: // scoop, cargo
		return runner.Spec{Name: bin, Args: []string{string(req.Op), req.PackageID}, Timeout: timeout}, nil
	}
}

// classify turns the raw subprocess outcome into an OperationResult and the
// matching typed error.
func (e *Engine) classify(req Request, raw runner.Result, runErr error) (core.OperationResult, error) {
	result := core.OperationResult{
		Stdout:   raw.Stdout,
		Stderr:   raw.Stderr,
		ExitCode: raw.Code,
	}

	if runErr != nil {
		var te *runner.TimeoutError
		switch {
		case errors.Is(runErr, runner.ErrNotFound):
			result.Message = runErr.Error()
			return result, core.WrapError(core.KindProviderUnavailable, runErr,
				"%s is not available", req.Manager)
		case errors.As(runErr, &te):
			result.Stdout = te.Partial.Stdout
			result.Stderr = te.Partial.Stderr
			result.Message = runErr.Error()
			return result, core.WrapError(core.KindOperationTimeout, runErr,
				"%s %s timed out", req.Op, req.PackageID)
		default:
			result.Message = runErr.Error()
			return result, core.WrapError(core.KindOperationFailed, runErr,
				"failed to run %s", req.Manager)
		}
	}

	if raw.Code != 0 {
		result.Message = deriveMessage(raw)
		if elevationRequired(raw) {
			return result, core.WrapError(core.KindPermissionDenied,
				&core.OperationError{Op: req.Op, PackageID: req.PackageID, Manager: req.Manager, Result: result},
				"%s requires elevation; retry from an administrator shell", req.Op)
		}
		return result, &core.OperationError{Op: req.Op, PackageID: req.PackageID, Manager: req.Manager, Result: result}
	}

	result.Success = true
	result.Message = fmt.Sprintf("%s of %s completed", req.Op, req.PackageID)
	return result, nil
}

// deriveMessage picks the most useful failure text: stderr, then stdout,
// then the bare exit code.
func deriveMessage(raw runner.Result) string {
	if msg := lastNonEmptyLine(raw.Stderr); msg != "" {
		return msg
	}
	if msg := lastNonEmptyLine(raw.Stdout); msg != "" {
		return msg
	}
	return fmt.Sprintf("exit code %d", raw.Code)
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// elevationMarkers are the phrases the managers print when they needed an
// administrator token.
var elevationMarkers = []string{
	"access is denied",
	"requires elevation",
	"run as administrator",
	"administrator rights",
	"administrative rights",
	"elevated permissions",
}

func elevationRequired(raw runner.Result) bool {
	combined := strings.ToLower(raw.Stderr + "\n" + raw.Stdout)
	for _, marker := range elevationMarkers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}

// record appends the outcome to the operation history. Best-effort by
// contract.
func (e *Engine) record(req Request, result core.OperationResult) {
	if e.history == nil {
		return
	}
	e.history.Append(history.Entry{
		Op:        req.Op,
		PackageID: req.PackageID,
		Manager:   req.Manager,
		Success:   result.Success,
		Message:   result.Message,
		Timestamp: time.Now().UTC(),
	})
}

// lock serializes operations per (manager, package) pair.
func (e *Engine) lock(manager core.Manager, packageID string) func() {
	key := string(manager) + "\x00" + strings.ToLower(packageID)

	e.mu.Lock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}
