package runner

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses POSIX sh")
	}

	r := New(nil)
	res, err := r.Run(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Code != 0 {
		t.Errorf("Code = %d, want 0", res.Code)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses POSIX sh")
	}

	r := New(nil)
	res, err := r.Run(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "echo nope >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Code != 3 {
		t.Errorf("Code = %d, want 3", res.Code)
	}
	if !strings.Contains(res.Stderr, "nope") {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestRunNotFound(t *testing.T) {
	r := New(nil)
	_, err := r.Run(context.Background(), Spec{Name: "definitely-not-a-real-binary-xyz"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "definitely-not-a-real-binary-xyz") {
		t.Errorf("error should name the missing binary: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses POSIX sleep")
	}

	r := New(nil)
	_, err := r.Run(context.Background(), Spec{
		Name:    "sh",
		Args:    []string{"-c", "echo partial; sleep 10"},
		Timeout: 200 * time.Millisecond,
	})

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if !strings.Contains(te.Partial.Stdout, "partial") {
		t.Errorf("partial output lost: %q", te.Partial.Stdout)
	}
}

func TestRunStreamsLines(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses POSIX sh")
	}

	var lines []string
	r := New(nil)
	_, err := r.Run(context.Background(), Spec{
		Name:   "sh",
		Args:   []string{"-c", "echo one; echo two"},
		OnLine: func(l string) { lines = append(lines, l) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("lines = %v", lines)
	}
}

func TestDefaultTimeouts(t *testing.T) {
	if ListTimeout != 60*time.Second {
		t.Errorf("ListTimeout = %v", ListTimeout)
	}
	if InstallTimeout != 300*time.Second {
		t.Errorf("InstallTimeout = %v", InstallTimeout)
	}
	if UninstallTimeout != 180*time.Second {
		t.Errorf("UninstallTimeout = %v", UninstallTimeout)
	}
}
