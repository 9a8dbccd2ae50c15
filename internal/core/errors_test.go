package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindDiscrimination(t *testing.T) {
	base := NewError(KindUnattributed, "package %s has no attributed manager", "foo")

	if !IsKind(base, KindUnattributed) {
		t.Error("IsKind should match the original kind")
	}
	if IsKind(base, KindOperationFailed) {
		t.Error("IsKind should not match a different kind")
	}

	// Kind survives wrapping.
	wrapped := fmt.Errorf("uninstall refused: %w", base)
	if KindOf(wrapped) != KindUnattributed {
		t.Errorf("KindOf(wrapped) = %q, want %q", KindOf(wrapped), KindUnattributed)
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(KindProviderUnavailable, cause, "chocolatey feed unreachable")

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
	if KindOf(err) != KindProviderUnavailable {
		t.Errorf("KindOf = %q", KindOf(err))
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain errors carry no kind")
	}
}

func TestOperationError(t *testing.T) {
	opErr := &OperationError{
		Op:        OpInstall,
		PackageID: "vlc",
		Manager:   ManagerChocolatey,
		Result:    OperationResult{Message: "exit code 1", ExitCode: 1},
	}

	if opErr.Kind() != KindOperationFailed {
		t.Errorf("Kind() = %q", opErr.Kind())
	}
	msg := opErr.Error()
	for _, want := range []string{"install", "vlc", "chocolatey", "exit code 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}

func TestOperationErrorDiscriminable(t *testing.T) {
	var err error = &OperationError{
		Op:        OpUninstall,
		PackageID: "vlc",
		Manager:   ManagerChocolatey,
		Result:    OperationResult{Message: "exit code 1", ExitCode: 1},
	}

	// A bare operation error must classify without a wrapper, and the kind
	// must survive fmt wrapping.
	if !IsKind(err, KindOperationFailed) {
		t.Error("bare OperationError should carry KindOperationFailed")
	}
	if KindOf(fmt.Errorf("uninstall: %w", err)) != KindOperationFailed {
		t.Error("kind should survive wrapping")
	}

	// An explicit classification wrapping it wins.
	elevated := WrapError(KindPermissionDenied, err, "needs elevation")
	if KindOf(elevated) != KindPermissionDenied {
		t.Errorf("KindOf(elevated) = %q, want %q", KindOf(elevated), KindPermissionDenied)
	}
}
