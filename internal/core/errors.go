package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-discriminable classification for core
// errors. The GUI switches on Kind; messages are for humans.
type ErrorKind string

const (
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindProviderParse       ErrorKind = "provider_parse"
	KindSyncAborted         ErrorKind = "sync_aborted"
	KindCacheCorrupt        ErrorKind = "cache_corrupt"
	KindOperationFailed     ErrorKind = "operation_failed"
	KindOperationTimeout    ErrorKind = "operation_timeout"
	KindUnattributed        ErrorKind = "unattributed_package"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindConfigInvalid       ErrorKind = "config_invalid"
)

// Error is a classified core error. It wraps an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the ErrorKind from err, or "" if err carries none. Any
// error in the chain exposing a Kind method counts, so OperationError
// classifies without a wrapper; an explicit *Error wrapper takes precedence.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var kinder interface{ Kind() ErrorKind }
	if errors.As(err, &kinder) {
		return kinder.Kind()
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// OperationError is returned for failed install/uninstall runs. It carries
// the captured subprocess output alongside the classification.
type OperationError struct {
	Op        OpType
	PackageID string
	Manager   Manager
	Result    OperationResult
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed for %s (%s): %s", e.Op, e.PackageID, e.Manager, e.Result.Message)
}

// Kind classifies an operation error for the façade.
func (e *OperationError) Kind() ErrorKind { return KindOperationFailed }
