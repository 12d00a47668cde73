// Package ocreerr defines the error kinds the core surfaces to callers.
//
// Every operation in the library, context, container and event-dispatch
// layers returns one of these kinds (never a bare string or a panic) so a
// caller can branch on cause with errors.Is / the Is* helpers below. The
// kinds are thin wrappers over github.com/containerd/errdefs so they compose
// with anything else in the containerd ecosystem that already understands
// that vocabulary.
package ocreerr

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// InvalidArgument wraps err to report a malformed argument: null pointers,
// malformed IDs, malformed mount strings.
func InvalidArgument(err error) error { return errdefs.InvalidArgument(err) }

// InvalidArgumentf formats a new InvalidArgument error.
func InvalidArgumentf(format string, args ...any) error {
	return InvalidArgument(fmt.Errorf(format, args...))
}

// NotFound wraps err to report a missing container ID or runtime name.
func NotFound(err error) error { return errdefs.NotFound(err) }

// NotFoundf formats a new NotFound error.
func NotFoundf(format string, args ...any) error {
	return NotFound(fmt.Errorf(format, args...))
}

// Conflict wraps err to report a duplicate container ID, duplicate runtime
// registration, or duplicate workdir.
func Conflict(err error) error { return errdefs.AlreadyExists(err) }

// Conflictf formats a new Conflict error.
func Conflictf(format string, args ...any) error {
	return Conflict(fmt.Errorf(format, args...))
}

// WrongState wraps err to report an operation invalid for the container's
// current status.
func WrongState(err error) error { return errdefs.FailedPrecondition(err) }

// WrongStatef formats a new WrongState error.
func WrongStatef(format string, args ...any) error {
	return WrongState(fmt.Errorf(format, args...))
}

// Unsupported wraps err to report that the engine lacks an optional vtable
// entry (stop/pause/unpause).
func Unsupported(err error) error { return errdefs.NotImplemented(err) }

// Unsupportedf formats a new Unsupported error.
func Unsupportedf(format string, args ...any) error {
	return Unsupported(fmt.Errorf(format, args...))
}

// ResourceExhausted wraps err to report a full event queue, module slot
// table, or subscription table.
func ResourceExhausted(err error) error { return errdefs.ResourceExhausted(err) }

// ResourceExhaustedf formats a new ResourceExhausted error.
func ResourceExhaustedf(format string, args ...any) error {
	return ResourceExhausted(fmt.Errorf(format, args...))
}

// EngineError wraps err to report a runtime-engine vtable call failure.
func EngineError(err error) error { return errdefs.Unknown(err) }

// EngineErrorf formats a new EngineError error.
func EngineErrorf(format string, args ...any) error {
	return EngineError(fmt.Errorf(format, args...))
}

// IoError wraps err to report a failed filesystem operation.
func IoError(err error) error { return errdefs.Internal(err) }

// IoErrorf formats a new IoError error.
func IoErrorf(format string, args ...any) error {
	return IoError(fmt.Errorf(format, args...))
}

// IsInvalidArgument reports whether err (or any error it wraps) is an
// InvalidArgument error.
func IsInvalidArgument(err error) bool { return errdefs.IsInvalidArgument(err) }

// IsNotFound reports whether err (or any error it wraps) is a NotFound error.
func IsNotFound(err error) bool { return errdefs.IsNotFound(err) }

// IsConflict reports whether err (or any error it wraps) is a Conflict error.
func IsConflict(err error) bool { return errdefs.IsAlreadyExists(err) }

// IsWrongState reports whether err (or any error it wraps) is a WrongState
// error.
func IsWrongState(err error) bool { return errdefs.IsFailedPrecondition(err) }

// IsUnsupported reports whether err (or any error it wraps) is an
// Unsupported error.
func IsUnsupported(err error) bool { return errdefs.IsNotImplemented(err) }

// IsResourceExhausted reports whether err (or any error it wraps) is a
// ResourceExhausted error.
func IsResourceExhausted(err error) bool { return errdefs.IsResourceExhausted(err) }

// IsEngineError reports whether err (or any error it wraps) is an
// EngineError error.
func IsEngineError(err error) bool { return errdefs.IsUnknown(err) }

// IsIoError reports whether err (or any error it wraps) is an IoError error.
func IsIoError(err error) bool { return errdefs.IsInternal(err) }
