package core

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"

	"github.com/barysiuk/profiler/internal/core/host"
)

// ErrCancelled is recorded for the item at which the user cancelled a phase.
const ErrCancelled = errors.ConstError("User cancelled")

// FailureKind classifies why an item failed to install.
type FailureKind int

const (
	// FailureUnknown is an unclassified failure.
	FailureUnknown FailureKind = iota
	// FailureProtocol means a control-channel call failed.
	FailureProtocol
	// FailureMissingSource means a repository had no usable archive.
	FailureMissingSource
	// FailureStructural means an archive did not have the expected layout.
	FailureStructural
	// FailureTimeout means polling for completion ran out of time.
	FailureTimeout
	// FailureCancelled means the user cancelled the phase at this item.
	FailureCancelled
)

// String returns a human-readable label for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureProtocol:
		return "Protocol Error"
	case FailureMissingSource:
		return "Missing Source"
	case FailureStructural:
		return "Invalid Archive"
	case FailureTimeout:
		return "Timeout"
	case FailureCancelled:
		return "Cancelled"
	default:
		return "Unknown Error"
	}
}

// MissingSourceError is returned when a repository has no archive that can
// be used: nothing bundled, no URL, or a bundled path that does not exist.
type MissingSourceError struct {
	ID      string
	Bundled string // bundled archive that was named but not found, if any
}

// Error implements the error interface.
func (e *MissingSourceError) Error() string {
	if e.Bundled != "" {
		return fmt.Sprintf("missing source: bundled archive %s not found for %s", e.Bundled, e.ID)
	}
	return fmt.Sprintf("missing source: %s has neither a bundled archive nor a URL", e.ID)
}

// StructuralValidationError is returned when an archive is rejected before
// extraction because its contents do not match the expected layout.
type StructuralValidationError struct {
	ID      string
	Archive string
	Reason  string
}

// Error implements the error interface.
func (e *StructuralValidationError) Error() string {
	return fmt.Sprintf("invalid archive for %s: %s", e.ID, e.Reason)
}

// TimeoutError is returned when an install was requested but completion was
// not observed in time. The install may still finish later.
type TimeoutError struct {
	ID    string
	After time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timed out after %ds", int(e.After.Seconds()))
}

// Is lets errors.Is(err, errors.Timeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == errors.Timeout
}

// IsMissingSource reports whether err is or wraps a *MissingSourceError.
func IsMissingSource(err error) bool {
	var e *MissingSourceError
	return errors.As(err, &e)
}

// IsStructural reports whether err is or wraps a *StructuralValidationError.
func IsStructural(err error) bool {
	var e *StructuralValidationError
	return errors.As(err, &e)
}

// ClassifyFailure maps an item error onto a FailureKind.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	var timeout *TimeoutError
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.As(err, &timeout):
		return FailureTimeout
	case IsMissingSource(err):
		return FailureMissingSource
	case IsStructural(err):
		return FailureStructural
	}
	if _, ok := host.IsProtocolError(err); ok {
		return FailureProtocol
	}
	return FailureUnknown
}
