package model

import "github.com/pkg/errors"

var (
	// ErrInvariantViolation means the link graph or the neighbor counts are
	// inconsistent. The universe refuses further ticks once it is returned.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrAllocation means the allocator could not provide a cell slot.
	// The tick that hit it can be retried.
	ErrAllocation = errors.New("cell allocation failed")

	// ErrUsage reports a caller contract violation, e.g. activating an
	// occupied cell.
	ErrUsage = errors.New("usage error")
)

// invariantf wraps ErrInvariantViolation with context
func invariantf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvariantViolation, format, args...)
}

// usagef wraps ErrUsage with context
func usagef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUsage, format, args...)
}
