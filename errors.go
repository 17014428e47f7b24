package ringstream

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Setup errors returned by Open: the filter is not installed and no
// goroutine or ring is left behind.
var (
	// ErrDisabled is returned when cfg.Enable is false.
	ErrDisabled = errors.New("ringstream: filter disabled")
	// ErrNoSize is returned when the Source reports a size <= 0.
	ErrNoSize = errors.New("ringstream: source has no usable size")
	// ErrAlreadyWrapped is returned when the Source implements
	// AlreadyWrapped and reports that another filter already wraps it.
	ErrAlreadyWrapped = errors.New("ringstream: stream already open")
)

// Internal setup failure causes, wrapped with their operation name by
// wrapSetupErr before reaching the caller.
var (
	errInvalidBlockConfig = errors.New("block size and block count must be positive")
	errGapsExceedCapacity = errors.New("RWGap + SeekGap must be smaller than capacity")
	errCannotRewind       = errors.New("source is not positioned at 0 and cannot seek back to it")
	errSourceNotSeekable  = errors.New("source does not support seeking")
)

// wrapSetupErr annotates a lower-level setup failure (allocation,
// goroutine spawn) with the operation that produced it, following
// grafana-tempo's github.com/pkg/errors wrapping convention so a
// caller using pkgerrors.Cause can still recover the root error.
func wrapSetupErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, "ringstream: %s", op)
}

// wrapChecker is an optional interface a Source may implement to
// report that it is already in use by another filter instance.
type wrapChecker interface {
	AlreadyWrapped() bool
}
