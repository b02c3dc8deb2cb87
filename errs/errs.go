// Package errs - Failure kinds shared by the evaluation pipeline.
//
// Every kind is fatal for a run. Callers classify a failure with errors.Is
// against one of the sentinels below; the wrapped message names the offending
// file or label.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInputMismatch signals unequal list lengths, unequal image dimensions or
	// a multi-channel prediction image.
	ErrInputMismatch = errors.New("input mismatch")
	// ErrPairing signals that zero or several predictions were found for a
	// ground truth file.
	ErrPairing = errors.New("pairing error")
	// ErrUnknownLabel signals a ground truth pixel or instance label id that is
	// not part of the taxonomy.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrConsistency signals that the confusion matrix lost or double counted
	// pixels.
	ErrConsistency = errors.New("consistency error")
	// ErrConfig signals an invalid configuration or taxonomy.
	ErrConfig = errors.New("invalid configuration")
)

// UnknownLabel wraps ErrUnknownLabel with the offending id and where it was
// found.
//
// Arguments:
//   - id: The label id that could not be resolved.
//   - where: A short description of the location (file, pixel, instance).
//
// Returns:
//   - error: The wrapped error.
func UnknownLabel(id int, where string) error {
	if where == "" {
		return errors.Wrapf(ErrUnknownLabel, "unknown label with id %d", id)
	}
	return errors.Wrapf(ErrUnknownLabel, "unknown label with id %d (%s)", id, where)
}

// InputMismatch wraps ErrInputMismatch with a formatted message.
func InputMismatch(format string, args ...interface{}) error {
	return errors.Wrap(ErrInputMismatch, fmt.Sprintf(format, args...))
}

// Pairing wraps ErrPairing with a formatted message.
func Pairing(format string, args ...interface{}) error {
	return errors.Wrap(ErrPairing, fmt.Sprintf(format, args...))
}

// Consistency wraps ErrConsistency with a formatted message.
func Consistency(format string, args ...interface{}) error {
	return errors.Wrap(ErrConsistency, fmt.Sprintf(format, args...))
}

// Config wraps ErrConfig with a formatted message.
func Config(format string, args ...interface{}) error {
	return errors.Wrap(ErrConfig, fmt.Sprintf(format, args...))
}
