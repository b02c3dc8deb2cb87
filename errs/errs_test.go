package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSentinelsSurviveWrapping(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{
			name:     "unknown label with location",
			err:      UnknownLabel(255, "frankfurt_000000_000294_gtFine_labelIds.png"),
			sentinel: ErrUnknownLabel,
			contains: "unknown label with id 255 (frankfurt_000000_000294_gtFine_labelIds.png)",
		},
		{
			name:     "unknown label without location",
			err:      UnknownLabel(-3, ""),
			sentinel: ErrUnknownLabel,
			contains: "unknown label with id -3",
		},
		{
			name:     "input mismatch",
			err:      InputMismatch("image widths of %s and %s are not equal", "a.png", "b.png"),
			sentinel: ErrInputMismatch,
			contains: "image widths of a.png and b.png are not equal",
		},
		{
			name:     "pairing",
			err:      Pairing("found no prediction for ground truth %s", "gt.png"),
			sentinel: ErrPairing,
			contains: "gt.png",
		},
		{
			name:     "consistency",
			err:      Consistency("matrix %d, pixels %d", 3, 4),
			sentinel: ErrConsistency,
			contains: "matrix 3, pixels 4",
		},
		{
			name:     "config",
			err:      Config("workers must be positive"),
			sentinel: ErrConfig,
			contains: "workers must be positive",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, tc.sentinel))
			assert.Contains(t, tc.err.Error(), tc.contains)

			wrapped := errors.Wrap(tc.err, "evaluating pair 3")
			assert.True(t, errors.Is(wrapped, tc.sentinel), "sentinel must survive a second wrap")
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	err := UnknownLabel(7, "")
	assert.False(t, errors.Is(err, ErrInputMismatch))
	assert.False(t, errors.Is(err, ErrConsistency))
	assert.False(t, errors.Is(err, ErrPairing))
}
