package step

import "github.com/pkg/errors"

// Sentinel errors for input validation. Failures wrap one of these with
// context, so callers can branch with errors.Is while the message still names
// the offending input.
var (
	// ErrShapeMismatch reports paired inputs with inconsistent dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidParameter reports a non-positive or non-finite configuration
	// scalar, or otherwise unusable caller-supplied machinery.
	ErrInvalidParameter = errors.New("invalid parameter")
)
