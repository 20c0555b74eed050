package touch

import "errors"

// Error taxonomy for the inference pipeline. All of these are correctness
// failures, not transient faults: callers get the same error for the same
// input, so there is no retry path.
var (
	// ErrInsufficientData is returned when fitting is attempted with fewer
	// observations than the backend requires.
	ErrInsufficientData = errors.New("insufficient observations to fit model")

	// ErrEmptyInput is returned when an aggregate metric is requested over an
	// empty test set.
	ErrEmptyInput = errors.New("empty input set")

	// ErrSingularCovariance is returned when a predicted covariance is not
	// positive definite and regularization is disabled.
	ErrSingularCovariance = errors.New("covariance matrix is singular or not positive definite")

	// ErrDimensionMismatch is returned for mismatched or non-finite
	// coordinate inputs.
	ErrDimensionMismatch = errors.New("dimension mismatch in coordinate input")
)
