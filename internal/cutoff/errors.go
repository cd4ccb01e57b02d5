package cutoff

import (
	"context"
	"errors"

	apperrors "college-predictor/internal/common/errors"
)

var (
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidRank        = errors.New("invalid rank")
	ErrInvalidPage        = errors.New("invalid page")
	ErrDatasetUnavailable = errors.New("dataset unavailable")
	ErrQueryTimeout       = errors.New("query timeout")
)

// ToStandardError maps a service error onto the shared error codes used by
// the gateway and the job workers.
func ToStandardError(err error) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	switch {
	case errors.As(err, &stdErr):
		return stdErr
	case errors.Is(err, ErrInvalidCategory):
		return apperrors.NewInvalidCategoryError(err.Error())
	case errors.Is(err, ErrInvalidRank):
		return apperrors.NewInvalidRankError(err.Error())
	case errors.Is(err, ErrInvalidPage):
		return apperrors.NewInvalidPageError(err.Error())
	case errors.Is(err, ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewQueryTimeoutError(err)
	case errors.Is(err, ErrDatasetUnavailable):
		return apperrors.NewDatasetUnavailableError(err)
	default:
		return apperrors.NewInternalError(err)
	}
}
