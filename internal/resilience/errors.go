package resilience

import "errors"

// TransientError wraps an error that is safe to retry, such as a retryable
// HTTP status.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether err (or any error in its chain) is a
// TransientError. Transport failures are not retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// StatusSet is a set of HTTP status codes.
type StatusSet map[int]struct{}

// NewStatusSet builds a StatusSet from codes.
func NewStatusSet(codes ...int) StatusSet {
	s := make(StatusSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Contains reports whether code is in the set.
func (s StatusSet) Contains(code int) bool {
	_, ok := s[code]
	return ok
}
