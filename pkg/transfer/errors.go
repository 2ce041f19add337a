package transfer

import "errors"

// Copy errors fall in two classes: retryable (transient network or
// protocol trouble, worth another attempt) and fatal (missing source,
// authorization failure, tool not installed). An unwrapped error counts
// as retryable; the retry budget bounds the damage of a misclassified
// permanent failure.

type classifiedError struct {
	err   error
	fatal bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Retryable marks err as a transient failure worth retrying.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, fatal: false}
}

// Fatal marks err as a permanent failure: the item is classified failed
// immediately, with no retry.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, fatal: true}
}

// IsFatal reports whether err carries a fatal classification.
func IsFatal(err error) bool {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.fatal
	}
	return false
}

// IsRetryable reports whether a non-nil err may be retried.
func IsRetryable(err error) bool {
	return err != nil && !IsFatal(err)
}
