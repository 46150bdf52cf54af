package chain

import (
	"errors"
	"fmt"
)

// RetryableError marks a transient chain failure (timeout, rate limit,
// connection reset). Callers are expected to retry with backoff; the error is
// never swallowed at the point of origin.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable chain error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// DecodeError marks a malformed response or a log that does not match the
// expected ABI. It is terminal for the single entry that produced it; scans
// log it and continue.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("decode error: %s", e.Msg)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
