package download

import (
	"errors"
	"fmt"
)

// NetworkError represents transport failures during a fetch attempt: connection
// resets, timeouts and server-side 5xx responses. Network errors are transient
// and eligible for retry.
type NetworkError struct {
	URL        string
	StatusCode int // 0 for non-HTTP failures
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error fetching %s (HTTP %d)", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError means the remote archive has no file at the requested
// location. Not retryable.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("remote file not found: %s", e.URL)
}

// PermissionError covers 401/403 responses from the remote source.
// Not retryable.
type PermissionError struct {
	URL        string
	StatusCode int
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("access denied (HTTP %d) fetching %s", e.StatusCode, e.URL)
}

// ChecksumError means a fully streamed file did not match its expected digest.
// Corruption during transfer is assumed rather than a permanently bad source
// file, so checksum errors are retried like transient failures.
type ChecksumError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}

// IsPermanent reports whether err rules out further attempts for the same file.
func IsPermanent(err error) bool {
	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return true
	}

	var permErr *PermissionError

	return errors.As(err, &permErr)
}
