package media

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailed marks a download that failed permanently.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrEmptyResponse marks a download that completed with zero bytes.
	ErrEmptyResponse = errors.New("empty response body")
	// ErrManifestParse marks a malformed, empty or unsupported playlist.
	ErrManifestParse = errors.New("manifest parse failed")
	// ErrToolUnavailable marks a missing external remux utility.
	ErrToolUnavailable = errors.New("remux tool unavailable")
)

// StatusError is a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientError reports whether the status is a 4xx that retrying will not fix.
// Request timeouts and rate limiting are not client errors in this sense.
func (e *StatusError) ClientError() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// FetchError is returned once a download gives up.
type FetchError struct {
	Err        error
	URL        string
	Attempts   int
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// ManifestError describes why a playlist could not be used.
type ManifestError struct {
	URL    string
	Reason string
	Line   int
}

func (e *ManifestError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("manifest %s line %d: %s", e.URL, e.Line, e.Reason)
	}
	return fmt.Sprintf("manifest %s: %s", e.URL, e.Reason)
}

func (e *ManifestError) Unwrap() error {
	return ErrManifestParse
}
