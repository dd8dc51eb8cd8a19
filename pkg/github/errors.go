package github

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UpstreamError carries GitHub's HTTP status code and JSON body so handlers
// can re-raise the upstream failure to the relying party verbatim.
type UpstreamError struct {
	// StatusCode is GitHub's HTTP status code.
	StatusCode int

	// Body is GitHub's raw response body.
	Body []byte

	// URL is the requested URL.
	URL string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github returned HTTP %d for %s: %s", e.StatusCode, e.URL, string(e.Body))
}

// Detail returns the parsed JSON body when possible, falling back to the raw
// body as a string. This is what gets surfaced in the error response's detail
// field.
func (e *UpstreamError) Detail() any {
	var detail any
	if err := json.Unmarshal(e.Body, &detail); err != nil || detail == nil {
		return string(e.Body)
	}
	return detail
}

// AsUpstreamError extracts an UpstreamError from an error chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
