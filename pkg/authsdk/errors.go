package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRefreshFailed is returned when no valid session could be
	// established. The credential store is always cleared when it is
	// reported.
	ErrRefreshFailed = errors.New("authsdk: refresh failed")

	// ErrNoValue is returned by Response.Decode when the response carried no
	// JSON content.
	ErrNoValue = errors.New("authsdk: response has no value")

	// ErrMissingCredential is returned when a login or refresh response has
	// no accessToken field.
	ErrMissingCredential = errors.New("authsdk: response carries no access token")

	// ErrResponseTooLarge is returned when a response body exceeds the
	// buffering limit.
	ErrResponseTooLarge = errors.New("authsdk: response too large")
)

// HTTPError is a non-2xx response surfaced to the caller unchanged.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]string
	Body       []byte
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsStatus reports whether err is an *HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// parseErrorResponse turns a non-2xx response into an *HTTPError, picking up
// the API's JSON error body when there is one. Returns nil for 2xx.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: body}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		httpErr.Code = errResp.Code
		httpErr.Message = errResp.Message
		httpErr.Details = errResp.Details
	}

	return httpErr
}
