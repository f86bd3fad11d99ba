package authsdk

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Response is a successful (2xx) API response with its body buffered.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Empty reports whether the response carries no JSON value: 204 or 205, an
// empty body, or a content type other than JSON.
func (r *Response) Empty() bool {
	switch r.StatusCode {
	case http.StatusNoContent, http.StatusResetContent:
		return true
	}
	if len(r.Body) == 0 {
		return true
	}
	return !isJSON(r.Header.Get("Content-Type"))
}

// Decode unmarshals the body into v. An empty response yields ErrNoValue.
func (r *Response) Decode(v any) error {
	if r.Empty() {
		return ErrNoValue
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
