package httperror

import (
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response that didn't carry one of our own
// errors, e.g., from a proxy in front of the composer. The response is
// kept so callers can tell causes apart with errors.Cause(err).
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (err *APIError) Error() string {
	body := strings.TrimSpace(err.Body)
	if body == "" {
		return err.Status
	}
	return fmt.Sprintf("%s (%s)", err.Status, body)
}

// Does this error mean the API service is unavailable?
func (err *APIError) IsUnavailable() bool {
	switch err.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Is this API call missing? This usually indicates that there is a
// version mismatch between the client and the service.
func (err *APIError) IsMissing() bool {
	return err.StatusCode == http.StatusNotFound
}
