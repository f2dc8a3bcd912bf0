package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/storyloom/storyloom/pkg/api"
)

// MapHTTPError converts an HTTP response with a non-2xx status code into
// an *api.Error. Rate limits, timeouts and backend server errors are
// transient (the executor retries them); bad requests and auth failures
// are permanent.
func MapHTTPError(resp *http.Response) *api.Error {
	// Try to read the body for an error message.
	message := ExtractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		if message == "" {
			message = "invalid request to backend"
		}
		return api.NewCapabilityError(message, false)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
		return api.NewCapabilityError(message, false)

	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "backend resource not found"
		}
		return api.NewCapabilityError(message, false)

	case resp.StatusCode == http.StatusRequestTimeout:
		if message == "" {
			message = "backend request timed out"
		}
		return api.NewCapabilityError(message, true)

	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		return api.NewCapabilityError(message, true)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		}
		return api.NewCapabilityError(message, true)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)
		}
		return api.NewCapabilityError(message, false)
	}
}

// MapNetworkError converts a network-level error (connection refused,
// timeout, DNS resolution failure) into a transient *api.Error.
func MapNetworkError(err error) *api.Error {
	return api.NewCapabilityError(
		fmt.Sprintf("backend connection error: %s", err.Error()), true)
}

// ExtractErrorMessage tries to parse the response body as a ChatErrorResponse
// and returns the error message if found.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
