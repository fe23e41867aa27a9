package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthInitiation     = fmt.Errorf("login initiation failed")
	ErrAuthExchange       = fmt.Errorf("authorization code exchange failed")
	ErrCallbackInProgress = fmt.Errorf("callback exchange already in progress")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrTokenExpired       = fmt.Errorf("access token expired")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrTransientNetwork   = fmt.Errorf("network request failed")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Stream resolution errors
	ErrStreamUnavailable = fmt.Errorf("stream unavailable")
	ErrEmptyStreamURL    = fmt.Errorf("provider returned no stream URL")
	ErrNoFallbackQuery   = fmt.Errorf("no text available for fallback search")
	ErrInvalidTrackRef   = fmt.Errorf("invalid track reference")

	// Resolution log errors
	ErrHistoryDisabled = fmt.Errorf("resolution history is disabled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// StatusError is returned by the transport when the backend answers with a non-2xx status.
//
// It unwraps to [ErrNotFound] for 404, [ErrNotAuthenticated] for 401 and [ErrAPIRequest] otherwise.
// A 5xx or 429 also matches [ErrTransientNetwork].
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	if detail := e.Detail(); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *StatusError) Unwrap() []error {
	switch {
	case e.Code == http.StatusNotFound:
		return []error{ErrNotFound}
	case e.Code == http.StatusUnauthorized:
		return []error{ErrNotAuthenticated}
	case e.Transient():
		return []error{ErrAPIRequest, ErrTransientNetwork}
	default:
		return []error{ErrAPIRequest}
	}
}

// Transient reports whether retrying later may succeed.
func (e *StatusError) Transient() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Detail returns a trimmed copy of the response body, capped for log output.
func (e *StatusError) Detail() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return body
}

// StreamUnavailableError reports that neither the primary nor the fallback provider produced a URL.
//
// Both reasons are kept for diagnostics; either may be nil when that step was not applicable.
type StreamUnavailableError struct {
	Primary  error
	Fallback error
}

func (e *StreamUnavailableError) Error() string {
	var parts []string
	if e.Primary != nil {
		parts = append(parts, "primary: "+e.Primary.Error())
	}
	if e.Fallback != nil {
		parts = append(parts, "fallback: "+e.Fallback.Error())
	}
	if len(parts) == 0 {
		return ErrStreamUnavailable.Error()
	}
	return fmt.Sprintf("%v (%s)", ErrStreamUnavailable, strings.Join(parts, "; "))
}

// Is matches [ErrStreamUnavailable].
func (e *StreamUnavailableError) Is(target error) bool {
	return target == ErrStreamUnavailable
}

// Unwrap exposes both provider failures to [errors.Is] and [errors.As].
func (e *StreamUnavailableError) Unwrap() []error {
	var errs []error
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

// Suggestion maps an error to a short hint for the user, or "" when there is none.
func Suggestion(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthInitiation):
		return "Check that the backend is running and api.base_url is correct"
	case errors.Is(err, ErrAuthExchange):
		return "Authorization codes are single use. Run 'tunebridge auth login' again"
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrTokenExpired):
		return "Run 'tunebridge auth login' to authenticate"
	case errors.Is(err, ErrStreamUnavailable):
		return "The track could not be found on either source. Try a search query instead"
	case errors.Is(err, ErrTransientNetwork), errors.Is(err, ErrTimeout):
		return "Check your connection to the backend and try again"
	case errors.Is(err, ErrHistoryDisabled):
		return "Set stream.history = true in the configuration to keep a resolution log"
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrMissingConfig):
		return "Run 'tunebridge setup config' to create a configuration file"
	}
	return ""
}
