package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestStatusError(t *testing.T) {
	tc := []struct {
		code      int
		want      error
		transient bool
	}{
		{http.StatusNotFound, ErrNotFound, false},
		{http.StatusUnauthorized, ErrNotAuthenticated, false},
		{http.StatusInternalServerError, ErrAPIRequest, true},
		{http.StatusBadGateway, ErrAPIRequest, true},
		{http.StatusServiceUnavailable, ErrAPIRequest, true},
		{http.StatusTooManyRequests, ErrAPIRequest, true},
		{http.StatusBadRequest, ErrAPIRequest, false},
	}

	for _, tt := range tc {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &StatusError{Method: "GET", Path: "/x", Code: tt.code})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v to match %v", err, tt.want)
			}
			if got := errors.Is(err, ErrTransientNetwork); got != tt.transient {
				t.Errorf("expected transient %v, got %v", tt.transient, got)
			}
		})
	}

	t.Run("Detail Is Truncated", func(t *testing.T) {
		err := &StatusError{Method: "GET", Path: "/x", Code: 500, Body: []byte(strings.Repeat("a", 500))}
		if len(err.Detail()) != 203 {
			t.Errorf("expected truncated detail, got length %d", len(err.Detail()))
		}
		if !strings.Contains(err.Error(), "status 500") {
			t.Errorf("expected status in message, got %q", err.Error())
		}
	})
}

func TestStreamUnavailableError(t *testing.T) {
	primary := errors.New("primary down")
	fallback := fmt.Errorf("%w: no match", ErrNotFound)
	err := error(&StreamUnavailableError{Primary: primary, Fallback: fallback})

	if !errors.Is(err, ErrStreamUnavailable) {
		t.Error("expected ErrStreamUnavailable")
	}
	if !errors.Is(err, primary) {
		t.Error("expected primary reason to be reachable")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected fallback reason to be reachable")
	}
	if !strings.Contains(err.Error(), "primary: primary down") || !strings.Contains(err.Error(), "fallback:") {
		t.Errorf("expected both reasons in message, got %q", err.Error())
	}

	var sue *StreamUnavailableError
	if !errors.As(fmt.Errorf("play: %w", err), &sue) {
		t.Fatal("expected errors.As to find StreamUnavailableError")
	}
	if sue.Primary != primary {
		t.Error("expected primary reason to be kept")
	}
}

func TestSuggestion(t *testing.T) {
	if Suggestion(nil) != "" {
		t.Error("expected no suggestion for nil")
	}
	if Suggestion(errors.New("unknown")) != "" {
		t.Error("expected no suggestion for unknown errors")
	}
	if !strings.Contains(Suggestion(fmt.Errorf("%w: x", ErrAuthExchange)), "single use") {
		t.Error("expected exchange suggestion")
	}
	if Suggestion(&StreamUnavailableError{}) == "" {
		t.Error("expected stream suggestion")
	}
	if !strings.Contains(Suggestion(&StatusError{Code: http.StatusServiceUnavailable}), "connection") {
		t.Error("expected transient suggestion for a 503")
	}
	if !strings.Contains(Suggestion(fmt.Errorf("history: %w", ErrHistoryDisabled)), "stream.history") {
		t.Error("expected history suggestion")
	}
	if !strings.Contains(Suggestion(ErrTokenExpired), "auth login") {
		t.Error("expected login suggestion for an expired token")
	}
}
