package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunebridge/internal/shared"
)

type fakeExchanger struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (f *fakeExchanger) CompleteCallback(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return f.err
}

func (f *fakeExchanger) Codes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

func serve(h *CallbackHandler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCallbackHandler(t *testing.T) {
	t.Run("Exchanges Code Once", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewCallbackHandler(ex, "")

		rec := serve(h, "/callback?code=abc")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Signed in") {
			t.Errorf("expected success page, got %q", rec.Body.String())
		}

		result, ok := <-h.Result()
		if !ok || result.Code != "abc" || result.Err != nil {
			t.Errorf("unexpected result %+v", result)
		}
		if _, open := <-h.Result(); open {
			t.Error("expected result channel closed after one result")
		}

		rec = serve(h, "/callback?code=again")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409 for repeat hit, got %d", rec.Code)
		}
		if got := ex.Codes(); len(got) != 1 || got[0] != "abc" {
			t.Errorf("expected exactly one exchange, got %v", got)
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		ex := &fakeExchanger{err: shared.ErrAuthExchange}
		h := NewCallbackHandler(ex, "")

		rec := serve(h, "/callback?code=bad")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		if result := <-h.Result(); !errors.Is(result.Err, shared.ErrAuthExchange) {
			t.Errorf("expected ErrAuthExchange, got %v", result.Err)
		}
	})

	t.Run("Denied By Provider", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewCallbackHandler(ex, "")

		rec := serve(h, "/callback?error=access_denied&error_description=nope")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Err, shared.ErrAuthExchange) || !strings.Contains(result.Err.Error(), "access_denied") {
			t.Errorf("expected denial error, got %v", result.Err)
		}
		if len(ex.Codes()) != 0 {
			t.Error("expected no exchange without a code")
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewCallbackHandler(ex, "expected")

		rec := serve(h, "/callback?code=abc&state=other")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Err == nil {
			t.Error("expected state mismatch error")
		}
		if len(ex.Codes()) != 0 {
			t.Error("expected no exchange on state mismatch")
		}
	})

	t.Run("State Match", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewCallbackHandler(ex, "s1")

		if rec := serve(h, "/callback?code=abc&state=s1"); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestStateFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://accounts.example.com/authorize?client_id=x&state=abc", "abc"},
		{"https://accounts.example.com/authorize", ""},
		{"::not a url", ""},
	}

	for _, tt := range tests {
		if got := StateFromURL(tt.url); got != tt.expected {
			t.Errorf("StateFromURL(%q): expected %q, got %q", tt.url, tt.expected, got)
		}
	}
}

func TestListener(t *testing.T) {
	t.Run("Returns After One Callback", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewCallbackHandler(ex, "")
		l, err := NewListener(0, h, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		done := make(chan CallbackResult, 1)
		go func() {
			result, _ := l.Wait(context.Background())
			done <- result
		}()

		resp, err := http.Get(l.CallbackURL() + "?code=xyz")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case result := <-done:
			if result.Code != "xyz" || result.Err != nil {
				t.Errorf("unexpected result %+v", result)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for listener")
		}
	})

	t.Run("Context Cancelled", func(t *testing.T) {
		h := NewCallbackHandler(&fakeExchanger{}, "")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := Listen(ctx, 0, h, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
