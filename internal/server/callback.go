package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/desertthunder/tunebridge/internal/shared"
)

// CallbackPath is where the backend's redirect lands.
const CallbackPath = "/callback"

// Exchanger completes a login with an authorization code.
type Exchanger interface {
	CompleteCallback(ctx context.Context, code string) error
}

// CallbackResult is the outcome of the single callback a [CallbackHandler] accepts.
type CallbackResult struct {
	Code string
	Err  error
}

// CallbackHandler serves [CallbackPath]. Only the first request is processed.
type CallbackHandler struct {
	exchanger Exchanger
	state     string
	timeout   time.Duration

	mu     sync.Mutex
	hit    bool
	result chan CallbackResult
}

// NewCallbackHandler creates a handler. When state is non-empty the redirect must carry the same value.
func NewCallbackHandler(exchanger Exchanger, state string) *CallbackHandler {
	return &CallbackHandler{
		exchanger: exchanger,
		state:     state,
		timeout:   30 * time.Second,
		result:    make(chan CallbackResult, 1),
	}
}

// StateFromURL returns the state parameter of an authorization URL, or "" when it has none.
func StateFromURL(authURL string) string {
	u, err := url.Parse(authURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("state")
}

// ExpectState sets the state the redirect must carry. Used when the authorization URL is only known after the
// listener is up.
func (h *CallbackHandler) ExpectState(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{CallbackPath}
}

// Result receives exactly one [CallbackResult] and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.result
}

// ServeHTTP validates the redirect, exchanges the code and renders a page telling the user to return to the terminal.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusConflict)
		return
	}
	h.hit = true
	state := h.state
	h.mu.Unlock()

	q := r.URL.Query()

	if state != "" && q.Get("state") != state {
		h.finish(w, http.StatusBadRequest, CallbackResult{
			Err: fmt.Errorf("%w: state parameter mismatch", shared.ErrAuthExchange),
		})
		return
	}

	code := q.Get("code")
	if code == "" {
		h.finish(w, http.StatusBadRequest, CallbackResult{
			Err: fmt.Errorf("%w: authorization denied: %s %s", shared.ErrAuthExchange, q.Get("error"), q.Get("error_description")),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.exchanger.CompleteCallback(ctx, code); err != nil {
		h.finish(w, http.StatusBadGateway, CallbackResult{Code: code, Err: err})
		return
	}

	h.finish(w, http.StatusOK, CallbackResult{Code: code})
}

func (h *CallbackHandler) finish(w http.ResponseWriter, status int, result CallbackResult) {
	h.result <- result
	close(h.result)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	page := pageData{Title: "Signed in", Message: "You can close this window and return to the terminal.", Color: "#1DB954"}
	if result.Err != nil {
		page = pageData{Title: "Sign-in failed", Message: result.Err.Error(), Color: "#E22134"}
	}
	_ = callbackPage.Execute(w, page)
}

type pageData struct {
	Title   string
	Message string
	Color   string
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))
