// API service for making HTTP requests to the playback backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://localhost:5000/api"

	// RequestIDHeader carries a per-request id so client and backend logs can be correlated.
	RequestIDHeader = "X-Request-ID"
)

// APIService provides methods for making HTTP requests to the backend.
//
// The backend keeps the user's session in a cookie, so the client must carry a cookie jar for the session to survive between calls.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// APIOpts contains configuration options for creating an [APIService].
type APIOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	RateLimit  float64 // requests per second, 0 disables limiting
	Burst      int
	Logger     *log.Logger
}

// NewHTTPClient returns an [http.Client] with the given jar and timeout. A nil jar gets an in-memory one.
func NewHTTPClient(timeout time.Duration, jar http.CookieJar) *http.Client {
	if jar == nil {
		jar, _ = cookiejar.New(nil)
	}
	return &http.Client{Jar: jar, Timeout: timeout}
}

// NewAPIService creates a new API service instance for the backend.
func NewAPIService(opts APIOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(10*time.Second, nil)
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &APIService{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
		logger:     opts.Logger,
	}
}

// BaseURL returns the backend base URL.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// ResetCookies drops the in-memory session cookies when the client's jar supports it.
func (a *APIService) ResetCookies() {
	if r, ok := a.httpClient.Jar.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request to the specified path and returns the raw response, whatever its status.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response, whatever its status.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// GetJSON performs a GET and decodes a 2xx body into out.
//
// Non-2xx responses are returned as [*shared.StatusError].
func (a *APIService) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := a.Get(ctx, path)
	if err != nil {
		return err
	}
	return decodeResponse(http.MethodGet, path, resp, out)
}

// PostJSON encodes in (nil sends no body), performs a POST and decodes a 2xx body into out.
func (a *APIService) PostJSON(ctx context.Context, path string, in, out any) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%w: failed to encode request: %v", shared.ErrInvalidInput, err)
		}
	}

	resp, err := a.Post(ctx, path, data)
	if err != nil {
		return err
	}
	return decodeResponse(http.MethodPost, path, resp, out)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	requestID := shared.GenerateID()
	req.Header.Set(RequestIDHeader, requestID)

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s %s: rate limiter: %w", shared.ErrTransientNetwork, method, path, err)
		}
	}

	started := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w: %s %s: %w", shared.ErrTransientNetwork, shared.ErrTimeout, method, path, err)
		}
		return nil, fmt.Errorf("%w: %s %s: request failed: %w", shared.ErrTransientNetwork, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: failed to read response: %w", shared.ErrTransientNetwork, method, path, err)
	}

	a.logger.Debug("request complete",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(started))

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func decodeResponse(method, path string, resp *APIResponse, out any) error {
	if !resp.OK() {
		return &shared.StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: resp.Body}
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s %s: failed to decode response: %v", shared.ErrAPIRequest, method, path, err)
	}
	return nil
}
