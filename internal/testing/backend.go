package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/tunebridge/internal/models"
)

const sessionCookie = "session"

// Backend is an in-process stand-in for the playback backend.
//
// Sessions are tracked by cookie, codes are single-use, and any path can be forced to fail with a status code.
// The /user and /playlist routes answer 401 without a live session cookie.
// All fields may be set before the first request; use the methods afterwards.
type Backend struct {
	Server *httptest.Server

	AuthURL   string
	TokenInfo string // raw token_info JSON sent on a successful callback
	Tracks    map[string]models.Track
	Playlists map[string]models.Playlist
	Results   []models.Track
	Current   *models.Track

	// StreamByID and StreamByQuery answer POST /stream; a nil func yields 404.
	StreamByID    func(id string) (int, any)
	StreamByQuery func(query string) (int, any)

	mu         sync.Mutex
	codes      map[string]bool
	sessions   map[string]bool
	failures   map[string]int
	hits       map[string]int
	requestIDs []string
	bodies     map[string][]map[string]string
}

// NewBackend starts a [Backend] that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		AuthURL:   "https://accounts.example.com/authorize?client_id=test",
		TokenInfo: `{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600,"scope":"streaming"}`,
		Tracks:    map[string]models.Track{},
		Playlists: map[string]models.Playlist{},
		codes:     map[string]bool{},
		sessions:  map[string]bool{},
		failures:  map[string]int{},
		hits:      map[string]int{},
		bodies:    map[string][]map[string]string{},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serveHTTP))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the API base URL.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// AddCode registers a single-use authorization code.
func (b *Backend) AddCode(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[code] = true
}

// FailWith makes every request to path (without the /api prefix) answer with code. Zero clears the failure.
func (b *Backend) FailWith(path string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if code == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = code
}

// SetCurrent replaces the now-playing track; nil means nothing is playing.
func (b *Backend) SetCurrent(track *models.Track) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Current = track
}

// Hits returns how many requests reached path.
func (b *Backend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

// Bodies returns the decoded JSON bodies posted to path.
func (b *Backend) Bodies(path string) []map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]string(nil), b.bodies[path]...)
}

// RequestIDs returns every X-Request-ID seen, in order.
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

// Sessions returns the number of live sessions.
func (b *Backend) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *Backend) serveHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	b.mu.Lock()
	b.hits[path]++
	b.requestIDs = append(b.requestIDs, r.Header.Get("X-Request-ID"))
	failure := b.failures[path]

	var body map[string]string
	if r.Method == http.MethodPost && r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.bodies[path] = append(b.bodies[path], body)
	}
	b.mu.Unlock()

	if failure != 0 {
		writeJSON(w, failure, map[string]string{"error": http.StatusText(failure)})
		return
	}
	if requiresAuth(path) && !b.hasSession(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		return
	}

	switch {
	case path == "/health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	case path == "/auth/status":
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": b.hasSession(r)})
	case path == "/auth/login":
		writeJSON(w, http.StatusOK, map[string]string{"auth_url": b.AuthURL})
	case path == "/auth/callback" && r.Method == http.MethodPost:
		b.callback(w, body)
	case path == "/auth/logout" && r.Method == http.MethodPost:
		b.logout(w, r)
	case path == "/search":
		writeJSON(w, http.StatusOK, map[string]any{"tracks": b.Results})
	case strings.HasPrefix(path, "/track/"):
		track, ok := b.Tracks[strings.TrimPrefix(path, "/track/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Track not found"})
			return
		}
		writeJSON(w, http.StatusOK, track)
	case path == "/stream" && r.Method == http.MethodPost:
		b.stream(w, body)
	case path == "/user/current-track":
		b.mu.Lock()
		current := b.Current
		b.mu.Unlock()
		if current == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "No track currently playing"})
			return
		}
		writeJSON(w, http.StatusOK, current)
	case path == "/user/playlists":
		list := make([]models.Playlist, 0, len(b.Playlists))
		for _, p := range b.Playlists {
			list = append(list, models.Playlist{ID: p.ID, Name: p.Name, Description: p.Description, TrackCount: len(p.Tracks), ImageURL: p.ImageURL})
		}
		writeJSON(w, http.StatusOK, map[string]any{"playlists": list})
	case strings.HasPrefix(path, "/playlist/"):
		p, ok := b.Playlists[strings.TrimPrefix(path, "/playlist/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Playlist not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"name": p.Name, "description": p.Description, "image": p.ImageURL, "tracks": p.Tracks})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func requiresAuth(path string) bool {
	return strings.HasPrefix(path, "/user/") || strings.HasPrefix(path, "/playlist/")
}

func (b *Backend) hasSession(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[c.Value]
}

func (b *Backend) callback(w http.ResponseWriter, body map[string]string) {
	code := body["code"]

	b.mu.Lock()
	valid := b.codes[code]
	delete(b.codes, code)
	var id string
	if valid {
		id = "sess-" + code
		b.sessions[id] = true
	}
	b.mu.Unlock()

	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to get access token"})
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"message":"Authentication successful","token_info":` + b.TokenInfo + `}`))
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (b *Backend) stream(w http.ResponseWriter, body map[string]string) {
	var (
		code = http.StatusNotFound
		resp any
	)
	switch {
	case body["track_id"] != "" && b.StreamByID != nil:
		code, resp = b.StreamByID(body["track_id"])
	case body["query"] != "" && b.StreamByQuery != nil:
		code, resp = b.StreamByQuery(body["query"])
	case body["track_id"] == "" && body["query"] == "":
		code = http.StatusBadRequest
	}
	if resp == nil {
		resp = map[string]string{"error": "Could not find stream"}
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
