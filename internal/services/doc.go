// Package services talks to the playback backend over HTTP.
//
// # Transport
//
// [APIService] owns the [http.Client], its cookie jar, an optional [rate.Limiter] and the request logger.
// The backend keys the user's session on a cookie, so one APIService must be shared by every caller in a process.
// Each request carries an X-Request-ID header.
//
// [SessionJar] holds that cookie. Given a [CookieStore] it writes the backend's cookies through on every change
// and restores them at startup, so a persisted session keeps working after a restart.
//
// # Gateway
//
// [Gateway] maps each backend endpoint to one typed method:
//   - GET  /auth/status, GET /auth/login, POST /auth/callback, POST /auth/logout
//   - GET  /search, GET /track/:id
//   - POST /stream with either track_id (primary) or query (fallback)
//   - GET  /user/current-track, GET /user/playlists, GET /playlist/:id
//   - GET  /health
//
// The gateway never retries and never falls back; that policy belongs to its callers.
//
// # Error Handling
//
// Errors use sentinels from the shared package:
//   - [shared.ErrTransientNetwork] : the request never produced a response; timeouts also match [shared.ErrTimeout]
//   - [shared.StatusError] : non-2xx response; unwraps to [shared.ErrNotFound], [shared.ErrNotAuthenticated] or [shared.ErrAPIRequest],
//     and a 5xx or 429 also to [shared.ErrTransientNetwork]
//   - [shared.ErrAPIRequest] : the body could not be decoded
//
// [Gateway.CurrentTrack] treats 404 as "nothing playing" and returns (nil, nil).
package services
