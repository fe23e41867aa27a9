// Package server runs the local listener that receives the OAuth redirect.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] with method filtering and a [Middleware] stack where the first added
// runs outermost. [RequestLogger] is the only middleware the listener installs.
//
// # Callback Handler
//
// [CallbackHandler] reads the code (and optional state) from the redirect query, hands the code to an [Exchanger]
// (the session manager) and reports the outcome once on [CallbackHandler.Result]. Later hits are rejected.
//
// # Listener
//
// [Listen] serves the handler on localhost until one callback is processed or the context ends, then shuts down.
// The CLI uses it for `auth login --wait`.
package server
