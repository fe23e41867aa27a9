// Package session owns the authentication state machine.
//
// [Store] holds the current [models.Session] and hands the token record to a platform [Persister]:
//   - [NopPersister] : browser builds, where the backend cookie is the only credential
//   - [FilePersister] : JSON file with owner-only permissions
//   - repositories.TokenRepository : SQLite key/value row under "token_info"
//
// The file and SQLite persisters also keep the backend session cookie, so a restored token comes with a live session.
//
// [Manager] drives the transitions:
//
//	Unauthenticated --InitiateLogin--> Unauthenticated (browser opened)
//	any             --CompleteCallback--> PendingCallback --> Authenticated | Unauthenticated
//	any             --RefreshStatus--> Authenticated | Unauthenticated
//	any             --Logout--> Unauthenticated
//
// A held token whose expires_at has passed is reported as Expired until the next status check or login.
// [Manager.EnsureAuthenticated] runs a status check and turns anything short of Authenticated into an error.
package session
