// Package repositories implements SQLite persistence for client-side state.
//
// Key Implementations:
//   - [KVStore] : string key/value rows in kv_store
//   - [TokenRepository] : the token_info record, satisfying session.Persister
//   - [ResolutionRepository] : the stream resolution log shown by the history command
//   - [ResolutionRecorder] : adapts ResolutionRepository to stream.Recorder
//
// Resolutions carry a sequence number from [NextSequence] so history has a stable order independent of timestamps.
package repositories
