// Package store provides file-based persistence for peerlink's local state.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Stored files live under the configured home directory.
//
// The package includes stores for:
//   - Identity keys, sealed with a passphrase (IdentityFileStore)
//   - Registered account profiles per server (AccountFileStore)
//   - Bearer sessions per server, mode 0600 (SessionFileStore)
//
// Peer keys are not persisted; the key directory is a process-lifetime cache.
package store
