// Package app assembles a peerlink client.
//
// Config is loaded from YAML and overridden by flags. Client is the
// per-agent context owning one instance of every component, so several
// agents can run in one process. Wire builds the on-disk stores for the CLI
// and hands out Clients.
package app
