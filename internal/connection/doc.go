// Package connection owns the single websocket connection of a client.
//
// A Manager walks an explicit state machine:
//
//	Disconnected -> Connecting -> Authenticating -> Connected
//	                    ^              |               |
//	                    +-- Reconnecting <-------------+
//
// Every state can move to Closed through Disconnect. Reconnection uses
// exponential backoff with jitter and a cap; the delay resets to the base
// interval only after a connection stayed up for the sustained period.
//
// Outbound frames wait in a bounded FIFO that survives outages. A single
// writer goroutine drains it, so the transport never sees concurrent writes.
// Frames that outlive the configured maximum age, or are still queued when
// the manager stops, are reported on Undeliverable.
package connection
