// Package presence queries which peers are online and reads or replaces the
// free-form descriptions blob a peer publishes about itself.
package presence
