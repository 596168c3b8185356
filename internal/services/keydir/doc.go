// Package keydir caches peer public keys fetched from the coordinating
// server.
//
// Concurrent Resolve calls for the same peer share one fetch. The fetch runs
// detached from the first caller's context, so one caller giving up does not
// fail the others. A not-found answer is remembered for a short negative TTL
// so a typo in a recipient name does not hammer the server.
package keydir
