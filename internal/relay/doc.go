// Package relay provides an HTTP implementation of the domain.RelayClient
// interface: the REST half of the coordinating server contract.
//
// Supported operations:
//   - Registering a username with the local public keys (POST /register).
//   - Challenge-response login (POST /login/challenge, POST /login/verify).
//   - Fetching a peer's published keys (GET /users/{id}/key).
//   - Listing active and inactive peers (GET /users/active).
//   - Reading and replacing a peer's description blob
//     (GET/PUT /users/{id}/descriptions).
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. Non-2xx statuses are returned as *StatusError, which maps onto
// the domain error taxonomy through errors.Is: 401/403 are ErrUnauthorized,
// 404 is ErrPeerNotFound, 409 is ErrUsernameTaken, 429 and 5xx are transient.
package relay
