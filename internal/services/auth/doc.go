// Package auth implements the client side of registration and
// challenge-response login against the coordinating server.
//
// State machine:
//
//	LoggedOut --Register/SetUsername--> Registered --Login--> LoggedIn(token)
//
// Logout and Invalidate fall back to Registered. The bearer token is held in
// memory only. Token refreshes proactively when the cached token expires
// within the configured skew, so a reconnect never presents a token the
// server is about to reject.
package auth
