// Package main runs the in-memory coordinating server that peerlink clients
// register with, authenticate against and exchange frames through.
//
// HTTP API
//
//	POST /register
//	    Store a username with its X25519 and Ed25519 public keys. 409 if taken.
//
//	POST /login/challenge
//	    Issue a single-use nonce for a registered username.
//
//	POST /login/verify
//	    Exchange a signed nonce for a bearer token.
//
//	GET /users/{id}/key
//	    Return the public keys registered for {id}.
//
//	GET /users/active
//	    List online and offline users.
//
//	GET /users/{id}/descriptions
//	PUT /users/{id}/descriptions
//	    Read any user's descriptions blob; only the owner may replace it.
//
//	GET /ws
//	    Upgrade to a websocket carrying JSON message frames.
//
// Every route except registration and login requires an Authorization: Bearer
// header.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Frames are routed by their "to" field; "broadcast" fans out to every
//     other online user. Frames whose from_user does not match the
//     authenticated user are dropped.
//   - The server never sees plaintext of direct messages or private keys.
//   - The default listen address is :8080.
package main
