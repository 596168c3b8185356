// Package hub is an in-memory coordinating server for development and
// tests. It speaks the same HTTP and websocket contract as the production
// server the client talks to.
//
// HTTP API
//
//	POST /register                  {username, public_key, signing_key}; 409 on collision
//	POST /login/challenge           {user_id} -> {nonce}
//	POST /login/verify              {user_id, nonce, signature} -> {token, expires_at}
//	GET  /users/{id}/key            bearer; published keys of {id}
//	GET  /users/active              bearer; {online, offline}
//	GET  /users/{id}/descriptions   bearer; descriptions blob
//	PUT  /users/{id}/descriptions   bearer; only {id} itself may write
//	GET  /ws                        bearer; websocket upgrade
//
// Websocket frames are routed by their "to" field: "broadcast" fans out to
// every other connected user, anything else goes to that user if online.
// Frames whose from_user does not match the authenticated user are dropped.
// Frames for offline users are dropped; the hub keeps no history.
//
// All state is held in memory and lost on exit. The hub never sees
// plaintext of direct messages or any private key.
package hub
