// Package frame defines the websocket wire frame exchanged with the
// coordinating server and the canonical bytes covered by frame signatures.
//
// A frame is a self-describing JSON object:
//
//	{"id":"…","from_user":"alice","to":"bob","content":"…","timestamp":1700000000000,
//	 "signature":"<base64>","is_forward_message":false,"encrypted":true}
//
// When encrypted is true, content holds the base64 hybrid envelope rather than
// plaintext. Broadcast frames use the reserved recipient "broadcast" and are
// never encrypted.
//
// The signature covers Canonical(from_user, to, content, timestamp) with
// content exactly as transmitted. The id field is not covered.
package frame
