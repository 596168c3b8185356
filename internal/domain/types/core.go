package types

// Username represents an agent identifier registered with the coordinating server.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Broadcast is the reserved recipient that addresses every connected peer.
const Broadcast Username = "broadcast"

// IsBroadcast reports whether u is the broadcast sentinel.
func (u Username) IsBroadcast() bool { return u == Broadcast }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
