package types

// PeerPublicKey is the directory entry for a peer. PublicKey is the X25519 key used
// by the box construction; SigningKey verifies the peer's frame signatures.
type PeerPublicKey struct {
	Username   Username      `json:"user_id"`
	PublicKey  X25519Public  `json:"public_key"`
	SigningKey Ed25519Public `json:"signing_key"`
}

// Presence lists peers the coordinating server considers online and offline.
type Presence struct {
	Online  []Username `json:"online"`
	Offline []Username `json:"offline"`
}

// IsOnline reports whether u appears in the online list.
func (p Presence) IsOnline(u Username) bool {
	for _, o := range p.Online {
		if o == u {
			return true
		}
	}
	return false
}
