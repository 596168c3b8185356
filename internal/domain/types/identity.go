package types

// Identity holds the local agent's long-term X25519 and Ed25519 keys.
//
// XPriv/XPub encrypt direct messages (box construction); EdPriv/EdPub sign every
// outbound frame and the login challenge. Only the public halves leave the process.
type Identity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// PublicKeys returns the publishable half of the identity.
func (id Identity) PublicKeys(username Username) PeerPublicKey {
	return PeerPublicKey{Username: username, PublicKey: id.XPub, SigningKey: id.EdPub}
}
