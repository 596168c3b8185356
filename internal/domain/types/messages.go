package types

// MessageStatus is the trust annotation set on receipt. Senders never set it.
type MessageStatus string

const (
	StatusVerified         MessageStatus = "verified"
	StatusUnsigned         MessageStatus = "unsigned"
	StatusDecryptionFailed MessageStatus = "decryption_failed"
)

// Message is the application-facing chat message.
//
// Content is always plaintext here; encryption happens on the wire frame only.
type Message struct {
	ID               string        `json:"id,omitempty"`
	FromUser         Username      `json:"from_user"`
	To               Username      `json:"to"`
	Content          string        `json:"content"`
	Timestamp        int64         `json:"timestamp,omitempty"`
	Status           MessageStatus `json:"status,omitempty"`
	Signature        []byte        `json:"signature,omitempty"`
	IsForwardMessage bool          `json:"is_forward_message"`
	Encrypted        bool          `json:"-"`
}

// IsBroadcast reports whether the message addresses every peer.
func (m Message) IsBroadcast() bool { return m.To.IsBroadcast() }
