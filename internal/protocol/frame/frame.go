package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"peerlink/internal/domain"
)

var (
	// ErrMalformed is returned for frames missing required fields.
	ErrMalformed = errors.New("malformed frame")
)

// Frame is the message envelope carried in a single websocket text message.
type Frame struct {
	ID               string          `json:"id,omitempty"`
	FromUser         domain.Username `json:"from_user"`
	To               domain.Username `json:"to"`
	Content          string          `json:"content"`
	Timestamp        int64           `json:"timestamp"`
	Signature        []byte          `json:"signature"`
	IsForwardMessage bool            `json:"is_forward_message"`
	Encrypted        bool            `json:"encrypted"`
}

// signed lists the covered fields in their fixed canonical order.
type signed struct {
	FromUser  domain.Username `json:"from_user"`
	To        domain.Username `json:"to"`
	Content   string          `json:"content"`
	Timestamp int64           `json:"timestamp"`
}

// Canonical returns the byte representation covered by a frame signature:
// compact JSON of {from_user, to, content, timestamp} in that order, without
// HTML escaping and without a trailing newline.
func Canonical(from, to domain.Username, content string, timestamp int64) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a struct of strings and an int64 cannot fail.
	_ = enc.Encode(signed{FromUser: from, To: to, Content: content, Timestamp: timestamp})
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}

// SigningBytes returns Canonical over the frame's covered fields.
func (f Frame) SigningBytes() []byte {
	return Canonical(f.FromUser, f.To, f.Content, f.Timestamp)
}

// Encode serializes f for transmission.
func Encode(f Frame) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(f)
}

// Decode parses a frame received from the server.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := f.validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (f Frame) validate() error {
	switch {
	case f.FromUser == "":
		return fmt.Errorf("%w: missing from_user", ErrMalformed)
	case f.To == "":
		return fmt.Errorf("%w: missing to", ErrMalformed)
	case f.Encrypted && f.To.IsBroadcast():
		return fmt.Errorf("%w: encrypted broadcast", ErrMalformed)
	}
	return nil
}
