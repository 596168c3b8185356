package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"peerlink/internal/clock"
	"peerlink/internal/connection"
	"peerlink/internal/crypto"
	"peerlink/internal/domain"
	"peerlink/internal/protocol/frame"
	"peerlink/internal/protocol/hybrid"
)

// DefaultInboundSize is the capacity of the Messages channel.
const DefaultInboundSize = 64

// Identity is the local key material the router needs.
type Identity interface {
	domain.Signer
	EncryptionPrivate() domain.X25519Private
}

// Account reports the username frames are sent from.
type Account interface {
	Username() domain.Username
}

// Transport accepts outbound frames and reports the ones it gave up on.
type Transport interface {
	domain.Outbound
	Undeliverable() <-chan connection.Undelivered
}

// refresher is implemented by resolvers that can bypass their cache.
type refresher interface {
	Refresh(ctx context.Context, peer domain.Username) (domain.PeerPublicKey, error)
}

// Options wires a Service.
type Options struct {
	Account     Account
	Identity    Identity
	Keys        domain.KeyResolver
	Transport   Transport
	Clock       clock.Clock
	InboundSize int
	Logger      zerolog.Logger
}

// Service is the MessageRouter for one client.
type Service struct {
	account   Account
	id        Identity
	keys      domain.KeyResolver
	transport Transport
	clock     clock.Clock
	log       zerolog.Logger

	inbox chan domain.Message
}

// New returns a router. Inbound messages queue on a channel of
// opts.InboundSize.
func New(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.InboundSize <= 0 {
		opts.InboundSize = DefaultInboundSize
	}
	return &Service{
		account:   opts.Account,
		id:        opts.Identity,
		keys:      opts.Keys,
		transport: opts.Transport,
		clock:     opts.Clock,
		log:       opts.Logger.With().Str("component", "message").Logger(),
		inbox:     make(chan domain.Message, opts.InboundSize),
	}
}

// Messages is the consumer-facing stream of received messages. The reader
// loop blocks when it is full.
func (s *Service) Messages() <-chan domain.Message { return s.inbox }

// Undeliverable reports frames that were queued but never transmitted.
func (s *Service) Undeliverable() <-chan connection.Undelivered {
	return s.transport.Undeliverable()
}

// Send signs msg, encrypts it unless it is a broadcast, and queues it. The
// returned Message carries the assigned id, timestamp and signature.
func (s *Service) Send(ctx context.Context, msg domain.Message) (domain.Message, error) {
	from := s.account.Username()
	if from == "" {
		return msg, &domain.OpError{Op: "send", Peer: msg.To, Err: domain.ErrNotLoggedIn}
	}
	if msg.To == "" {
		return msg, &domain.OpError{Op: "send", Err: errors.New("missing recipient")}
	}
	msg.FromUser = from
	msg.ID = uuid.NewString()
	msg.Timestamp = s.clock.Now().UnixMilli()
	msg.Status = ""

	f := frame.Frame{
		ID:               msg.ID,
		FromUser:         msg.FromUser,
		To:               msg.To,
		Content:          msg.Content,
		Timestamp:        msg.Timestamp,
		IsForwardMessage: msg.IsForwardMessage,
	}
	if !msg.IsBroadcast() {
		peer, err := s.keys.Resolve(ctx, msg.To)
		if err != nil {
			return msg, &domain.OpError{Op: "send", Peer: msg.To, MessageID: msg.ID, Err: err}
		}
		env, err := hybrid.Encrypt([]byte(msg.Content), s.id.EncryptionPrivate(), peer.PublicKey)
		if err != nil {
			return msg, &domain.OpError{Op: "send", Peer: msg.To, MessageID: msg.ID, Err: err}
		}
		f.Content = crypto.B64(env)
		f.Encrypted = true
	}
	f.Signature = s.id.Sign(f.SigningBytes())

	raw, err := frame.Encode(f)
	if err != nil {
		return msg, &domain.OpError{Op: "send", Peer: msg.To, MessageID: msg.ID, Err: err}
	}
	if err := s.transport.Enqueue(ctx, msg.ID, raw); err != nil {
		return msg, err
	}
	msg.Signature = f.Signature
	msg.Encrypted = f.Encrypted
	s.log.Debug().
		Str("message_id", msg.ID).
		Str("peer", msg.To.String()).
		Bool("encrypted", f.Encrypted).
		Msg("message queued")
	return msg, nil
}

// Broadcast sends content to every connected peer, unencrypted.
func (s *Service) Broadcast(ctx context.Context, content string) (domain.Message, error) {
	return s.Send(ctx, domain.Message{To: domain.Broadcast, Content: content})
}

// HandleFrame processes one inbound frame. It blocks while Messages is full
// and returns early only when ctx ends. Frames that cannot be decoded carry
// no sender to attribute them to and are logged and skipped.
func (s *Service) HandleFrame(ctx context.Context, raw []byte) {
	f, err := frame.Decode(raw)
	if err != nil {
		s.log.Warn().Err(err).Int("bytes", len(raw)).Msg("dropping undecodable frame")
		return
	}
	msg := s.open(ctx, f)

	select {
	case s.inbox <- msg:
	case <-ctx.Done():
		s.log.Warn().Str("message_id", msg.ID).Msg("inbound message abandoned on shutdown")
	}
}

// open verifies and decrypts f. Status precedence: decryption_failed, then
// unsigned, then verified.
func (s *Service) open(ctx context.Context, f frame.Frame) domain.Message {
	msg := domain.Message{
		ID:               f.ID,
		FromUser:         f.FromUser,
		To:               f.To,
		Content:          f.Content,
		Timestamp:        f.Timestamp,
		Signature:        f.Signature,
		IsForwardMessage: f.IsForwardMessage,
		Encrypted:        f.Encrypted,
		Status:           domain.StatusVerified,
	}
	log := s.log.With().Str("message_id", f.ID).Str("peer", f.FromUser.String()).Logger()

	sender, err := s.keys.Resolve(ctx, f.FromUser)
	resolved := err == nil
	if !resolved {
		log.Warn().Err(err).Msg("sender key unavailable")
		msg.Status = domain.StatusUnsigned
	} else if !s.verify(ctx, f, &sender) {
		log.Warn().Msg("signature verification failed")
		msg.Status = domain.StatusUnsigned
	}

	if f.Encrypted {
		msg.Content = ""
		if !resolved {
			msg.Status = domain.StatusDecryptionFailed
			return msg
		}
		plaintext, err := s.decrypt(f.Content, sender)
		if err != nil {
			log.Warn().Err(err).Msg("decryption failed")
			msg.Status = domain.StatusDecryptionFailed
			return msg
		}
		msg.Content = string(plaintext)
	}
	return msg
}

// verify checks the signature, retrying once against a freshly fetched key
// in case the sender re-registered. sender is updated on a successful
// refresh.
func (s *Service) verify(ctx context.Context, f frame.Frame, sender *domain.PeerPublicKey) bool {
	payload := f.SigningBytes()
	if s.id.Verify(payload, f.Signature, sender.SigningKey) {
		return true
	}
	r, ok := s.keys.(refresher)
	if !ok {
		return false
	}
	fresh, err := r.Refresh(ctx, f.FromUser)
	if err != nil || fresh.SigningKey == sender.SigningKey {
		return false
	}
	if !s.id.Verify(payload, f.Signature, fresh.SigningKey) {
		return false
	}
	*sender = fresh
	return true
}

func (s *Service) decrypt(content string, sender domain.PeerPublicKey) ([]byte, error) {
	env, err := crypto.FromB64(content)
	if err != nil {
		return nil, &hybrid.DecryptionError{Reason: fmt.Sprintf("content is not base64: %v", err)}
	}
	return hybrid.Decrypt(env, s.id.EncryptionPrivate(), sender.PublicKey)
}
