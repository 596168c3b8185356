package message_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"peerlink/internal/clock"
	"peerlink/internal/connection"
	"peerlink/internal/crypto"
	"peerlink/internal/domain"
	"peerlink/internal/protocol/frame"
	"peerlink/internal/services/identity"
	"peerlink/internal/services/message"
)

type account domain.Username

func (a account) Username() domain.Username { return domain.Username(a) }

// directory is a fixed KeyResolver.
type directory map[domain.Username]domain.PeerPublicKey

func (d directory) Resolve(_ context.Context, u domain.Username) (domain.PeerPublicKey, error) {
	k, ok := d[u]
	if !ok {
		return domain.PeerPublicKey{}, domain.ErrPeerNotFound
	}
	return k, nil
}

type captured struct {
	id  string
	raw []byte
}

type transport struct {
	mu     sync.Mutex
	frames []captured
	err    error
	undel  chan connection.Undelivered
}

func newTransport() *transport {
	return &transport{undel: make(chan connection.Undelivered, 1)}
}

func (t *transport) Enqueue(_ context.Context, id string, raw []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.frames = append(t.frames, captured{id: id, raw: raw})
	return nil
}

func (t *transport) Undeliverable() <-chan connection.Undelivered { return t.undel }

func (t *transport) last(tb testing.TB) []byte {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.frames) == 0 {
		tb.Fatal("nothing enqueued")
	}
	return t.frames[len(t.frames)-1].raw
}

type peer struct {
	name   domain.Username
	signer *identity.Signer
	out    *transport
	router *message.Service
}

func newSigner(t *testing.T) *identity.Signer {
	t.Helper()
	xpriv, xpub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatal(err)
	}
	edpriv, edpub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatal(err)
	}
	return identity.NewSigner(domain.Identity{XPub: xpub, XPriv: xpriv, EdPub: edpub, EdPriv: edpriv})
}

// newPeers builds routers for names that all resolve each other.
func newPeers(t *testing.T, names ...domain.Username) map[domain.Username]*peer {
	t.Helper()
	dir := directory{}
	peers := map[domain.Username]*peer{}
	for _, n := range names {
		s := newSigner(t)
		dir[n] = s.PublicKeys(n)
		peers[n] = &peer{name: n, signer: s, out: newTransport()}
	}
	clk := clock.Fake(time.UnixMilli(1_700_000_000_123))
	for _, p := range peers {
		p.router = message.New(message.Options{
			Account:     account(p.name),
			Identity:    p.signer,
			Keys:        dir,
			Transport:   p.out,
			Clock:       clk,
			InboundSize: 4,
		})
	}
	return peers
}

func receive(t *testing.T, r *message.Service) domain.Message {
	t.Helper()
	select {
	case m := <-r.Messages():
		return m
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return domain.Message{}
	}
}

func TestDirectMessage_EncryptedAndVerified(t *testing.T) {
	peers := newPeers(t, "alice", "bob")
	alice, bob := peers["alice"], peers["bob"]
	ctx := context.Background()

	sent, err := bob.router.Send(ctx, domain.Message{To: "alice", Content: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.ID == "" || sent.FromUser != "bob" || sent.Timestamp != 1_700_000_000_123 || !sent.Encrypted {
		t.Fatalf("send did not stamp the message: %+v", sent)
	}

	raw := bob.out.last(t)
	f, err := frame.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Encrypted || f.Content == "hi" {
		t.Fatalf("direct message transmitted in plaintext: %+v", f)
	}
	if !bob.signer.Verify(f.SigningBytes(), f.Signature, bob.signer.SigningKey()) {
		t.Fatal("frame signature does not cover the transmitted content")
	}

	alice.router.HandleFrame(ctx, raw)
	got := receive(t, alice.router)
	if got.Content != "hi" || got.Status != domain.StatusVerified || got.FromUser != "bob" || got.ID != sent.ID {
		t.Fatalf("got %+v", got)
	}
}

func TestBroadcast_PlaintextAndVerifiableWithSigningKeyOnly(t *testing.T) {
	peers := newPeers(t, "alice", "bob")
	ctx := context.Background()

	if _, err := peers["alice"].router.Broadcast(ctx, "hello all"); err != nil {
		t.Fatal(err)
	}
	raw := peers["alice"].out.last(t)
	f, _ := frame.Decode(raw)
	if f.Encrypted || f.Content != "hello all" || f.To != domain.Broadcast {
		t.Fatalf("broadcast frame %+v", f)
	}

	// A receiver that only knows alice's signing key.
	onlySigning := directory{"alice": {Username: "alice", SigningKey: peers["alice"].signer.SigningKey()}}
	r := message.New(message.Options{
		Account:   account("carol"),
		Identity:  newSigner(t),
		Keys:      onlySigning,
		Transport: newTransport(),
	})
	r.HandleFrame(ctx, raw)
	got := receive(t, r)
	if got.Status != domain.StatusVerified || got.Content != "hello all" {
		t.Fatalf("got %+v", got)
	}
}

func TestSend_UnresolvableRecipientRejected(t *testing.T) {
	peers := newPeers(t, "bob")
	bob := peers["bob"]

	_, err := bob.router.Send(context.Background(), domain.Message{To: "nobody", Content: "secret"})
	if !errors.Is(err, domain.ErrPeerNotFound) {
		t.Fatalf("want ErrPeerNotFound, got %v", err)
	}
	var op *domain.OpError
	if !errors.As(err, &op) || op.Peer != "nobody" || op.MessageID == "" {
		t.Fatalf("error lacks context: %#v", err)
	}
	if len(bob.out.frames) != 0 {
		t.Fatal("frame enqueued despite resolution failure")
	}
}

func TestSend_RequiresLogin(t *testing.T) {
	r := message.New(message.Options{
		Account:   account(""),
		Identity:  newSigner(t),
		Keys:      directory{},
		Transport: newTransport(),
	})
	if _, err := r.Send(context.Background(), domain.Message{To: domain.Broadcast}); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("want ErrNotLoggedIn, got %v", err)
	}
}

func TestSend_PropagatesQueueErrors(t *testing.T) {
	peers := newPeers(t, "bob")
	peers["bob"].out.err = &domain.OpError{Op: "enqueue", Err: domain.ErrClosed}
	if _, err := peers["bob"].router.Broadcast(context.Background(), "x"); !errors.Is(err, domain.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestReceive_BadSignatureIsUnsigned(t *testing.T) {
	peers := newPeers(t, "alice", "bob")
	ctx := context.Background()
	if _, err := peers["bob"].router.Send(ctx, domain.Message{To: "alice", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	f, _ := frame.Decode(peers["bob"].out.last(t))
	f.Signature[0] ^= 0x01
	raw, _ := frame.Encode(f)

	peers["alice"].router.HandleFrame(ctx, raw)
	got := receive(t, peers["alice"].router)
	if got.Status != domain.StatusUnsigned || got.Content != "hi" {
		t.Fatalf("got %+v", got)
	}
}

func TestReceive_CorruptCiphertextIsDecryptionFailed(t *testing.T) {
	peers := newPeers(t, "alice", "bob")
	ctx := context.Background()
	if _, err := peers["bob"].router.Send(ctx, domain.Message{To: "alice", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	f, _ := frame.Decode(peers["bob"].out.last(t))
	env, _ := crypto.FromB64(f.Content)
	env[len(env)-1] ^= 0x80
	f.Content = crypto.B64(env)
	raw, _ := frame.Encode(f)

	peers["alice"].router.HandleFrame(ctx, raw)
	got := receive(t, peers["alice"].router)
	if got.Status != domain.StatusDecryptionFailed || got.Content != "" {
		t.Fatalf("got %+v", got)
	}
}

func TestReceive_UnknownSender(t *testing.T) {
	peers := newPeers(t, "alice")
	stranger := newSigner(t)
	f := frame.Frame{ID: "x", FromUser: "mallory", To: domain.Broadcast, Content: "boo", Timestamp: 1}
	f.Signature = stranger.Sign(f.SigningBytes())
	raw, _ := frame.Encode(f)

	peers["alice"].router.HandleFrame(context.Background(), raw)
	got := receive(t, peers["alice"].router)
	if got.Status != domain.StatusUnsigned || got.Content != "boo" {
		t.Fatalf("got %+v", got)
	}
}

func TestReceive_MalformedFrameSkipped(t *testing.T) {
	peers := newPeers(t, "alice")
	peers["alice"].router.HandleFrame(context.Background(), []byte(`{"content":"no sender"}`))
	select {
	case m := <-peers["alice"].router.Messages():
		t.Fatalf("malformed frame delivered: %+v", m)
	default:
	}
}

func TestReceive_BlocksWhenFullUntilCancelled(t *testing.T) {
	peers := newPeers(t, "alice", "bob")
	ctx := context.Background()
	if _, err := peers["bob"].router.Broadcast(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	raw := peers["bob"].out.last(t)
	alice := peers["alice"].router
	for i := 0; i < 4; i++ {
		alice.HandleFrame(ctx, raw)
	}

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		alice.HandleFrame(cctx, raw)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("HandleFrame did not block on a full inbox")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleFrame ignored cancellation")
	}
}
