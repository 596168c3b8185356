package hub_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peerlink/internal/connection"
	"peerlink/internal/crypto"
	"peerlink/internal/domain"
	"peerlink/internal/hub"
	"peerlink/internal/protocol/frame"
	"peerlink/internal/relay"
	"peerlink/internal/services/identity"
)

type agent struct {
	name   domain.Username
	signer *identity.Signer
	token  string
}

func startHub(t *testing.T) (*hub.Server, *relay.HTTP, string) {
	t.Helper()
	h := hub.New(hub.Options{})
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, relay.NewHTTP(srv.URL, srv.Client()), srv.URL
}

func newAgent(t *testing.T, name domain.Username) *agent {
	t.Helper()
	xpriv, xpub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatal(err)
	}
	edpriv, edpub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatal(err)
	}
	return &agent{
		name:   name,
		signer: identity.NewSigner(domain.Identity{XPub: xpub, XPriv: xpriv, EdPub: edpub, EdPriv: edpriv}),
	}
}

func (a *agent) join(t *testing.T, c *relay.HTTP) {
	t.Helper()
	ctx := context.Background()
	if err := c.Register(ctx, a.signer.PublicKeys(a.name)); err != nil {
		t.Fatalf("register %s: %v", a.name, err)
	}
	nonce, err := c.Challenge(ctx, a.name)
	if err != nil {
		t.Fatalf("challenge %s: %v", a.name, err)
	}
	sess, err := c.VerifyChallenge(ctx, a.name, nonce, a.signer.Sign([]byte(nonce)))
	if err != nil {
		t.Fatalf("verify %s: %v", a.name, err)
	}
	a.token = sess.Token
}

func (a *agent) dial(t *testing.T, url string) connection.Conn {
	t.Helper()
	d, err := connection.NewWSDialer(url, connection.DialerOptions{})
	if err != nil {
		t.Fatal(err)
	}
	conn, err := d.Dial(context.Background(), a.token)
	if err != nil {
		t.Fatalf("dial %s: %v", a.name, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (a *agent) frame(t *testing.T, to domain.Username, content string) []byte {
	t.Helper()
	f := frame.Frame{ID: content, FromUser: a.name, To: to, Content: content, Timestamp: time.Now().UnixMilli()}
	f.Signature = a.signer.Sign(f.SigningBytes())
	raw, err := frame.Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func readFrame(t *testing.T, c connection.Conn) frame.Frame {
	t.Helper()
	type result struct {
		raw []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := c.ReadMessage()
		ch <- result{raw, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("read: %v", r.err)
		}
		f, err := frame.Decode(r.raw)
		if err != nil {
			t.Fatal(err)
		}
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out reading frame")
		return frame.Frame{}
	}
}

// waitOnline polls until the hub has registered a session for every user.
// Dial returns once the handshake is answered, slightly before that.
func waitOnline(t *testing.T, h *hub.Server, users ...domain.Username) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for _, u := range users {
		for !h.Presence().IsOnline(u) {
			if time.Now().After(deadline) {
				t.Fatalf("%s never came online", u)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestRegisterAndLogin(t *testing.T) {
	_, c, _ := startHub(t)
	alice := newAgent(t, "alice")
	alice.join(t, c)
	if alice.token == "" {
		t.Fatal("no token issued")
	}

	err := c.Register(context.Background(), newAgent(t, "alice").signer.PublicKeys("alice"))
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("duplicate register: want ErrUsernameTaken, got %v", err)
	}
}

func TestLogin_RejectsWrongKey(t *testing.T) {
	_, c, _ := startHub(t)
	ctx := context.Background()
	alice := newAgent(t, "alice")
	if err := c.Register(ctx, alice.signer.PublicKeys("alice")); err != nil {
		t.Fatal(err)
	}
	nonce, err := c.Challenge(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	impostor := newAgent(t, "alice")
	_, err = c.VerifyChallenge(ctx, "alice", nonce, impostor.signer.Sign([]byte(nonce)))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}

	// The challenge is single use.
	_, err = c.VerifyChallenge(ctx, "alice", nonce, alice.signer.Sign([]byte(nonce)))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("replayed nonce: want ErrUnauthorized, got %v", err)
	}
}

func TestKeyLookupRequiresToken(t *testing.T) {
	_, c, _ := startHub(t)
	ctx := context.Background()
	alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
	alice.join(t, c)
	bob.join(t, c)

	if _, err := c.FetchPeerKey(ctx, "", "bob"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous lookup: want ErrUnauthorized, got %v", err)
	}
	k, err := c.FetchPeerKey(ctx, alice.token, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if k != bob.signer.PublicKeys("bob") {
		t.Fatalf("got %+v", k)
	}
	if _, err := c.FetchPeerKey(ctx, alice.token, "nobody"); !errors.Is(err, domain.ErrPeerNotFound) {
		t.Fatalf("want ErrPeerNotFound, got %v", err)
	}
}

func TestDescriptions_OwnerOnly(t *testing.T) {
	_, c, _ := startHub(t)
	ctx := context.Background()
	alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
	alice.join(t, c)
	bob.join(t, c)

	blob, err := c.Descriptions(ctx, bob.token, "alice")
	if err != nil || string(blob) != "{}" {
		t.Fatalf("empty descriptions: %s %v", blob, err)
	}
	if err := c.PutDescriptions(ctx, alice.token, "alice", json.RawMessage(`{"role":"planner"}`)); err != nil {
		t.Fatal(err)
	}
	blob, err = c.Descriptions(ctx, bob.token, "alice")
	if err != nil || string(blob) != `{"role":"planner"}` {
		t.Fatalf("got %s %v", blob, err)
	}

	err = c.PutDescriptions(ctx, bob.token, "alice", json.RawMessage(`{}`))
	var serr *relay.StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403, got %v", err)
	}
}

func TestWebsocket_RoutesAndPresence(t *testing.T) {
	h, c, url := startHub(t)
	alice, bob, carol := newAgent(t, "alice"), newAgent(t, "bob"), newAgent(t, "carol")
	for _, a := range []*agent{alice, bob, carol} {
		a.join(t, c)
	}
	aliceConn := alice.dial(t, url)
	bobConn := bob.dial(t, url)
	waitOnline(t, h, "alice", "bob")

	p, err := c.ActiveUsers(context.Background(), alice.token)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsOnline("alice") || !p.IsOnline("bob") || p.IsOnline("carol") || len(p.Offline) != 1 {
		t.Fatalf("presence %+v", p)
	}

	carolConn := carol.dial(t, url)
	waitOnline(t, h, "carol")

	// A spoofed sender is dropped; the next frame bob sees is the real one.
	if err := aliceConn.WriteMessage(carol.frame(t, "bob", "spoofed")); err != nil {
		t.Fatal(err)
	}
	if err := aliceConn.WriteMessage(alice.frame(t, "bob", "direct")); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, bobConn); f.Content != "direct" || f.FromUser != "alice" {
		t.Fatalf("bob got %+v", f)
	}

	if err := aliceConn.WriteMessage(alice.frame(t, domain.Broadcast, "hello all")); err != nil {
		t.Fatal(err)
	}
	for _, conn := range []connection.Conn{bobConn, carolConn} {
		if f := readFrame(t, conn); f.Content != "hello all" {
			t.Fatalf("broadcast got %+v", f)
		}
	}

	if !h.Kick("bob") {
		t.Fatal("bob had no session")
	}
	deadline := time.Now().Add(5 * time.Second)
	for h.Presence().IsOnline("bob") {
		if time.Now().After(deadline) {
			t.Fatal("bob still online after kick")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebsocket_RejectsBadToken(t *testing.T) {
	_, _, url := startHub(t)
	d, err := connection.NewWSDialer(url, connection.DialerOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.Dial(context.Background(), "not-a-token")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}
