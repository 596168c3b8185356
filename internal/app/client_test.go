package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"peerlink/internal/app"
	"peerlink/internal/connection"
	"peerlink/internal/crypto"
	"peerlink/internal/domain"
	"peerlink/internal/hub"
)

const waitTimeout = 5 * time.Second

type network struct {
	hub *hub.Server
	url string
}

func newNetwork(t *testing.T) *network {
	t.Helper()
	h := hub.New(hub.Options{})
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return &network{hub: h, url: srv.URL}
}

// join registers, logs in and connects a fresh agent.
func (n *network) join(t *testing.T, name domain.Username) *app.Client {
	t.Helper()
	cfg := *app.DefaultConfig()
	cfg.ServerURL = n.url
	cfg.Home = t.TempDir()
	cfg.Reconnect.BaseInterval = 20 * time.Millisecond
	cfg.Reconnect.MaxInterval = 200 * time.Millisecond
	cfg.Reconnect.Jitter = 0

	xpriv, xpub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatal(err)
	}
	edpriv, edpub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatal(err)
	}
	c, err := app.NewClient(app.ClientOptions{
		Config:   cfg,
		Identity: domain.Identity{XPub: xpub, XPriv: xpriv, EdPub: edpub, EdPriv: edpriv},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := c.Register(ctx, name); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if _, err := c.Login(ctx, ""); err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	t.Cleanup(func() { _ = c.Disconnect() })
	n.waitOnline(t, name)
	return c
}

func (n *network) waitOnline(t *testing.T, name domain.Username) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !n.hub.Presence().IsOnline(name) {
		if time.Now().After(deadline) {
			t.Fatalf("%s never came online", name)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func next(t *testing.T, c *app.Client) domain.Message {
	t.Helper()
	select {
	case m := <-c.Messages():
		return m
	case <-time.After(waitTimeout):
		t.Fatal("no message received")
		return domain.Message{}
	}
}

func waitState(t *testing.T, c *app.Client, to connection.State) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case tr := <-c.Transitions():
			if tr.To == to {
				return
			}
		case <-deadline:
			t.Fatalf("never reached %s (state %s)", to, c.State())
		}
	}
}

func TestDirectMessage_EndToEnd(t *testing.T) {
	n := newNetwork(t)
	alice := n.join(t, "alice")
	bob := n.join(t, "bob")

	sent, err := bob.Send(context.Background(), "alice", "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !sent.Encrypted {
		t.Fatal("direct message was not encrypted")
	}

	got := next(t, alice)
	if got.Content != "hi" || got.Status != domain.StatusVerified || got.FromUser != "bob" || got.ID != sent.ID {
		t.Fatalf("alice got %+v", got)
	}
}

func TestBroadcast_EndToEnd(t *testing.T) {
	n := newNetwork(t)
	alice := n.join(t, "alice")
	bob := n.join(t, "bob")
	carol := n.join(t, "carol")

	sent, err := alice.Broadcast(context.Background(), "hello all")
	if err != nil {
		t.Fatal(err)
	}
	if sent.Encrypted {
		t.Fatal("broadcast was encrypted")
	}
	for _, c := range []*app.Client{bob, carol} {
		got := next(t, c)
		if got.Content != "hello all" || got.Status != domain.StatusVerified || !got.IsBroadcast() {
			t.Fatalf("got %+v", got)
		}
	}
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	n := newNetwork(t)
	alice := n.join(t, "alice")
	bob := n.join(t, "bob")

	n.hub.Kick("alice")
	waitState(t, alice, connection.Reconnecting)

	if _, err := alice.Send(context.Background(), "bob", "still here"); err != nil {
		t.Fatalf("Send during outage: %v", err)
	}
	waitState(t, alice, connection.Connected)

	got := next(t, bob)
	if got.Content != "still here" || got.Status != domain.StatusVerified {
		t.Fatalf("bob got %+v", got)
	}
}

func TestSend_UnknownPeerAndClosedClient(t *testing.T) {
	n := newNetwork(t)
	alice := n.join(t, "alice")
	ctx := context.Background()

	if _, err := alice.Send(ctx, "nobody", "x"); !errors.Is(err, domain.ErrPeerNotFound) {
		t.Fatalf("want ErrPeerNotFound, got %v", err)
	}
	if err := alice.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if alice.State() != connection.Closed {
		t.Fatalf("state %s", alice.State())
	}
	if _, err := alice.Broadcast(ctx, "x"); !errors.Is(err, domain.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestPresenceAndDescriptions(t *testing.T) {
	n := newNetwork(t)
	alice := n.join(t, "alice")
	bob := n.join(t, "bob")
	ctx := context.Background()

	p, err := alice.ActivePeers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsOnline("bob") || !p.IsOnline("alice") {
		t.Fatalf("presence %+v", p)
	}

	if err := alice.Describe(ctx, json.RawMessage(`{"role":"planner"}`)); err != nil {
		t.Fatal(err)
	}
	blob, err := bob.Descriptions(ctx, "alice")
	if err != nil || string(blob) != `{"role":"planner"}` {
		t.Fatalf("got %s %v", blob, err)
	}
}
