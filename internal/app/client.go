package app

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"peerlink/internal/clock"
	"peerlink/internal/connection"
	"peerlink/internal/domain"
	"peerlink/internal/relay"
	"peerlink/internal/services/auth"
	"peerlink/internal/services/identity"
	"peerlink/internal/services/keydir"
	"peerlink/internal/services/message"
	"peerlink/internal/services/presence"
)

// ClientOptions are the inputs of NewClient. Identity and Config are
// required; the rest default to production implementations.
type ClientOptions struct {
	Config   Config
	Identity domain.Identity
	HTTP     *http.Client
	Dialer   connection.Dialer
	Clock    clock.Clock
	// Sessions caches bearer tokens between runs; nil keeps them in memory.
	Sessions domain.SessionStore
	Logger   zerolog.Logger
}

// Client is the per-agent context: one instance of every component, no
// shared state with other clients in the process.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	signer *identity.Signer

	Relay    *relay.HTTP
	Auth     *auth.Service
	Keys     *keydir.Directory
	Presence *presence.Service
	Conn     *connection.Manager
	Router   *message.Service
}

// NewClient wires a Client for one identity.
func NewClient(opts ClientOptions) (*Client, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	log := opts.Logger
	if cfg.InsecureSkipVerify {
		log.Warn().Msg("TLS certificate verification disabled by configuration")
	}

	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = newHTTPClient(cfg)
	}
	dialer := opts.Dialer
	if dialer == nil {
		d, err := connection.NewWSDialer(cfg.ServerURL, connection.DialerOptions{
			ReadTimeout:        2 * cfg.PingInterval,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Logger:             log,
		})
		if err != nil {
			return nil, err
		}
		dialer = d
	}

	c := &Client{
		cfg:    cfg,
		log:    log,
		signer: identity.NewSigner(opts.Identity),
		Relay:  relay.NewHTTP(cfg.ServerURL, httpClient),
	}
	c.Auth = auth.New(auth.Options{
		Relay:       c.Relay,
		Signer:      c.signer,
		Clock:       opts.Clock,
		RefreshSkew: cfg.Auth.RefreshSkew,
		Sessions:    opts.Sessions,
		Logger:      log,
	})
	if cfg.Username != "" {
		c.Auth.SetUsername(domain.Username(cfg.Username))
	}
	c.Keys = keydir.New(keydir.Options{
		Relay:       c.Relay,
		Tokens:      c.Auth,
		Clock:       opts.Clock,
		NegativeTTL: cfg.Directory.NegativeTTL,
		Logger:      log,
	})
	c.Presence = presence.New(c.Relay, c.Auth, log)
	c.Conn = connection.New(connection.Options{
		Config: connection.Config{
			BaseInterval:    cfg.Reconnect.BaseInterval,
			MaxInterval:     cfg.Reconnect.MaxInterval,
			Jitter:          cfg.Reconnect.Jitter,
			SustainedPeriod: cfg.Reconnect.SustainedPeriod,
			MaxAttempts:     cfg.Reconnect.MaxAttempts,
			MaxDuration:     cfg.Reconnect.MaxDuration,
			QueueSize:       cfg.Queue.OutboundSize,
			MaxQueueAge:     cfg.Queue.MaxAge,
			PingInterval:    cfg.PingInterval,
		},
		Dialer:  dialer,
		Auth:    c.Auth,
		Handler: func(ctx context.Context, raw []byte) { c.Router.HandleFrame(ctx, raw) },
		Clock:   opts.Clock,
		Logger:  log,
	})
	c.Router = message.New(message.Options{
		Account:     c.Auth,
		Identity:    c.signer,
		Keys:        c.Keys,
		Transport:   c.Conn,
		Clock:       opts.Clock,
		InboundSize: cfg.Queue.InboundSize,
		Logger:      log,
	})
	return c, nil
}

func newHTTPClient(cfg Config) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-out
	}
	return &http.Client{Timeout: cfg.HTTP.Timeout, Transport: tr}
}

// Username returns the account this client acts as.
func (c *Client) Username() domain.Username { return c.Auth.Username() }

// Fingerprint returns the local identity's fingerprint.
func (c *Client) Fingerprint() domain.Fingerprint {
	return identity.PeerFingerprint(c.signer.PublicKeys(""))
}

// Register publishes the local keys under username.
func (c *Client) Register(ctx context.Context, username domain.Username) error {
	return c.Auth.Register(ctx, username)
}

// Login authenticates as username, which must already be registered with
// the local keys. An empty username keeps the current one.
func (c *Client) Login(ctx context.Context, username domain.Username) (domain.Session, error) {
	if username != "" && username != c.Auth.Username() {
		c.Auth.SetUsername(username)
	}
	return c.Auth.Login(ctx)
}

// Connect opens the websocket and keeps it open until Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	if c.Auth.Username() == "" {
		return &domain.OpError{Op: "connect", Err: domain.ErrNotLoggedIn}
	}
	return c.Conn.Connect(ctx)
}

// Disconnect closes the connection for good. Messages still queued are
// reported on Undeliverable.
func (c *Client) Disconnect() error { return c.Conn.Disconnect() }

// Send encrypts and signs content for peer and queues it.
func (c *Client) Send(ctx context.Context, peer domain.Username, content string) (domain.Message, error) {
	if peer.IsBroadcast() {
		return c.Router.Broadcast(ctx, content)
	}
	return c.Router.Send(ctx, domain.Message{To: peer, Content: content})
}

// Broadcast signs content and queues it for every connected peer.
func (c *Client) Broadcast(ctx context.Context, content string) (domain.Message, error) {
	return c.Router.Broadcast(ctx, content)
}

// Messages streams received messages with their trust status.
func (c *Client) Messages() <-chan domain.Message { return c.Router.Messages() }

// Undeliverable streams messages that were queued but never sent.
func (c *Client) Undeliverable() <-chan connection.Undelivered { return c.Router.Undeliverable() }

// Transitions streams connection state changes.
func (c *Client) Transitions() <-chan connection.Transition { return c.Conn.Transitions() }

// State returns the connection state.
func (c *Client) State() connection.State { return c.Conn.State() }

// ActivePeers lists who is online.
func (c *Client) ActivePeers(ctx context.Context) (domain.Presence, error) {
	return c.Presence.Active(ctx)
}

// Descriptions returns peer's descriptions blob.
func (c *Client) Descriptions(ctx context.Context, peer domain.Username) (json.RawMessage, error) {
	return c.Presence.Descriptions(ctx, peer)
}

// Describe replaces this client's own descriptions blob.
func (c *Client) Describe(ctx context.Context, blob json.RawMessage) error {
	u := c.Auth.Username()
	if u == "" {
		return fmt.Errorf("describe: %w", domain.ErrNotLoggedIn)
	}
	return c.Presence.PutDescriptions(ctx, u, blob)
}
